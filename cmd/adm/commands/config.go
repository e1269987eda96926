package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"voxbridge/internal/config"

	"github.com/spf13/cobra"
)

// ConfigCommand prints the effective configuration with secrets masked
func ConfigCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "server.port\t%s\n", cfg.Server.Port)
			fmt.Fprintf(w, "translation.enabled\t%t\n", cfg.Translation.Enabled)
			fmt.Fprintf(w, "translation.default_provider\t%s\n", cfg.Translation.DefaultProvider)

			names := make([]string, 0, len(cfg.Translation.Providers))
			for name := range cfg.Translation.Providers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := cfg.Translation.Providers[name]
				fmt.Fprintf(w, "translation.providers.%s\tmodel=%s key=%s\n", name, p.Model, maskSecret(p.APIKey))
			}

			fmt.Fprintf(w, "speech.recognizer\t%s key=%s\n", cfg.Speech.Recognizer.Provider, maskSecret(cfg.Speech.Recognizer.APIKey))
			fmt.Fprintf(w, "speech.synthesizer\t%s key=%s\n", cfg.Speech.Synthesizer.Provider, maskSecret(cfg.Speech.Synthesizer.APIKey))
			fmt.Fprintf(w, "speech.voices_wait\t%s\n", cfg.Speech.VoicesWait)
			return w.Flush()
		},
	}
}
