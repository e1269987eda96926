// Package commands provides CLI commands for the admin tool
package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"voxbridge/internal/config"
	"voxbridge/internal/languages"
	"voxbridge/internal/observability"
	"voxbridge/internal/serviceinterfaces"
	"voxbridge/internal/services"
	contextutils "voxbridge/internal/utils"

	"github.com/spf13/cobra"
)

// TranslationCommands returns the translation commands
func TranslationCommands(service services.TranslationServiceInterface, logger *observability.Logger) *cobra.Command {
	translationCmd := &cobra.Command{
		Use:   "translation",
		Short: "Translation commands",
		Long: `Translation commands backed by the configured provider.

Available commands:
  languages - List supported languages
  text      - Translate one piece of text
  batch     - Translate a JSON file of requests`,
	}

	translationCmd.AddCommand(translationLanguagesCmd(service))
	translationCmd.AddCommand(translationTextCmd(service, logger))
	translationCmd.AddCommand(translationBatchCmd(service, logger))

	return translationCmd
}

func translationLanguagesCmd(service services.TranslationServiceInterface) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tSPEECH LOCALE")
			for _, code := range languages.Supported() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", code, service.GetLanguageName(string(code)), languages.SpeechLocale(string(code)))
			}
			return w.Flush()
		},
	}
}

func translationTextCmd(service services.TranslationServiceInterface, logger *observability.Logger) *cobra.Command {
	var from, to string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "text <text>...",
		Short: "Translate one piece of text",
		Long: `Translate text with the configured provider.

Provider failures are not fatal: the original text is printed together with the error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := serviceinterfaces.TranslationRequest{
				Text:         strings.Join(args, " "),
				FromLanguage: from,
				ToLanguage:   to,
			}
			if len(req.Text) > config.MaxTranslationTextLength {
				return contextutils.ErrorWithContextf("text exceeds %d characters", config.MaxTranslationTextLength)
			}

			result := service.TranslateText(ctx, req)
			if result.Failed() {
				logger.Warn(ctx, "Translation failed, original text returned", map[string]interface{}{
					"provider": service.ProviderName(),
					"error":    result.Error,
				})
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.TranslatedText)
			if result.Failed() {
				fmt.Fprintf(cmd.ErrOrStderr(), "translation failed: %s\n", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", string(languages.DefaultCode), "Source language code")
	cmd.Flags().StringVar(&to, "to", "", "Target language code")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func translationBatchCmd(service services.TranslationServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file|->",
		Short: "Translate a JSON array of requests",
		Long: `Translate a JSON array of {"text","from_language","to_language"} objects.

Results are printed as a JSON array in input order. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			var reqs []serviceinterfaces.TranslationRequest
			if err := json.Unmarshal(data, &reqs); err != nil {
				return contextutils.WrapError(err, "invalid batch file")
			}
			if len(reqs) > config.MaxBatchSize {
				return contextutils.ErrorWithContextf("batch of %d exceeds the maximum of %d", len(reqs), config.MaxBatchSize)
			}

			results := service.BatchTranslate(ctx, reqs)
			failed := 0
			for _, r := range results {
				if r.Failed() {
					failed++
				}
			}
			logger.Info(ctx, "Batch translation completed", map[string]interface{}{
				"count":  len(results),
				"failed": failed,
			})
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}
