package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"voxbridge/internal/config"
	"voxbridge/internal/observability"
	"voxbridge/internal/serviceinterfaces"
	"voxbridge/internal/services"
	"voxbridge/internal/speech"
	contextutils "voxbridge/internal/utils"

	"github.com/spf13/cobra"
)

// SpeechCommands returns the speech commands
func SpeechCommands(service services.SpeechServiceInterface, logger *observability.Logger) *cobra.Command {
	speechCmd := &cobra.Command{
		Use:   "speech",
		Short: "Speech recognition and synthesis commands",
		Long: `Speech commands backed by the configured recognizer and synthesizer.

Available commands:
  support   - Show which speech capabilities are configured
  locale    - Map a language code onto its speech locale
  voices    - List synthesis voices
  speak     - Synthesize text to the player or a file
  recognize - Transcribe an audio file`,
	}

	speechCmd.AddCommand(speechSupportCmd(service))
	speechCmd.AddCommand(speechLocaleCmd(service))
	speechCmd.AddCommand(speechVoicesCmd(service))
	speechCmd.AddCommand(speechSpeakCmd(service, logger))
	speechCmd.AddCommand(speechRecognizeCmd(service, logger))

	return speechCmd
}

func speechSupportCmd(service services.SpeechServiceInterface) *cobra.Command {
	return &cobra.Command{
		Use:   "support",
		Short: "Show which speech capabilities are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caps := service.Capabilities()
			return printJSON(cmd.OutOrStdout(), map[string]bool{
				"supported":   service.IsSupported(),
				"recognition": caps.Recognition,
				"synthesis":   caps.Synthesis,
			})
		},
	}
}

func speechLocaleCmd(service services.SpeechServiceInterface) *cobra.Command {
	return &cobra.Command{
		Use:   "locale <code>",
		Short: "Map a language code onto its speech locale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), service.ConvertToSpeechLocale(args[0]))
			return nil
		},
	}
}

func speechVoicesCmd(service services.SpeechServiceInterface) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List synthesis voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			voices, err := service.WaitForVoices(cmd.Context(), min(wait, config.MaxVoicesWait))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), voices)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", config.DefaultVoicesWait, "How long to wait for the voice list to load")
	return cmd
}

func speechSpeakCmd(service services.SpeechServiceInterface, logger *observability.Logger) *cobra.Command {
	var opts serviceinterfaces.SynthesisOptions
	var rate, pitch, volume float64
	var out string

	cmd := &cobra.Command{
		Use:   "speak <text>...",
		Short: "Synthesize text",
		Long: `Synthesize text with the configured synthesizer.

Audio goes to the configured player unless --out names a file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts.Text = strings.Join(args, " ")

			flags := cmd.Flags()
			if flags.Changed("rate") {
				opts.Rate = &rate
			}
			if flags.Changed("pitch") {
				opts.Pitch = &pitch
			}
			if flags.Changed("volume") {
				opts.Volume = &volume
			}

			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return contextutils.WrapErrorf(err, "failed to create %s", out)
				}
				defer func() {
					if err := f.Close(); err != nil {
						logger.Warn(ctx, "Failed to close audio file", map[string]interface{}{"path": out, "error": err.Error()})
					}
				}()
				opts.Output = f
			}

			if err := service.SynthesizeSpeech(ctx, opts); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Audio written to %s\n", out)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Language, "language", "", "Language code or speech locale")
	flags.StringVar(&opts.Voice, "voice", "", "Voice name; overrides language based selection")
	flags.Float64Var(&rate, "rate", 1, "Speaking rate (0.1 to 10)")
	flags.Float64Var(&pitch, "pitch", 1, "Pitch (0 to 2)")
	flags.Float64Var(&volume, "volume", 1, "Volume (0 to 1)")
	flags.StringVarP(&out, "out", "o", "", "Write audio to this file instead of the player")

	return cmd
}

func speechRecognizeCmd(service services.SpeechServiceInterface, logger *observability.Logger) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "recognize <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return contextutils.WrapErrorf(err, "audio file not readable")
			}

			ctx := speech.WithAudioSource(cmd.Context(), speech.FileSource{Path: args[0]})
			result, err := service.RecognizeSpeech(ctx, language, nil, func(msg string) {
				logger.Warn(ctx, "Recognition error", map[string]interface{}{"error": msg})
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Language code of the recording")
	return cmd
}
