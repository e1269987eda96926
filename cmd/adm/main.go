// Package main provides the voxbridge admin CLI. It drives the translation and speech
// adapters directly, without the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"voxbridge/cmd/adm/commands"
	"voxbridge/internal/config"
	"voxbridge/internal/di"
	"voxbridge/internal/observability"
	"voxbridge/internal/version"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Values already in the environment win over .env
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "warn"
	}

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "voxbridge-adm", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "Error shutting down services", map[string]interface{}{"error": err.Error()})
		}
	}()

	rootCmd, err := newRootCommand(cfg, container, logger)
	if err != nil {
		logger.Error(ctx, "Failed to build commands", err, nil)
		os.Exit(1)
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config, container di.ServiceContainerInterface, logger *observability.Logger) (*cobra.Command, error) {
	translationService, err := container.GetTranslationService()
	if err != nil {
		return nil, err
	}
	speechService, err := container.GetSpeechService()
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Voxbridge Administration Tool",
		Long: `Voxbridge Administration Tool

Runs translations and speech operations against the configured providers
and shows the effective configuration.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			// Show help if no subcommand provided
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.TranslationCommands(translationService, logger))
	rootCmd.AddCommand(commands.SpeechCommands(speechService, logger))
	rootCmd.AddCommand(commands.ConfigCommand(cfg))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get(config.DefaultServiceName).String())
		},
	})

	return rootCmd, nil
}
