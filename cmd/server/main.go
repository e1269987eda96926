// Package main provides the voxbridge HTTP server. It exposes the speech and translation
// adapters over a versioned JSON API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"voxbridge/internal/config"
	"voxbridge/internal/di"
	"voxbridge/internal/handlers"
	"voxbridge/internal/observability"
	contextutils "voxbridge/internal/utils"
	"voxbridge/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	translationService, err := container.GetTranslationService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get translation service")
	}

	speechService, err := container.GetSpeechService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get speech service")
	}

	router, err := handlers.NewRouter(container.GetConfig(), translationService, speechService, container.GetLogger())
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to build router")
	}

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Run serves HTTP on port until ctx is cancelled or the listener fails
func (a *Application) Run(ctx context.Context, port string) error {
	a.server = &http.Server{
		Addr:              ":" + port,
		Handler:           a.router,
		ReadHeaderTimeout: config.DefaultHTTPTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown drains in-flight requests and then shuts down the services
func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return contextutils.WrapError(err, "http server shutdown failed")
		}
	}
	return a.container.Shutdown(ctx)
}

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
	if cfg.OpenTelemetry.ServiceVersion == "" {
		cfg.OpenTelemetry.ServiceVersion = version.Version
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, cfg.OpenTelemetry.ServiceName, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.TelemetryFlushWait)
		defer shutdownCancel()

		if sp, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := sp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	logger.Info(ctx, "Starting voxbridge server", map[string]interface{}{
		"port":       cfg.Server.Port,
		"log_level":  cfg.Server.LogLevel,
		"version":    version.Get(cfg.OpenTelemetry.ServiceName).String(),
		"translator": cfg.Translation.DefaultProvider,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	speechService, err := container.GetSpeechService()
	if err == nil && speechService.Capabilities().Synthesis {
		voices, err := speechService.WaitForVoices(ctx, cfg.Speech.VoicesWait)
		if err != nil {
			logger.Warn(ctx, "Voice warm-up interrupted", map[string]interface{}{"error": err.Error()})
		} else {
			logger.Info(ctx, "Synthesis voices loaded", map[string]interface{}{"voice_count": len(voices)})
		}
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	if err := app.Run(ctx, cfg.Server.Port); err != nil {
		logger.Error(ctx, "Application failed", err, nil)
		os.Exit(1)
	}
	logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(shutdownCtx, "Shutdown completed successfully", nil)
}
