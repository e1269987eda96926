// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"sync"

	"voxbridge/internal/config"
	"voxbridge/internal/observability"
	"voxbridge/internal/services"
	"voxbridge/internal/speech"
	"voxbridge/internal/speech/espeak"
	"voxbridge/internal/speech/openaispeech"
	contextutils "voxbridge/internal/utils"
)

// Service names registered by the container
const (
	ServiceTranslation = "translation"
	ServiceSpeech      = "speech"
	ServiceMetrics     = "metrics"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetTranslationService() (services.TranslationServiceInterface, error)
	GetSpeechService() (services.SpeechServiceInterface, error)
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	if err := sc.startupServices(ctx); err != nil {
		// Cleanup on failure
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetTranslationService returns the translation adapter
func (sc *ServiceContainer) GetTranslationService() (services.TranslationServiceInterface, error) {
	return GetServiceAs[services.TranslationServiceInterface](sc, ServiceTranslation)
}

// GetSpeechService returns the speech adapter
func (sc *ServiceContainer) GetSpeechService() (services.SpeechServiceInterface, error) {
	return GetServiceAs[services.SpeechServiceInterface](sc, ServiceSpeech)
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// startupServices starts all services that implement the Lifecycle interface
func (sc *ServiceContainer) startupServices(ctx context.Context) error {
	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Startup(context.Context) error }); ok {
			sc.logger.Info(ctx, "Starting service", map[string]interface{}{"service": name})
			if err := lifecycleService.Startup(ctx); err != nil {
				return contextutils.WrapErrorf(err, "failed to startup service %s", name)
			}
			sc.logger.Info(ctx, "Service started successfully", map[string]interface{}{"service": name})
		}
	}
	return nil
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Reverse order of registration
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices builds the adapters and the host capabilities they drive
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return err
	}
	sc.services[ServiceMetrics] = metrics

	sc.services[ServiceTranslation] = services.NewTranslationService(sc.cfg, sc.logger, metrics)

	recognizer := sc.newRecognizer()
	synthesizer := sc.newSynthesizer()
	speechService := services.NewSpeechService(recognizer, synthesizer, sc.logger)
	speechService.SetMetrics(metrics)
	sc.services[ServiceSpeech] = speechService

	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		speechService.StopSpeaking()
		speechService.StopListening()
		return nil
	})

	caps := speechService.Capabilities()
	sc.logger.Info(ctx, "Speech capabilities resolved", map[string]interface{}{
		"recognizer":  sc.cfg.Speech.Recognizer.Provider,
		"synthesizer": sc.cfg.Speech.Synthesizer.Provider,
		"recognition": caps.Recognition,
		"synthesis":   caps.Synthesis,
	})
	return nil
}

// newRecognizer returns nil when recognition is disabled. The recognizer has no audio source of
// its own; callers attach one per request with speech.WithAudioSource.
func (sc *ServiceContainer) newRecognizer() speech.Recognizer {
	rc := sc.cfg.Speech.Recognizer
	switch rc.Provider {
	case "openai":
		return openaispeech.NewRecognizer(openaispeech.Config{
			APIKey:  rc.APIKey,
			BaseURL: rc.BaseURL,
			Model:   rc.Model,
		}, nil, sc.logger)
	default:
		return nil
	}
}

func (sc *ServiceContainer) newSynthesizer() speech.Synthesizer {
	sy := sc.cfg.Speech.Synthesizer
	var sink speech.AudioSink
	if sy.Player != "" {
		sink = speech.NewPlayerSink(sy.Player)
	}

	switch sy.Provider {
	case "openai":
		return openaispeech.NewSynthesizer(openaispeech.Config{
			APIKey:   sy.APIKey,
			BaseURL:  sy.BaseURL,
			Model:    sy.Model,
			Voice:    sy.Voice,
			Language: sy.Language,
		}, sink, sc.logger)
	case "espeak":
		return espeak.NewSynthesizer(espeak.Config{BinaryPath: sy.BinaryPath}, sink, sc.logger)
	default:
		return nil
	}
}
