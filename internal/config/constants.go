package config

import "time"

// Config file discovery
const (
	ConfigFileEnv     = "VOXBRIDGE_CONFIG_FILE"
	DefaultConfigFile = "config.yaml"
)

// Defaults
const (
	DefaultPort                = "8080"
	DefaultServiceName         = "voxbridge"
	DefaultTranslationProvider = "gemini"
	DefaultGeminiBaseURL       = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel         = "gemini-1.5-flash"
	DefaultOpenAIChatModel     = "gpt-4o-mini"
)

// Timeout constants
const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultVoicesWait  = 2 * time.Second
	ShutdownTimeout    = 30 * time.Second
	TelemetryFlushWait = 5 * time.Second
)

// Translation constants
const (
	// TranslationConfidence is reported on success; providers do not return a confidence score
	TranslationConfidence = 0.95
	// MaxTranslationTextLength bounds request text accepted by the HTTP API
	MaxTranslationTextLength = 5000
	// MaxBatchSize bounds the number of requests accepted by the batch endpoint
	MaxBatchSize = 100
	// MaxAudioUploadBytes bounds the audio body accepted by the recognize endpoint
	MaxAudioUploadBytes = 25 << 20
	// MaxVoicesWait bounds the wait_ms query parameter of the voices endpoint
	MaxVoicesWait = 30 * time.Second
)
