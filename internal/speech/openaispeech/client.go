// Package openaispeech implements the host speech capabilities on top of the OpenAI audio API:
// Whisper transcription for recognition and the speech endpoint for synthesis.
package openaispeech

import (
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config configures the OpenAI audio client
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Voice is the default synthesis voice
	Voice string
	// Language is the locale advertised for every synthesis voice
	Language string
}

func newClient(cfg Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return openai.NewClientWithConfig(clientConfig)
}
