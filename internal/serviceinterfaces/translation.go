// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"
)

// TranslationRequest represents a translation request
type TranslationRequest struct {
	Text         string `json:"text"`
	FromLanguage string `json:"from_language"`
	ToLanguage   string `json:"to_language"`
}

// TranslationResult represents a translation outcome. Confidence is 0.95 on success and 0 on
// failure; Error describes the failure and is empty on success.
type TranslationResult struct {
	TranslatedText string  `json:"translated_text"`
	Confidence     float64 `json:"confidence"`
	Error          string  `json:"error,omitempty"`
}

// Failed reports whether the provider call failed and TranslatedText echoes the input
func (r TranslationResult) Failed() bool {
	return r.Error != ""
}

// TranslationService defines the interface for translation services. Neither method returns
// an error: failures come back as results echoing the original text.
type TranslationService interface {
	// GetLanguageName returns the English display name for a language code
	GetLanguageName(code string) string

	// TranslateText translates one request with a single provider call
	TranslateText(ctx context.Context, req TranslationRequest) TranslationResult

	// BatchTranslate translates all requests concurrently, preserving input order
	BatchTranslate(ctx context.Context, reqs []TranslationRequest) []TranslationResult

	// ProviderName returns the configured provider code
	ProviderName() string
}
