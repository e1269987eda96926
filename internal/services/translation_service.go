package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"voxbridge/internal/config"
	"voxbridge/internal/languages"
	"voxbridge/internal/observability"
	"voxbridge/internal/serviceinterfaces"
	contextutils "voxbridge/internal/utils"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// TranslationServiceInterface defines the interface for translation services
type TranslationServiceInterface = serviceinterfaces.TranslationService

// BuildPrompt builds the instruction sent to the generation provider
func BuildPrompt(text, fromLanguage, toLanguage string) string {
	return fmt.Sprintf("Translate the following text from %s to %s.\n"+
		"Only return the translated text, nothing else. Do not include any explanations or additional text.\n\n"+
		"Text to translate: \"%s\"",
		languages.DisplayName(fromLanguage), languages.DisplayName(toLanguage), text)
}

// translationCore holds the fail-soft and batch behaviour shared by every provider.
// generate performs exactly one provider call and returns the raw translated text.
type translationCore struct {
	provider string
	generate func(ctx context.Context, prompt string) (string, error)
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// GetLanguageName returns the English display name for a language code
func (c *translationCore) GetLanguageName(code string) string {
	return languages.DisplayName(code)
}

// ProviderName returns the configured provider code
func (c *translationCore) ProviderName() string {
	return c.provider
}

// TranslateText translates one request. It never returns an error: on any failure the result
// echoes the original text with confidence 0 and Error set.
func (c *translationCore) TranslateText(ctx context.Context, req serviceinterfaces.TranslationRequest) serviceinterfaces.TranslationResult {
	var err error
	ctx, span := observability.TraceTranslationFunction(ctx, "translate_text",
		observability.AttributeProvider(c.provider),
		attribute.String("translation.from_language", req.FromLanguage),
		attribute.String("translation.to_language", req.ToLanguage),
		observability.AttributeTextLength(len(req.Text)),
	)
	defer observability.FinishSpan(span, &err)

	translated, err := c.generate(ctx, BuildPrompt(req.Text, req.FromLanguage, req.ToLanguage))
	if err != nil {
		fields := map[string]interface{}{
			"provider":      c.provider,
			"from_language": req.FromLanguage,
			"to_language":   req.ToLanguage,
			"text_length":   len(req.Text),
		}
		if contextutils.GetErrorSeverity(err) == contextutils.SeverityWarn {
			fields["error"] = err.Error()
			c.logger.Warn(ctx, "Translation skipped", fields)
		} else {
			c.logger.Error(ctx, "Translation error", err, fields)
		}
		c.metrics.RecordTranslation(ctx, c.provider, false)
		return serviceinterfaces.TranslationResult{
			TranslatedText: req.Text,
			Confidence:     0,
			Error:          failureMessage(err),
		}
	}

	if translated == "" {
		translated = req.Text
	}
	c.metrics.RecordTranslation(ctx, c.provider, true)
	return serviceinterfaces.TranslationResult{
		TranslatedText: translated,
		Confidence:     config.TranslationConfidence,
	}
}

// failureMessage renders an error for TranslationResult.Error without the code prefix
func failureMessage(err error) string {
	var appErr *contextutils.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Details != "" {
		return appErr.Message + ": " + appErr.Details
	}
	return appErr.Message
}

// BatchTranslate runs every request concurrently and returns results in input order
func (c *translationCore) BatchTranslate(ctx context.Context, reqs []serviceinterfaces.TranslationRequest) []serviceinterfaces.TranslationResult {
	ctx, span := observability.TraceTranslationFunction(ctx, "batch_translate",
		observability.AttributeProvider(c.provider),
		attribute.Int("translation.batch_size", len(reqs)),
	)
	defer span.End()

	results := make([]serviceinterfaces.TranslationResult, len(reqs))
	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = c.TranslateText(ctx, req)
			return nil
		})
	}
	// TranslateText never fails, so neither does the group
	_ = g.Wait()

	return results
}

// GeminiTranslationService translates with the Gemini generateContent endpoint
type GeminiTranslationService struct {
	*translationCore
	providerConfig config.TranslationProviderConfig
	httpClient     *http.Client
}

// NewGeminiTranslationService creates a new Gemini translation service instance
func NewGeminiTranslationService(cfg *config.Config, providerConfig config.TranslationProviderConfig, logger *observability.Logger, metrics *observability.Metrics) *GeminiTranslationService {
	s := &GeminiTranslationService{
		providerConfig: providerConfig,
		httpClient: &http.Client{
			Timeout:   cfg.Translation.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	s.translationCore = &translationCore{
		provider: providerConfig.Code,
		generate: s.generate,
		logger:   logger,
		metrics:  metrics,
	}
	return s
}

// GeminiRequest represents the request format for the generateContent API
type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
}

// GeminiContent is one message of a generateContent exchange
type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is one text part of a message
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiResponse represents the response format from the generateContent API
type GeminiResponse struct {
	Candidates []struct {
		Content GeminiContent `json:"content"`
	} `json:"candidates"`
}

// endpoint returns <base>/v1/models/<model>:generateContent?key=<key>
func (s *GeminiTranslationService) endpoint() string {
	base := strings.TrimRight(s.providerConfig.BaseURL, "/")
	return fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", base, s.providerConfig.Model, url.QueryEscape(s.providerConfig.APIKey))
}

func (s *GeminiTranslationService) generate(ctx context.Context, prompt string) (result string, err error) {
	ctx, span := observability.TraceTranslationFunction(ctx, "generate_gemini",
		observability.AttributeProvider(s.providerConfig.Code),
		attribute.String("translation.model", s.providerConfig.Model),
	)
	defer observability.FinishSpan(span, &err)

	jsonBody, err := json.Marshal(GeminiRequest{
		Contents: []GeminiContent{{Parts: []GeminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", contextutils.WrapError(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(jsonBody))
	if err != nil {
		return "", contextutils.WrapError(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", contextutils.NewAppErrorWithCause(contextutils.ErrorCodeServiceUnavailable, contextutils.SeverityError,
			"Translation request failed", redactKey(err.Error(), s.providerConfig.APIKey), err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", contextutils.NewAppError(contextutils.ErrorCodeProviderStatus, contextutils.SeverityError,
			fmt.Sprintf("Translation API error: %d", resp.StatusCode), string(body))
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", contextutils.WrapError(err, "failed to decode response")
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(geminiResp.Candidates[0].Content.Parts[0].Text), nil
}

// redactKey keeps the API key out of logged transport errors, which quote the request URL
func redactKey(msg, key string) string {
	if key == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(msg, key, "REDACTED")
}

// OpenAITranslationService translates with an OpenAI-compatible chat completion endpoint
type OpenAITranslationService struct {
	*translationCore
	client *openai.Client
	model  string
}

// NewOpenAITranslationService creates a new OpenAI-compatible translation service instance
func NewOpenAITranslationService(cfg *config.Config, providerConfig config.TranslationProviderConfig, logger *observability.Logger, metrics *observability.Metrics) *OpenAITranslationService {
	clientConfig := openai.DefaultConfig(providerConfig.APIKey)
	if providerConfig.BaseURL != "" {
		clientConfig.BaseURL = providerConfig.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout:   cfg.Translation.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	s := &OpenAITranslationService{
		client: openai.NewClientWithConfig(clientConfig),
		model:  providerConfig.Model,
	}
	s.translationCore = &translationCore{
		provider: providerConfig.Code,
		generate: s.generate,
		logger:   logger,
		metrics:  metrics,
	}
	return s
}

func (s *OpenAITranslationService) generate(ctx context.Context, prompt string) (result string, err error) {
	ctx, span := observability.TraceTranslationFunction(ctx, "generate_openai",
		observability.AttributeProvider(s.provider),
		attribute.String("translation.model", s.model),
	)
	defer observability.FinishSpan(span, &err)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", contextutils.NewAppErrorWithCause(contextutils.ErrorCodeProviderStatus, contextutils.SeverityError,
				fmt.Sprintf("Translation API error: %d", apiErr.HTTPStatusCode), apiErr.Message, err)
		}
		return "", contextutils.NewAppErrorWithCause(contextutils.ErrorCodeServiceUnavailable, contextutils.SeverityError,
			"Translation request failed", err.Error(), err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// NoopTranslationService echoes input when translation is disabled or misconfigured
type NoopTranslationService struct {
	*translationCore
}

// NewNoopTranslationService creates a new noop translation service instance
func NewNoopTranslationService(logger *observability.Logger) *NoopTranslationService {
	return &NoopTranslationService{translationCore: &translationCore{
		provider: "noop",
		generate: func(_ context.Context, _ string) (string, error) {
			return "", contextutils.NewAppError(contextutils.ErrorCodeServiceUnavailable, contextutils.SeverityWarn,
				"translation disabled", "")
		},
		logger: logger,
	}}
}

// NewTranslationService creates a translation service based on configuration.
// Disabled translation, a missing provider or an unknown provider code all yield the noop service.
func NewTranslationService(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) TranslationServiceInterface {
	if !cfg.Translation.Enabled {
		return NewNoopTranslationService(logger)
	}

	providerConfig, exists := cfg.ActiveProvider()
	if !exists {
		logger.Warn(context.Background(), "Translation provider not configured, translation disabled", map[string]interface{}{
			"provider": cfg.Translation.DefaultProvider,
		})
		return NewNoopTranslationService(logger)
	}

	switch providerConfig.Code {
	case "gemini":
		return NewGeminiTranslationService(cfg, providerConfig, logger, metrics)
	case "openai":
		return NewOpenAITranslationService(cfg, providerConfig, logger, metrics)
	default:
		logger.Warn(context.Background(), "Unsupported translation provider, translation disabled", map[string]interface{}{
			"provider": providerConfig.Code,
		})
		return NewNoopTranslationService(logger)
	}
}
