package handlers

import (
	"net/http"

	"voxbridge/internal/config"
	"voxbridge/internal/languages"
	"voxbridge/internal/observability"
	"voxbridge/internal/serviceinterfaces"
	"voxbridge/internal/services"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// BatchTranslationRequest is the body of POST /v1/translate/batch
type BatchTranslationRequest struct {
	Requests []serviceinterfaces.TranslationRequest `json:"requests"`
}

// BatchTranslationResponse is the reply of POST /v1/translate/batch
type BatchTranslationResponse struct {
	Results []serviceinterfaces.TranslationResult `json:"results"`
}

// LanguageInfo describes one supported language
type LanguageInfo struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	SpeechLocale string `json:"speech_locale"`
}

// TranslationHandler handles translation related HTTP requests
type TranslationHandler struct {
	translationService services.TranslationServiceInterface
	cfg                *config.Config
	logger             *observability.Logger
}

// NewTranslationHandler creates a new TranslationHandler instance
func NewTranslationHandler(translationService services.TranslationServiceInterface, cfg *config.Config, logger *observability.Logger) *TranslationHandler {
	return &TranslationHandler{
		translationService: translationService,
		cfg:                cfg,
		logger:             logger,
	}
}

// ListLanguages returns the supported language table
func (h *TranslationHandler) ListLanguages(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_languages")
	defer observability.FinishSpan(span, nil)

	codes := languages.Supported()
	out := make([]LanguageInfo, 0, len(codes))
	for _, code := range codes {
		out = append(out, LanguageInfo{
			Code:         string(code),
			Name:         h.translationService.GetLanguageName(string(code)),
			SpeechLocale: languages.SpeechLocale(string(code)),
		})
	}
	c.JSON(http.StatusOK, out)
}

// TranslateText handles text translation requests. Provider failures are reported in the
// result body with a 200 status; only malformed requests are rejected.
func (h *TranslationHandler) TranslateText(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "translate_text")
	defer observability.FinishSpan(span, nil)

	var req serviceinterfaces.TranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "Invalid translation request format", map[string]interface{}{"error": err.Error()})
		HandleValidationError(c, "request body", "", err.Error())
		return
	}
	if len(req.Text) > config.MaxTranslationTextLength {
		HandleValidationError(c, "text", len(req.Text), "text exceeds the maximum length")
		return
	}

	span.SetAttributes(
		attribute.String("translation.source_language", req.FromLanguage),
		attribute.String("translation.target_language", req.ToLanguage),
		attribute.Int("translation.text_length", len(req.Text)),
		attribute.String("translation.provider", h.translationService.ProviderName()),
	)

	result := h.translationService.TranslateText(ctx, req)
	if result.Failed() {
		span.SetAttributes(attribute.String("translation.error", result.Error))
	}
	c.JSON(http.StatusOK, result)
}

// BatchTranslate translates every request concurrently and answers in request order
func (h *TranslationHandler) BatchTranslate(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "batch_translate")
	defer observability.FinishSpan(span, nil)

	var req BatchTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "Invalid batch translation request format", map[string]interface{}{"error": err.Error()})
		HandleValidationError(c, "request body", "", err.Error())
		return
	}
	if len(req.Requests) > config.MaxBatchSize {
		HandleValidationError(c, "requests", len(req.Requests), "batch exceeds the maximum size")
		return
	}

	span.SetAttributes(attribute.Int("translation.batch_size", len(req.Requests)))

	c.JSON(http.StatusOK, BatchTranslationResponse{
		Results: h.translationService.BatchTranslate(ctx, req.Requests),
	})
}

// RegisterRoutes registers the translation routes on a /v1 group
func (h *TranslationHandler) RegisterRoutes(v1 *gin.RouterGroup, validation gin.HandlerFunc) {
	v1.GET("/languages", h.ListLanguages)
	v1.POST("/translate", validation, h.TranslateText)
	v1.POST("/translate/batch", validation, h.BatchTranslate)
}
