package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voxbridge/internal/config"
	"voxbridge/internal/observability"
	"voxbridge/internal/serviceinterfaces"
	"voxbridge/internal/services"
	"voxbridge/internal/speech"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SpeechSupport is the reply of GET /v1/speech/support
type SpeechSupport struct {
	Supported   bool `json:"supported"`
	Recognition bool `json:"recognition"`
	Synthesis   bool `json:"synthesis"`
}

// SpeechLocale is the reply of GET /v1/speech/locale/:code
type SpeechLocale struct {
	Code         string `json:"code"`
	SpeechLocale string `json:"speech_locale"`
}

// uploadExtensions maps audio content types onto the file name hint transcription engines expect
var uploadExtensions = map[string]string{
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/wave":   "wav",
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/mp4":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/ogg":    "ogg",
	"audio/webm":   "webm",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
}

// SpeechHandler exposes the speech adapter over HTTP
type SpeechHandler struct {
	speechService services.SpeechServiceInterface
	cfg           *config.Config
	logger        *observability.Logger
}

// NewSpeechHandler creates a new SpeechHandler instance
func NewSpeechHandler(speechService services.SpeechServiceInterface, cfg *config.Config, logger *observability.Logger) *SpeechHandler {
	return &SpeechHandler{
		speechService: speechService,
		cfg:           cfg,
		logger:        logger,
	}
}

// Support reports which speech capabilities the host provides
func (h *SpeechHandler) Support(c *gin.Context) {
	caps := h.speechService.Capabilities()
	c.JSON(http.StatusOK, SpeechSupport{
		Supported:   h.speechService.IsSupported(),
		Recognition: caps.Recognition,
		Synthesis:   caps.Synthesis,
	})
}

// Locale maps a language code onto its speech locale
func (h *SpeechHandler) Locale(c *gin.Context) {
	code := c.Param("code")
	c.JSON(http.StatusOK, SpeechLocale{
		Code:         code,
		SpeechLocale: h.speechService.ConvertToSpeechLocale(code),
	})
}

// Voices lists synthesis voices, optionally waiting up to wait_ms for the host to load them
func (h *SpeechHandler) Voices(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_voices")
	defer observability.FinishSpan(span, nil)

	wait := time.Duration(0)
	if raw := c.Query("wait_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			HandleValidationError(c, "wait_ms", raw, "must be a non-negative integer")
			return
		}
		wait = min(time.Duration(ms)*time.Millisecond, config.MaxVoicesWait)
	}

	voices, err := h.speechService.WaitForVoices(ctx, wait)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(attribute.Int("speech.voice_count", len(voices)))
	c.JSON(http.StatusOK, voices)
}

// Synthesize speaks the requested text and returns the produced audio
func (h *SpeechHandler) Synthesize(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "synthesize_speech")
	defer observability.FinishSpan(span, nil)

	var opts serviceinterfaces.SynthesisOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		h.logger.Warn(ctx, "Invalid synthesis request format", map[string]interface{}{"error": err.Error()})
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	var audio bytes.Buffer
	opts.Output = &audio

	if err := h.speechService.SynthesizeSpeech(ctx, opts); err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("speech.audio_bytes", audio.Len()))
	c.Data(http.StatusOK, synthesizedContentType(h.cfg.Speech.Synthesizer.Provider), audio.Bytes())
}

// Recognize transcribes the audio clip sent as the request body
func (h *SpeechHandler) Recognize(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "recognize_speech")
	defer observability.FinishSpan(span, nil)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxAudioUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleValidationError(c, "audio", tooLarge.Limit, "upload exceeds the maximum size")
			return
		}
		HandleValidationError(c, "audio", "", err.Error())
		return
	}
	if len(body) == 0 {
		HandleValidationError(c, "audio", "", "request body is empty")
		return
	}

	language := c.Query("language")
	span.SetAttributes(
		observability.AttributeLanguage(language),
		attribute.Int("speech.audio_bytes", len(body)),
	)

	source := speech.ReaderSource{Data: body, Name: uploadFileName(c.ContentType())}
	result, err := h.speechService.RecognizeSpeech(speech.WithAudioSource(ctx, source), language, nil, nil)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stop halts any utterance in progress and any listening session
func (h *SpeechHandler) Stop(c *gin.Context) {
	h.speechService.StopSpeaking()
	h.speechService.StopListening()
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the speech routes on a /v1 group
func (h *SpeechHandler) RegisterRoutes(v1 *gin.RouterGroup, validation gin.HandlerFunc) {
	group := v1.Group("/speech")
	group.GET("/support", h.Support)
	group.GET("/locale/:code", h.Locale)
	group.GET("/voices", h.Voices)
	group.POST("/synthesize", validation, h.Synthesize)
	group.POST("/recognize", h.Recognize)
	group.POST("/stop", h.Stop)
}

func synthesizedContentType(provider string) string {
	switch provider {
	case "openai":
		return "audio/mpeg"
	case "espeak":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func uploadFileName(contentType string) string {
	ext, ok := uploadExtensions[strings.ToLower(contentType)]
	if !ok {
		ext = "wav"
	}
	return "upload." + ext
}
