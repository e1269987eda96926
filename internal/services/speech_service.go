package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"voxbridge/internal/languages"
	"voxbridge/internal/observability"
	"voxbridge/internal/serviceinterfaces"
	"voxbridge/internal/speech"
	contextutils "voxbridge/internal/utils"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
)

// SpeechServiceInterface defines the interface for the speech adapter
type SpeechServiceInterface = serviceinterfaces.SpeechService

const (
	recognitionUnsupportedMessage = "Speech recognition not supported in this environment"
	synthesisUnsupportedMessage   = "Speech synthesis not supported in this environment"
)

var errNoVoices = errors.New("voice list is empty")

// SpeechService brokers one-shot recognition and synthesis through the host capabilities.
// Either capability may be nil; calls needing it then fail with SPEECH_UNSUPPORTED.
type SpeechService struct {
	recognizer  speech.Recognizer
	synthesizer speech.Synthesizer
	logger      *observability.Logger
	metrics     *observability.Metrics
	validate    *validator.Validate

	mu        sync.Mutex
	listening bool
}

// NewSpeechService creates a new speech service instance
func NewSpeechService(recognizer speech.Recognizer, synthesizer speech.Synthesizer, logger *observability.Logger) *SpeechService {
	if recognizer != nil {
		recognizer.Configure(singleShot(languages.DefaultSpeechLocale))
	}
	return &SpeechService{
		recognizer:  recognizer,
		synthesizer: synthesizer,
		logger:      logger,
		validate:    validator.New(),
	}
}

// SetMetrics attaches domain counters
func (s *SpeechService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

func singleShot(locale string) speech.RecognitionSettings {
	return speech.RecognitionSettings{
		Lang:            locale,
		Continuous:      false,
		InterimResults:  false,
		MaxAlternatives: 1,
	}
}

// ConvertToSpeechLocale maps a language code onto its speech locale tag
func (s *SpeechService) ConvertToSpeechLocale(code string) string {
	return languages.SpeechLocale(code)
}

// RecognizeSpeech runs one recognition session and returns its transcript. The result carries
// the requested language code, not the locale. A second call while one is pending fails with
// SPEECH_BUSY; cancelling ctx stops the recognizer.
func (s *SpeechService) RecognizeSpeech(ctx context.Context, language string, onResult func(serviceinterfaces.TranscriptionResult), onError func(string)) (result *serviceinterfaces.TranscriptionResult, err error) {
	if language == "" {
		language = string(languages.DefaultCode)
	}

	ctx, span := observability.TraceSpeechFunction(ctx, "recognize_speech", observability.AttributeLanguage(language))
	defer observability.FinishSpan(span, &err)

	if s.recognizer == nil {
		notifyError(onError, recognitionUnsupportedMessage)
		s.metrics.RecordSpeech(ctx, "recognize", "unsupported")
		return nil, contextutils.NewAppError(contextutils.ErrorCodeSpeechUnsupported, contextutils.SeverityWarn, recognitionUnsupportedMessage, "")
	}

	s.mu.Lock()
	if s.listening {
		s.mu.Unlock()
		return nil, contextutils.ErrSpeechBusy
	}
	s.listening = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
	}()

	// Only the first terminal event of a session counts
	events := make(chan speech.RecognitionEvent, 1)
	s.recognizer.Configure(singleShot(languages.SpeechLocale(language)))
	s.recognizer.OnEvent(func(ev speech.RecognitionEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer s.recognizer.OnEvent(nil)

	if err := s.recognizer.Start(ctx); err != nil {
		msg := fmt.Sprintf("Speech recognition error: %v", err)
		notifyError(onError, msg)
		s.metrics.RecordSpeech(ctx, "recognize", "error")
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeRecognitionFailed, contextutils.SeverityError, msg, "", err)
	}

	select {
	case ev := <-events:
		if top, ok := ev.Top(); ok {
			result = &serviceinterfaces.TranscriptionResult{
				Text:       top.Transcript,
				Confidence: math.Max(0, math.Min(1, top.Confidence)),
				Language:   language,
			}
			if onResult != nil {
				onResult(*result)
			}
			s.metrics.RecordSpeech(ctx, "recognize", "success")
			return result, nil
		}

		code := ev.Code
		if ev.Kind == speech.RecognitionResult {
			code = speech.ErrorCodeNoSpeech
		}
		msg := "Speech recognition error: " + code
		s.logger.Warn(ctx, "Speech recognition failed", map[string]interface{}{
			"language": language,
			"code":     code,
		})
		notifyError(onError, msg)
		s.metrics.RecordSpeech(ctx, "recognize", "error")
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeRecognitionFailed, contextutils.SeverityError, msg, code, ev.Err)

	case <-ctx.Done():
		s.recognizer.Stop()
		notifyError(onError, "Speech recognition error: "+speech.ErrorCodeAborted)
		s.metrics.RecordSpeech(ctx, "recognize", "cancelled")
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeTimeout, contextutils.SeverityWarn,
			"Speech recognition cancelled", "", ctx.Err())
	}
}

func notifyError(onError func(string), msg string) {
	if onError != nil {
		onError(msg)
	}
}

// SynthesizeSpeech speaks one utterance and returns once the host reports its end.
// Rate, pitch and volume reach the utterance; cancelling ctx cancels the synthesizer.
func (s *SpeechService) SynthesizeSpeech(ctx context.Context, opts serviceinterfaces.SynthesisOptions) (err error) {
	ctx, span := observability.TraceSpeechFunction(ctx, "synthesize_speech",
		observability.AttributeLanguage(opts.Language),
		observability.AttributeTextLength(len(opts.Text)),
	)
	defer observability.FinishSpan(span, &err)

	if s.synthesizer == nil {
		s.metrics.RecordSpeech(ctx, "synthesize", "unsupported")
		return contextutils.NewAppError(contextutils.ErrorCodeSpeechUnsupported, contextutils.SeverityWarn, synthesisUnsupportedMessage, "")
	}

	if err := s.validate.Struct(opts); err != nil {
		return contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn,
			"Invalid synthesis options", err.Error(), err)
	}

	locale := languages.SpeechLocale(opts.Language)
	u := speech.NewUtterance(opts.Text)
	u.Lang = locale
	u.Output = opts.Output
	if opts.Rate != nil {
		u.Rate = *opts.Rate
	}
	if opts.Pitch != nil {
		u.Pitch = *opts.Pitch
	}
	if opts.Volume != nil {
		u.Volume = *opts.Volume
	}

	if voice := s.selectVoice(ctx, opts.Voice, locale); voice != nil {
		u.Voice = voice
		s.logger.Info(ctx, "Selected voice", map[string]interface{}{
			"voice": voice.Name,
			"lang":  voice.Lang,
		})
	}

	// "" signals a clean end, anything else is the host error code
	done := make(chan string, 1)
	u.OnEnd = func() {
		select {
		case done <- "":
		default:
		}
	}
	u.OnError = func(code string) {
		select {
		case done <- code:
		default:
		}
	}

	s.synthesizer.Speak(ctx, u)

	select {
	case code := <-done:
		if code == "" {
			s.metrics.RecordSpeech(ctx, "synthesize", "success")
			return nil
		}
		msg := "Speech synthesis error: " + code
		s.metrics.RecordSpeech(ctx, "synthesize", "error")
		return contextutils.NewAppError(contextutils.ErrorCodeSynthesisFailed, contextutils.SeverityError, msg, code)
	case <-ctx.Done():
		s.synthesizer.Cancel()
		s.metrics.RecordSpeech(ctx, "synthesize", "cancelled")
		return contextutils.NewAppErrorWithCause(contextutils.ErrorCodeTimeout, contextutils.SeverityWarn,
			"Speech synthesis cancelled", "", ctx.Err())
	}
}

// selectVoice honours an explicitly named voice, then falls back to the first on-device
// voice whose language starts with the locale's primary subtag
func (s *SpeechService) selectVoice(ctx context.Context, name, locale string) *speech.Voice {
	voices := s.synthesizer.Voices()

	if name != "" {
		for i := range voices {
			if voices[i].Name == name {
				return &voices[i]
			}
		}
		s.logger.Warn(ctx, "Requested voice not available", map[string]interface{}{"voice": name})
	}

	prefix := languages.PrimarySubtag(locale)
	for i := range voices {
		if strings.HasPrefix(voices[i].Lang, prefix) && voices[i].LocalService {
			return &voices[i]
		}
	}
	return nil
}

// GetAvailableVoices returns the host's current voice list, empty when synthesis is absent
func (s *SpeechService) GetAvailableVoices() []speech.Voice {
	if s.synthesizer == nil {
		return []speech.Voice{}
	}
	voices := s.synthesizer.Voices()
	if voices == nil {
		return []speech.Voice{}
	}
	return voices
}

// WaitForVoices polls the host with exponential backoff until the voice list is non-empty or
// maxWait elapses. The list may still be empty; an error is returned only when ctx ends.
func (s *SpeechService) WaitForVoices(ctx context.Context, maxWait time.Duration) ([]speech.Voice, error) {
	if voices := s.GetAvailableVoices(); len(voices) > 0 || s.synthesizer == nil || maxWait <= 0 {
		return voices, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond

	voices, err := backoff.Retry(ctx, func() ([]speech.Voice, error) {
		voices := s.synthesizer.Voices()
		if len(voices) == 0 {
			return nil, errNoVoices
		}
		return voices, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(maxWait))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.GetAvailableVoices(), ctxErr
	}
	if err != nil {
		s.logger.Warn(ctx, "No voices became available", map[string]interface{}{"max_wait": maxWait.String()})
		return s.GetAvailableVoices(), nil
	}
	return voices, nil
}

// StopSpeaking cancels the current utterance when the host reports one in progress
func (s *SpeechService) StopSpeaking() {
	if s.synthesizer != nil && s.synthesizer.Speaking() {
		s.synthesizer.Cancel()
	}
}

// StopListening stops the current recognition session, if any
func (s *SpeechService) StopListening() {
	if s.recognizer != nil {
		s.recognizer.Stop()
	}
}

// IsSupported is true only when both recognition and synthesis are present
func (s *SpeechService) IsSupported() bool {
	return s.recognizer != nil && s.synthesizer != nil
}

// Capabilities reports recognition and synthesis presence separately
func (s *SpeechService) Capabilities() serviceinterfaces.SpeechCapabilities {
	return serviceinterfaces.SpeechCapabilities{
		Recognition: s.recognizer != nil,
		Synthesis:   s.synthesizer != nil,
	}
}
