package openaispeech

import (
	"context"
	"errors"
	"math"
	"sync"

	"voxbridge/internal/languages"
	"voxbridge/internal/observability"
	"voxbridge/internal/speech"

	"github.com/sashabaranov/go-openai"
)

// Recognizer transcribes one clip per session, read from the context's audio source
// or the one it was built with
type Recognizer struct {
	client *openai.Client
	model  string
	source speech.AudioSource
	logger *observability.Logger

	mu       sync.Mutex
	settings speech.RecognitionSettings
	handler  func(speech.RecognitionEvent)
	cancel   context.CancelFunc
}

// NewRecognizer creates a recognizer reading audio from source
func NewRecognizer(cfg Config, source speech.AudioSource, logger *observability.Logger) *Recognizer {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Recognizer{
		client: newClient(cfg),
		model:  model,
		source: source,
		logger: logger,
	}
}

// Configure implements speech.Recognizer
func (r *Recognizer) Configure(settings speech.RecognitionSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = settings
}

// OnEvent implements speech.Recognizer
func (r *Recognizer) OnEvent(handler func(speech.RecognitionEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Start begins transcription in the background and returns immediately
func (r *Recognizer) Start(ctx context.Context) error {
	source := speech.AudioSourceFromContext(ctx, r.source)
	if source == nil {
		return errors.New("no audio source configured")
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return errors.New("recognition already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	settings := r.settings
	r.mu.Unlock()

	go r.run(runCtx, source, settings)
	return nil
}

// Stop aborts an in-flight transcription; the session ends with an "aborted" error event
func (r *Recognizer) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Recognizer) run(ctx context.Context, source speech.AudioSource, settings speech.RecognitionSettings) {
	defer func() {
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
		r.mu.Unlock()
	}()

	audio, name, err := source.Open(ctx)
	if err != nil {
		r.emit(speech.ErrorEvent(speech.ErrorCodeAudio, err))
		return
	}
	defer audio.Close()

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: name,
		Reader:   audio,
		Language: languages.PrimarySubtag(settings.Lang),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		if ctx.Err() != nil {
			r.emit(speech.ErrorEvent(speech.ErrorCodeAborted, ctx.Err()))
			return
		}
		r.logger.Error(ctx, "Whisper transcription failed", err, map[string]interface{}{
			"model": r.model,
			"lang":  settings.Lang,
		})
		r.emit(speech.ErrorEvent(speech.ErrorCodeNetwork, err))
		return
	}

	text := resp.Text
	if text == "" {
		r.emit(speech.ErrorEvent(speech.ErrorCodeNoSpeech, nil))
		return
	}

	logprobs := make([]float64, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		logprobs = append(logprobs, seg.AvgLogprob)
	}
	r.emit(speech.ResultEvent(speech.Alternative{Transcript: text, Confidence: confidenceFromLogprobs(logprobs)}))
}

func (r *Recognizer) emit(ev speech.RecognitionEvent) {
	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

// confidenceFromLogprobs maps the mean segment log-probability onto [0,1]
func confidenceFromLogprobs(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return 1
	}
	var sum float64
	for _, lp := range logprobs {
		sum += lp
	}
	c := math.Exp(sum / float64(len(logprobs)))
	return math.Max(0, math.Min(1, c))
}
