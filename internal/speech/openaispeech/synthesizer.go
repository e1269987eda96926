package openaispeech

import (
	"context"
	"io"
	"strings"
	"sync"

	"voxbridge/internal/languages"
	"voxbridge/internal/observability"
	"voxbridge/internal/speech"

	"github.com/sashabaranov/go-openai"
)

const (
	minSpeed = 0.25
	maxSpeed = 4.0
)

var voiceNames = []openai.SpeechVoice{
	openai.VoiceAlloy,
	openai.VoiceEcho,
	openai.VoiceFable,
	openai.VoiceOnyx,
	openai.VoiceNova,
	openai.VoiceShimmer,
}

// Synthesizer speaks utterances with the OpenAI speech endpoint. Every voice is remote.
// Pitch and volume have no counterpart in the API; rate maps onto speed.
type Synthesizer struct {
	client       *openai.Client
	model        openai.SpeechModel
	defaultVoice openai.SpeechVoice
	voices       []speech.Voice
	sink         speech.AudioSink
	logger       *observability.Logger

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	gen      uint64
}

// NewSynthesizer creates a synthesizer; sink receives audio for utterances without an Output
func NewSynthesizer(cfg Config, sink speech.AudioSink, logger *observability.Logger) *Synthesizer {
	model := openai.SpeechModel(cfg.Model)
	if model == "" {
		model = openai.TTSModel1
	}
	defaultVoice := openai.SpeechVoice(cfg.Voice)
	if defaultVoice == "" {
		defaultVoice = openai.VoiceAlloy
	}
	if sink == nil {
		sink = speech.DiscardSink{}
	}
	lang := cfg.Language
	if lang == "" {
		lang = languages.DefaultSpeechLocale
	}

	voices := make([]speech.Voice, 0, len(voiceNames))
	for _, name := range voiceNames {
		voices = append(voices, speech.Voice{
			Name:    string(name),
			Lang:    lang,
			Default: name == defaultVoice,
			URI:     "openai:" + string(name),
		})
	}

	return &Synthesizer{
		client:       newClient(cfg),
		model:        model,
		defaultVoice: defaultVoice,
		voices:       voices,
		sink:         sink,
		logger:       logger,
	}
}

// Voices implements speech.Synthesizer
func (s *Synthesizer) Voices() []speech.Voice {
	out := make([]speech.Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

// Speaking implements speech.Synthesizer
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Cancel interrupts the utterance being spoken
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Speak implements speech.Synthesizer
func (s *Synthesizer) Speak(ctx context.Context, u *speech.Utterance) {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		// A new utterance interrupts the current one
		s.cancel()
	}
	s.speaking = true
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.speak(runCtx, cancel, gen, u)
}

func (s *Synthesizer) speak(ctx context.Context, cancel context.CancelFunc, gen uint64, u *speech.Utterance) {
	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.speaking = false
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	voice := s.defaultVoice
	if u.Voice != nil && u.Voice.Name != "" {
		voice = openai.SpeechVoice(u.Voice.Name)
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          u.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          clampSpeed(u.Rate),
	})
	if err != nil {
		s.fail(ctx, u, err)
		return
	}
	defer resp.Close()

	if u.Output != nil {
		_, err = io.Copy(u.Output, resp)
	} else {
		err = s.playToSink(ctx, resp)
	}
	if err != nil {
		s.fail(ctx, u, err)
		return
	}
	u.End()
}

// playToSink copies audio into the sink and waits for it to drain
func (s *Synthesizer) playToSink(ctx context.Context, audio io.Reader) error {
	w, err := s.sink.Open(ctx, "audio/mpeg")
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, audio); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *Synthesizer) fail(ctx context.Context, u *speech.Utterance, err error) {
	if ctx.Err() != nil {
		u.Fail(speech.ErrorCodeInterrupted)
		return
	}
	s.logger.Error(ctx, "OpenAI speech synthesis failed", err, map[string]interface{}{
		"model":       string(s.model),
		"text_length": len(strings.TrimSpace(u.Text)),
	})
	u.Fail(speech.ErrorCodeSynthesisFailed)
}

func clampSpeed(rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	if rate < minSpeed {
		return minSpeed
	}
	if rate > maxSpeed {
		return maxSpeed
	}
	return rate
}
