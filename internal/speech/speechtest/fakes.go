// Package speechtest provides scriptable in-memory speech capabilities for tests.
package speechtest

import (
	"context"
	"sync"

	"voxbridge/internal/speech"
)

// Recognizer emits a scripted event on Start. With Manual set it emits nothing until Emit.
type Recognizer struct {
	Event    speech.RecognitionEvent
	Manual   bool
	StartErr error

	mu       sync.Mutex
	settings []speech.RecognitionSettings
	handler  func(speech.RecognitionEvent)
	starts   int
	stops    int
	started  chan struct{}
}

// NewRecognizer returns a recognizer that answers every Start with ev
func NewRecognizer(ev speech.RecognitionEvent) *Recognizer {
	return &Recognizer{Event: ev, started: make(chan struct{}, 16)}
}

// NewManualRecognizer returns a recognizer that waits for Emit
func NewManualRecognizer() *Recognizer {
	return &Recognizer{Manual: true, started: make(chan struct{}, 16)}
}

// Configure implements speech.Recognizer
func (r *Recognizer) Configure(settings speech.RecognitionSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = append(r.settings, settings)
}

// OnEvent implements speech.Recognizer
func (r *Recognizer) OnEvent(handler func(speech.RecognitionEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Start implements speech.Recognizer
func (r *Recognizer) Start(_ context.Context) error {
	r.mu.Lock()
	r.starts++
	r.mu.Unlock()
	if r.StartErr != nil {
		return r.StartErr
	}
	r.started <- struct{}{}
	if !r.Manual {
		go r.Emit(r.Event)
	}
	return nil
}

// Stop implements speech.Recognizer and reports "aborted" to a listening session
func (r *Recognizer) Stop() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
	r.Emit(speech.ErrorEvent(speech.ErrorCodeAborted, nil))
}

// Emit delivers ev to the registered handler
func (r *Recognizer) Emit(ev speech.RecognitionEvent) {
	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

// Started is signalled once per successful Start
func (r *Recognizer) Started() <-chan struct{} {
	return r.started
}

// Settings returns every configuration applied so far
func (r *Recognizer) Settings() []speech.RecognitionSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]speech.RecognitionSettings(nil), r.settings...)
}

// Stops returns how many times Stop was called
func (r *Recognizer) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Synthesizer records utterances and ends them with FailCode, or cleanly when it is empty.
// With Hold set, utterances stay in progress until Cancel.
type Synthesizer struct {
	FailCode string
	Hold     bool
	// Audio is written to the utterance output before it ends
	Audio []byte

	mu         sync.Mutex
	voices     []speech.Voice
	utterances []*speech.Utterance
	current    *speech.Utterance
	cancels    int
}

// NewSynthesizer returns a synthesizer advertising voices
func NewSynthesizer(voices ...speech.Voice) *Synthesizer {
	return &Synthesizer{voices: voices}
}

// SetVoices replaces the voice list, simulating a late voices-ready signal
func (s *Synthesizer) SetVoices(voices ...speech.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = voices
}

// Voices implements speech.Synthesizer
func (s *Synthesizer) Voices() []speech.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]speech.Voice(nil), s.voices...)
}

// Speak implements speech.Synthesizer
func (s *Synthesizer) Speak(_ context.Context, u *speech.Utterance) {
	s.mu.Lock()
	s.utterances = append(s.utterances, u)
	if s.Hold {
		s.current = u
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	go func() {
		if s.FailCode != "" {
			u.Fail(s.FailCode)
			return
		}
		if u.Output != nil && len(s.Audio) > 0 {
			_, _ = u.Output.Write(s.Audio)
		}
		u.End()
	}()
}

// Cancel implements speech.Synthesizer
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	s.cancels++
	u := s.current
	s.current = nil
	s.mu.Unlock()
	if u != nil {
		u.Fail(speech.ErrorCodeInterrupted)
	}
}

// Speaking implements speech.Synthesizer
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Utterances returns every utterance spoken so far
func (s *Synthesizer) Utterances() []*speech.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*speech.Utterance(nil), s.utterances...)
}

// Cancels returns how many times Cancel was called
func (s *Synthesizer) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}
