// Package speech defines the host speech capabilities the speech service drives:
// a one-shot recognizer that reports typed events and a synthesizer that speaks utterances
// with a host-maintained voice list.
package speech

import (
	"context"
	"io"
)

// RecognitionSettings configures a recognition session before Start
type RecognitionSettings struct {
	Lang            string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// RecognitionEventKind tags a RecognitionEvent
type RecognitionEventKind int

const (
	// RecognitionResult carries transcript alternatives
	RecognitionResult RecognitionEventKind = iota
	// RecognitionError carries a host error code
	RecognitionError
)

// Host recognition error codes
const (
	ErrorCodeNoSpeech = "no-speech"
	ErrorCodeNetwork  = "network"
	ErrorCodeAborted  = "aborted"
	ErrorCodeAudio    = "audio-capture"
)

// Host synthesis error codes
const (
	ErrorCodeSynthesisFailed = "synthesis-failed"
	ErrorCodeInterrupted     = "interrupted"
)

// Alternative is one candidate transcript
type Alternative struct {
	Transcript string
	Confidence float64
}

// RecognitionEvent is emitted by a Recognizer. Only the fields matching Kind are set.
type RecognitionEvent struct {
	Kind         RecognitionEventKind
	Alternatives []Alternative
	Code         string
	Err          error
}

// Top returns the first alternative of a result event
func (e RecognitionEvent) Top() (Alternative, bool) {
	if e.Kind != RecognitionResult || len(e.Alternatives) == 0 {
		return Alternative{}, false
	}
	return e.Alternatives[0], true
}

// ResultEvent builds a result event
func ResultEvent(alternatives ...Alternative) RecognitionEvent {
	return RecognitionEvent{Kind: RecognitionResult, Alternatives: alternatives}
}

// ErrorEvent builds an error event
func ErrorEvent(code string, err error) RecognitionEvent {
	return RecognitionEvent{Kind: RecognitionError, Code: code, Err: err}
}

// Recognizer captures audio and reports transcripts through the registered handler.
// Start returns once capture has begun; events arrive asynchronously.
type Recognizer interface {
	Configure(settings RecognitionSettings)
	OnEvent(handler func(RecognitionEvent))
	Start(ctx context.Context) error
	Stop()
}

// Voice describes one synthesis voice known to the host
type Voice struct {
	Name         string `json:"name"`
	Lang         string `json:"lang"`
	LocalService bool   `json:"local_service"`
	Default      bool   `json:"default"`
	URI          string `json:"uri,omitempty"`
}

// Utterance is one piece of text to speak. A nil Output sends audio to the host's default sink.
type Utterance struct {
	Text   string
	Lang   string
	Voice  *Voice
	Rate   float64
	Pitch  float64
	Volume float64
	Output io.Writer

	OnEnd   func()
	OnError func(code string)
}

// NewUtterance returns an utterance with neutral rate, pitch and volume
func NewUtterance(text string) *Utterance {
	return &Utterance{Text: text, Rate: 1, Pitch: 1, Volume: 1}
}

// End invokes OnEnd if set
func (u *Utterance) End() {
	if u.OnEnd != nil {
		u.OnEnd()
	}
}

// Fail invokes OnError if set
func (u *Utterance) Fail(code string) {
	if u.OnError != nil {
		u.OnError(code)
	}
}

// Synthesizer speaks utterances. Speak queues the utterance and returns; completion is
// reported through the utterance handlers.
type Synthesizer interface {
	Voices() []Voice
	Speak(ctx context.Context, u *Utterance)
	Cancel()
	Speaking() bool
}
