package serviceinterfaces

import (
	"context"
	"io"
	"time"

	"voxbridge/internal/speech"
)

// TranscriptionResult is produced once per recognition session. Language is the code the
// caller asked for, not the speech locale.
type TranscriptionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// SynthesisOptions describes one utterance. Nil prosody values mean 1 (normal).
type SynthesisOptions struct {
	Text     string    `json:"text" validate:"required"`
	Language string    `json:"language"`
	Voice    string    `json:"voice,omitempty"`
	Rate     *float64  `json:"rate,omitempty" validate:"omitnil,gte=0.1,lte=10"`
	Pitch    *float64  `json:"pitch,omitempty" validate:"omitnil,gte=0,lte=2"`
	Volume   *float64  `json:"volume,omitempty" validate:"omitnil,gte=0,lte=1"`
	Output   io.Writer `json:"-" validate:"-"`
}

// SpeechCapabilities reports which host capabilities are present
type SpeechCapabilities struct {
	Recognition bool `json:"recognition"`
	Synthesis   bool `json:"synthesis"`
}

// SpeechService defines the interface for the speech adapter
type SpeechService interface {
	// ConvertToSpeechLocale maps a language code onto its speech locale tag
	ConvertToSpeechLocale(code string) string

	// RecognizeSpeech runs one recognition session. Observers are optional.
	RecognizeSpeech(ctx context.Context, language string, onResult func(TranscriptionResult), onError func(string)) (*TranscriptionResult, error)

	// SynthesizeSpeech speaks one utterance and returns when the host reports its end
	SynthesizeSpeech(ctx context.Context, opts SynthesisOptions) error

	// GetAvailableVoices returns the host's current voice list
	GetAvailableVoices() []speech.Voice

	// WaitForVoices polls until the host voice list is non-empty or maxWait elapses
	WaitForVoices(ctx context.Context, maxWait time.Duration) ([]speech.Voice, error)

	// StopSpeaking cancels the current utterance if one is playing
	StopSpeaking()

	// StopListening stops the current recognition session if any
	StopListening()

	// IsSupported is true only when both recognition and synthesis are present
	IsSupported() bool

	// Capabilities reports recognition and synthesis presence separately
	Capabilities() SpeechCapabilities
}
