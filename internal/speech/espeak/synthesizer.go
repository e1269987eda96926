// Package espeak implements a local speech synthesizer on top of the espeak-ng command line tool.
// All of its voices are rendered on this machine.
package espeak

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"voxbridge/internal/languages"
	"voxbridge/internal/observability"
	"voxbridge/internal/speech"

	"golang.org/x/text/language"
)

// DefaultBinary is looked up on PATH when no binary path is configured
const DefaultBinary = "espeak-ng"

const (
	baseWordsPerMinute = 175
	minWordsPerMinute  = 80
	maxWordsPerMinute  = 450
	maxPitch           = 99
	maxAmplitude       = 200
)

// Config configures the espeak-ng synthesizer
type Config struct {
	BinaryPath string
}

// Synthesizer speaks utterances by running espeak-ng. Utterances without an Output go to the
// sink when one is set, otherwise espeak-ng plays them on the default audio device.
type Synthesizer struct {
	binary string
	sink   speech.AudioSink
	logger *observability.Logger

	mu       sync.Mutex
	voices   []speech.Voice
	ids      map[string]string
	loaded   chan struct{}
	speaking bool
	cancel   context.CancelFunc
	gen      uint64
}

// NewSynthesizer creates the synthesizer and starts loading the voice list in the background
func NewSynthesizer(cfg Config, sink speech.AudioSink, logger *observability.Logger) *Synthesizer {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = DefaultBinary
	}
	s := &Synthesizer{
		binary: binary,
		sink:   sink,
		logger: logger,
		ids:    map[string]string{},
		loaded: make(chan struct{}),
	}
	go s.loadVoices()
	return s
}

// Loaded is closed once the voice list load attempt has finished
func (s *Synthesizer) Loaded() <-chan struct{} {
	return s.loaded
}

func (s *Synthesizer) loadVoices() {
	defer close(s.loaded)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.binary, "--voices").Output()
	if err != nil {
		s.logger.Warn(ctx, "Failed to list espeak-ng voices", map[string]interface{}{
			"binary": s.binary,
			"error":  err.Error(),
		})
		return
	}

	voices, ids := parseVoices(out)
	s.mu.Lock()
	s.voices = voices
	s.ids = ids
	s.mu.Unlock()

	s.logger.Info(ctx, "Loaded espeak-ng voices", map[string]interface{}{"count": len(voices)})
}

// parseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US           (en 10)
func parseVoices(out []byte) ([]speech.Voice, map[string]string) {
	var voices []speech.Voice
	ids := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		id := fields[1]
		name := strings.ReplaceAll(fields[3], "_", " ")

		lang := id
		if tag, err := language.Parse(id); err == nil {
			lang = tag.String()
		}

		voices = append(voices, speech.Voice{
			Name:         name,
			Lang:         lang,
			LocalService: true,
			Default:      id == "en-us",
			URI:          "espeak:" + fields[4],
		})
		ids[name] = id
	}
	return voices, ids
}

// Voices implements speech.Synthesizer; the list is empty until loading finishes
func (s *Synthesizer) Voices() []speech.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
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

// Cancel kills the running espeak-ng process
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
		s.cancel()
	}
	s.speaking = true
	s.cancel = cancel
	s.gen++
	gen := s.gen
	voiceID := s.voiceID(u)
	s.mu.Unlock()

	go s.speak(runCtx, cancel, gen, voiceID, u)
}

// voiceID picks the espeak-ng voice identifier; callers hold s.mu
func (s *Synthesizer) voiceID(u *speech.Utterance) string {
	if u.Voice != nil {
		if id, ok := s.ids[u.Voice.Name]; ok {
			return id
		}
	}
	lang := strings.ToLower(u.Lang)
	for _, id := range s.ids {
		if id == lang {
			return id
		}
	}
	if sub := languages.PrimarySubtag(u.Lang); sub != "" {
		return sub
	}
	return string(languages.DefaultCode)
}

func (s *Synthesizer) speak(ctx context.Context, cancel context.CancelFunc, gen uint64, voiceID string, u *speech.Utterance) {
	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.speaking = false
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	args := []string{
		"-v", voiceID,
		"-s", strconv.Itoa(wordsPerMinute(u.Rate)),
		"-p", strconv.Itoa(pitch(u.Pitch)),
		"-a", strconv.Itoa(amplitude(u.Volume)),
	}

	cmd := exec.CommandContext(ctx, s.binary)
	cmd.Stdin = strings.NewReader(u.Text)
	cmd.WaitDelay = time.Second

	var sinkWriter io.WriteCloser
	out := u.Output
	if out == nil && s.sink != nil {
		w, err := s.sink.Open(ctx, "audio/wav")
		if err != nil {
			s.fail(ctx, u, err)
			return
		}
		sinkWriter = w
		out = w
	}
	if out != nil {
		args = append(args, "--stdout")
		cmd.Stdout = out
	}
	cmd.Args = append(cmd.Args, append(args, "--stdin")...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if sinkWriter != nil {
		// The sink must have drained before the utterance reports its end
		if closeErr := sinkWriter.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		s.logger.Debug(ctx, "espeak-ng stderr", map[string]interface{}{"stderr": stderr.String()})
		s.fail(ctx, u, err)
		return
	}
	u.End()
}

func (s *Synthesizer) fail(ctx context.Context, u *speech.Utterance, err error) {
	if ctx.Err() != nil {
		u.Fail(speech.ErrorCodeInterrupted)
		return
	}
	s.logger.Error(ctx, "espeak-ng synthesis failed", err, map[string]interface{}{"binary": s.binary})
	u.Fail(speech.ErrorCodeSynthesisFailed)
}

// wordsPerMinute maps a speech rate (1 = normal) onto espeak-ng's -s range
func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	return clampInt(int(baseWordsPerMinute*rate+0.5), minWordsPerMinute, maxWordsPerMinute)
}

// pitch maps 0..2 (1 = normal) onto espeak-ng's 0..99
func pitch(p float64) int {
	return clampInt(int(p*50+0.5), 0, maxPitch)
}

// amplitude maps 0..1 onto espeak-ng's 0..100, its default being 100
func amplitude(v float64) int {
	return clampInt(int(v*100+0.5), 0, maxAmplitude)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
