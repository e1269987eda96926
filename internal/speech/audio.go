package speech

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// AudioSource supplies captured audio to a recognizer. The returned name is a file name
// hint whose extension tells remote engines the container format.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, string, error)
}

// FileSource reads audio from a file on disk
type FileSource struct {
	Path string
}

// Open implements AudioSource
func (s FileSource) Open(_ context.Context) (io.ReadCloser, string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, "", err
	}
	return f, filepath.Base(s.Path), nil
}

// ReaderSource serves audio already held in memory, such as an uploaded request body
type ReaderSource struct {
	Data []byte
	Name string
}

// Open implements AudioSource
func (s ReaderSource) Open(_ context.Context) (io.ReadCloser, string, error) {
	name := s.Name
	if name == "" {
		name = "audio.wav"
	}
	return io.NopCloser(bytes.NewReader(s.Data)), name, nil
}

type audioSourceKey struct{}

// WithAudioSource attaches a per-session audio source to ctx. Recognizers prefer it over
// the source they were built with.
func WithAudioSource(ctx context.Context, source AudioSource) context.Context {
	return context.WithValue(ctx, audioSourceKey{}, source)
}

// AudioSourceFromContext returns the source attached to ctx, or fallback
func AudioSourceFromContext(ctx context.Context, fallback AudioSource) AudioSource {
	if source, ok := ctx.Value(audioSourceKey{}).(AudioSource); ok && source != nil {
		return source
	}
	return fallback
}

// AudioSink receives synthesized audio for utterances that carry no Output writer
type AudioSink interface {
	Open(ctx context.Context, contentType string) (io.WriteCloser, error)
}

// DiscardSink drops audio
type DiscardSink struct{}

// Open implements AudioSink
func (DiscardSink) Open(_ context.Context, _ string) (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// PlayerSink pipes audio into a local player command such as "ffplay -nodisp -autoexit -"
type PlayerSink struct {
	Command string
	Args    []string
}

// Open starts the player; closing the writer waits for playback to finish
func (p PlayerSink) Open(ctx context.Context, _ string) (io.WriteCloser, error) {
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &playerWriter{WriteCloser: stdin, cmd: cmd}, nil
}

type playerWriter struct {
	io.WriteCloser
	cmd *exec.Cmd
}

func (w *playerWriter) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		_ = w.cmd.Wait()
		return err
	}
	return w.cmd.Wait()
}

// NewPlayerSink parses a command line into a PlayerSink; an empty line yields a DiscardSink
func NewPlayerSink(commandLine string) AudioSink {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return DiscardSink{}
	}
	return PlayerSink{Command: fields[0], Args: fields[1:]}
}
