package speech

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognitionEvent_Top(t *testing.T) {
	ev := ResultEvent(Alternative{Transcript: "hola", Confidence: 0.8}, Alternative{Transcript: "ola"})
	top, ok := ev.Top()
	require.True(t, ok)
	assert.Equal(t, "hola", top.Transcript)
	assert.Equal(t, 0.8, top.Confidence)

	_, ok = ResultEvent().Top()
	assert.False(t, ok)

	_, ok = ErrorEvent(ErrorCodeNetwork, errors.New("down")).Top()
	assert.False(t, ok)
}

func TestUtteranceHandlers(t *testing.T) {
	u := NewUtterance("hi")
	assert.Equal(t, 1.0, u.Rate)
	assert.Equal(t, 1.0, u.Pitch)
	assert.Equal(t, 1.0, u.Volume)

	// Unset handlers are no-ops
	assert.NotPanics(t, func() {
		u.End()
		u.Fail(ErrorCodeInterrupted)
	})

	var ended bool
	var failed string
	u.OnEnd = func() { ended = true }
	u.OnError = func(code string) { failed = code }
	u.End()
	u.Fail(ErrorCodeSynthesisFailed)
	assert.True(t, ended)
	assert.Equal(t, ErrorCodeSynthesisFailed, failed)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o600))

	rc, name, err := FileSource{Path: path}.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "clip.mp3", name)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data))

	_, _, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.wav")}.Open(context.Background())
	assert.Error(t, err)
}

func TestReaderSource(t *testing.T) {
	rc, name, err := ReaderSource{Data: []byte("RIFF")}.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "audio.wav", name)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "RIFF", string(data))

	_, name, _ = ReaderSource{Name: "upload.webm"}.Open(context.Background())
	assert.Equal(t, "upload.webm", name)
}

func TestAudioSourceFromContext(t *testing.T) {
	fallback := FileSource{Path: "/tmp/fallback.wav"}
	assert.Equal(t, fallback, AudioSourceFromContext(context.Background(), fallback))
	assert.Nil(t, AudioSourceFromContext(context.Background(), nil))

	upload := ReaderSource{Data: []byte("x"), Name: "upload.ogg"}
	ctx := WithAudioSource(context.Background(), upload)
	assert.Equal(t, upload, AudioSourceFromContext(ctx, fallback))

	assert.Equal(t, fallback, AudioSourceFromContext(WithAudioSource(context.Background(), nil), fallback))
}

func TestDiscardSink(t *testing.T) {
	w, err := DiscardSink{}.Open(context.Background(), "audio/mpeg")
	require.NoError(t, err)
	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, w.Close())
}

func TestNewPlayerSink(t *testing.T) {
	assert.Equal(t, DiscardSink{}, NewPlayerSink("  "))
	assert.Equal(t, PlayerSink{Command: "ffplay", Args: []string{"-nodisp", "-autoexit", "-"}},
		NewPlayerSink("ffplay -nodisp -autoexit -"))
}

func TestPlayerSink_PipesAudioToCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "played.raw")
	sink := PlayerSink{Command: "sh", Args: []string{"-c", "cat > " + out}}

	w, err := sink.Open(context.Background(), "audio/wav")
	require.NoError(t, err)
	_, err = w.Write([]byte("RIFFDATA"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "RIFFDATA", string(data))
}
