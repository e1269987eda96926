package openaispeech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voxbridge/internal/observability"
	"voxbridge/internal/speech"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

func newTestSynthesizer(t *testing.T, handler http.HandlerFunc) *Synthesizer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSynthesizer(Config{APIKey: "test-key", BaseURL: server.URL + "/v1", Language: "fr-FR"}, nil, observability.NewNopLogger())
}

// speakAndWait returns "" on end or the error code reported by the synthesizer
func speakAndWait(t *testing.T, s *Synthesizer, u *speech.Utterance) string {
	t.Helper()
	done := make(chan string, 1)
	u.OnEnd = func() { done <- "" }
	u.OnError = func(code string) { done <- code }
	s.Speak(context.Background(), u)
	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for synthesis")
		return ""
	}
}

func TestSynthesizer_Speak(t *testing.T) {
	requests := make(chan speechRequest, 1)
	s := newTestSynthesizer(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/audio/speech", req.URL.Path)
		var got speechRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		requests <- got
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("MP3DATA"))
	})

	var out bytes.Buffer
	u := speech.NewUtterance("Bonjour")
	u.Lang = "fr-FR"
	u.Voice = &speech.Voice{Name: "nova"}
	u.Rate = 2
	u.Output = &out

	assert.Equal(t, "", speakAndWait(t, s, u))
	assert.Equal(t, "MP3DATA", out.String())
	got := <-requests
	assert.Equal(t, "tts-1", got.Model)
	assert.Equal(t, "Bonjour", got.Input)
	assert.Equal(t, "nova", got.Voice)
	assert.Equal(t, "mp3", got.ResponseFormat)
	assert.Equal(t, 2.0, got.Speed)
	assert.Eventually(t, func() bool { return !s.Speaking() }, time.Second, 10*time.Millisecond)
}

func TestSynthesizer_DefaultVoiceAndSink(t *testing.T) {
	requests := make(chan speechRequest, 1)
	s := newTestSynthesizer(t, func(w http.ResponseWriter, req *http.Request) {
		var got speechRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		requests <- got
		_, _ = w.Write([]byte("MP3DATA"))
	})

	assert.Equal(t, "", speakAndWait(t, s, speech.NewUtterance("hi")))
	got := <-requests
	assert.Equal(t, "alloy", got.Voice)
	assert.Equal(t, 1.0, got.Speed)
}

func TestSynthesizer_ServerError(t *testing.T) {
	s := newTestSynthesizer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad voice"}}`))
	})

	var out bytes.Buffer
	u := speech.NewUtterance("hi")
	u.Output = &out
	assert.Equal(t, speech.ErrorCodeSynthesisFailed, speakAndWait(t, s, u))
	assert.Zero(t, out.Len())
}

func TestSynthesizer_CancelInterrupts(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	s := newTestSynthesizer(t, func(_ http.ResponseWriter, req *http.Request) {
		close(started)
		select {
		case <-req.Context().Done():
		case <-release:
		}
	})

	done := make(chan string, 1)
	u := speech.NewUtterance("long text")
	u.OnEnd = func() { done <- "" }
	u.OnError = func(code string) { done <- code }
	s.Speak(context.Background(), u)

	<-started
	assert.True(t, s.Speaking())
	s.Cancel()

	select {
	case code := <-done:
		assert.Equal(t, speech.ErrorCodeInterrupted, code)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for interruption")
	}
}

func TestSynthesizer_Voices(t *testing.T) {
	s := NewSynthesizer(Config{APIKey: "k", Voice: "onyx", Language: "de-DE"}, nil, observability.NewNopLogger())
	voices := s.Voices()
	require.Len(t, voices, 6)
	for _, v := range voices {
		assert.False(t, v.LocalService)
		assert.Equal(t, "de-DE", v.Lang)
		assert.Equal(t, v.Name == "onyx", v.Default)
	}

	// Callers get a copy
	voices[0].Name = "changed"
	assert.Equal(t, "alloy", s.Voices()[0].Name)
}

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, 1.0, clampSpeed(0))
	assert.Equal(t, 0.25, clampSpeed(0.1))
	assert.Equal(t, 4.0, clampSpeed(10))
	assert.Equal(t, 1.5, clampSpeed(1.5))
}
