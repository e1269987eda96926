package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"voxbridge/internal/observability"
	"voxbridge/internal/serviceinterfaces"
	"voxbridge/internal/speech"
	"voxbridge/internal/speech/speechtest"
	contextutils "voxbridge/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func newSpeechServiceForTest(recognizer speech.Recognizer, synthesizer speech.Synthesizer) *SpeechService {
	return NewSpeechService(recognizer, synthesizer, observability.NewNopLogger())
}

func TestSpeechService_RecognizeSpeech_Unsupported(t *testing.T) {
	svc := newSpeechServiceForTest(nil, nil)

	var errorMessages []string
	resultCalled := false
	result, err := svc.RecognizeSpeech(context.Background(), "es",
		func(serviceinterfaces.TranscriptionResult) { resultCalled = true },
		func(msg string) { errorMessages = append(errorMessages, msg) },
	)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, contextutils.ErrorCodeSpeechUnsupported, contextutils.GetErrorCode(err))
	assert.Contains(t, err.Error(), "not supported")
	assert.False(t, resultCalled)
	require.Len(t, errorMessages, 1)
	assert.Contains(t, errorMessages[0], "not supported")
}

func TestSpeechService_RecognizeSpeech_Result(t *testing.T) {
	recognizer := speechtest.NewRecognizer(speech.ResultEvent(
		speech.Alternative{Transcript: "hola mundo", Confidence: 0.87},
		speech.Alternative{Transcript: "ola mundo", Confidence: 0.4},
	))
	svc := newSpeechServiceForTest(recognizer, nil)

	var delivered []serviceinterfaces.TranscriptionResult
	result, err := svc.RecognizeSpeech(context.Background(), "es",
		func(r serviceinterfaces.TranscriptionResult) { delivered = append(delivered, r) },
		func(msg string) { t.Errorf("unexpected error callback: %s", msg) },
	)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "hola mundo", result.Text)
	assert.InDelta(t, 0.87, result.Confidence, 1e-9)
	// The requested code is reported, not the locale
	assert.Equal(t, "es", result.Language)
	require.Len(t, delivered, 1)
	assert.Equal(t, *result, delivered[0])

	settings := recognizer.Settings()
	require.Len(t, settings, 2)
	assert.Equal(t, speech.RecognitionSettings{Lang: "en-US", MaxAlternatives: 1}, settings[0])
	assert.Equal(t, speech.RecognitionSettings{Lang: "es-ES", MaxAlternatives: 1}, settings[1])
}

func TestSpeechService_RecognizeSpeech_DefaultsToEnglish(t *testing.T) {
	recognizer := speechtest.NewRecognizer(speech.ResultEvent(speech.Alternative{Transcript: "hello", Confidence: 1.4}))
	svc := newSpeechServiceForTest(recognizer, nil)

	result, err := svc.RecognizeSpeech(context.Background(), "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, 1.0, result.Confidence)

	settings := recognizer.Settings()
	assert.Equal(t, "en-US", settings[len(settings)-1].Lang)
}

func TestSpeechService_RecognizeSpeech_ErrorEvents(t *testing.T) {
	tests := []struct {
		name    string
		event   speech.RecognitionEvent
		message string
		code    string
	}{
		{
			name:    "no speech",
			event:   speech.ErrorEvent(speech.ErrorCodeNoSpeech, nil),
			message: "Speech recognition error: no-speech",
			code:    speech.ErrorCodeNoSpeech,
		},
		{
			name:    "network",
			event:   speech.ErrorEvent(speech.ErrorCodeNetwork, errors.New("connection reset")),
			message: "Speech recognition error: network",
			code:    speech.ErrorCodeNetwork,
		},
		{
			name:    "result without alternatives",
			event:   speech.ResultEvent(),
			message: "Speech recognition error: no-speech",
			code:    speech.ErrorCodeNoSpeech,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newSpeechServiceForTest(speechtest.NewRecognizer(tt.event), nil)

			var errorMessages []string
			result, err := svc.RecognizeSpeech(context.Background(), "fr",
				func(serviceinterfaces.TranscriptionResult) { t.Error("unexpected result callback") },
				func(msg string) { errorMessages = append(errorMessages, msg) },
			)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, []string{tt.message}, errorMessages)

			var appErr *contextutils.AppError
			require.True(t, contextutils.AsError(err, &appErr))
			assert.Equal(t, contextutils.ErrorCodeRecognitionFailed, appErr.Code)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Equal(t, tt.code, appErr.Details)
		})
	}
}

func TestSpeechService_RecognizeSpeech_StartFailure(t *testing.T) {
	recognizer := speechtest.NewRecognizer(speech.RecognitionEvent{})
	recognizer.StartErr = errors.New("already started")
	svc := newSpeechServiceForTest(recognizer, nil)

	var errorMessages []string
	_, err := svc.RecognizeSpeech(context.Background(), "de", nil, func(msg string) { errorMessages = append(errorMessages, msg) })

	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeRecognitionFailed, contextutils.GetErrorCode(err))
	assert.Equal(t, []string{"Speech recognition error: already started"}, errorMessages)
}

func TestSpeechService_RecognizeSpeech_Busy(t *testing.T) {
	recognizer := speechtest.NewManualRecognizer()
	svc := newSpeechServiceForTest(recognizer, nil)

	type outcome struct {
		result *serviceinterfaces.TranscriptionResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		result, err := svc.RecognizeSpeech(context.Background(), "it", nil, nil)
		first <- outcome{result, err}
	}()

	select {
	case <-recognizer.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer was never started")
	}

	_, err := svc.RecognizeSpeech(context.Background(), "it", nil, nil)
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrSpeechBusy))
	assert.True(t, contextutils.IsRetryable(err))

	recognizer.Emit(speech.ResultEvent(speech.Alternative{Transcript: "ciao", Confidence: 0.9}))

	select {
	case got := <-first:
		require.NoError(t, got.err)
		assert.Equal(t, "ciao", got.result.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("first recognition never completed")
	}

	// The guard is released once the session ends
	recognizer.Manual = false
	recognizer.Event = speech.ResultEvent(speech.Alternative{Transcript: "di nuovo", Confidence: 0.5})
	result, err := svc.RecognizeSpeech(context.Background(), "it", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "di nuovo", result.Text)
}

func TestSpeechService_RecognizeSpeech_FirstEventWins(t *testing.T) {
	recognizer := speechtest.NewManualRecognizer()
	svc := newSpeechServiceForTest(recognizer, nil)

	done := make(chan error, 1)
	var results []serviceinterfaces.TranscriptionResult
	var errorMessages []string
	go func() {
		_, err := svc.RecognizeSpeech(context.Background(), "en",
			func(r serviceinterfaces.TranscriptionResult) { results = append(results, r) },
			func(msg string) { errorMessages = append(errorMessages, msg) },
		)
		done <- err
	}()

	<-recognizer.Started()
	recognizer.Emit(speech.ResultEvent(speech.Alternative{Transcript: "first", Confidence: 0.8}))
	recognizer.Emit(speech.ErrorEvent(speech.ErrorCodeNetwork, nil))

	require.NoError(t, <-done)
	require.Len(t, results, 1)
	assert.Equal(t, "first", results[0].Text)
	assert.Empty(t, errorMessages)
}

func TestSpeechService_RecognizeSpeech_ContextCancelled(t *testing.T) {
	recognizer := speechtest.NewManualRecognizer()
	svc := newSpeechServiceForTest(recognizer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var errorMessages []string
	go func() {
		_, err := svc.RecognizeSpeech(ctx, "en", nil, func(msg string) { errorMessages = append(errorMessages, msg) })
		done <- err
	}()

	<-recognizer.Started()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeTimeout, contextutils.GetErrorCode(err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("recognition did not stop after cancel")
	}
	assert.Equal(t, 1, recognizer.Stops())
	assert.Equal(t, []string{"Speech recognition error: aborted"}, errorMessages)
}

func TestSpeechService_SynthesizeSpeech_Unsupported(t *testing.T) {
	svc := newSpeechServiceForTest(nil, nil)

	err := svc.SynthesizeSpeech(context.Background(), serviceinterfaces.SynthesisOptions{Text: "hello", Language: "en"})
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeSpeechUnsupported, contextutils.GetErrorCode(err))
	assert.Contains(t, err.Error(), "synthesis not supported")
}

func TestSpeechService_SynthesizeSpeech_PrefersLocalVoice(t *testing.T) {
	synth := speechtest.NewSynthesizer(
		speech.Voice{Name: "Remote Español", Lang: "es-ES", LocalService: false},
		speech.Voice{Name: "English", Lang: "en-US", LocalService: true},
		speech.Voice{Name: "Local Español", Lang: "es-MX", LocalService: true},
	)
	svc := newSpeechServiceForTest(nil, synth)

	err := svc.SynthesizeSpeech(context.Background(), serviceinterfaces.SynthesisOptions{Text: "hola", Language: "es"})
	require.NoError(t, err)

	utterances := synth.Utterances()
	require.Len(t, utterances, 1)
	u := utterances[0]
	assert.Equal(t, "hola", u.Text)
	assert.Equal(t, "es-ES", u.Lang)
	require.NotNil(t, u.Voice)
	assert.Equal(t, "Local Español", u.Voice.Name)
	assert.Equal(t, 1.0, u.Rate)
	assert.Equal(t, 1.0, u.Pitch)
	assert.Equal(t, 1.0, u.Volume)
}

func TestSpeechService_SynthesizeSpeech_NoMatchingVoice(t *testing.T) {
	synth := speechtest.NewSynthesizer(speech.Voice{Name: "Remote Deutsch", Lang: "de-DE"})
	svc := newSpeechServiceForTest(nil, synth)

	require.NoError(t, svc.SynthesizeSpeech(context.Background(), serviceinterfaces.SynthesisOptions{Text: "hallo", Language: "de"}))

	utterances := synth.Utterances()
	require.Len(t, utterances, 1)
	assert.Nil(t, utterances[0].Voice)
	assert.Equal(t, "de-DE", utterances[0].Lang)
}

func TestSpeechService_SynthesizeSpeech_Options(t *testing.T) {
	synth := speechtest.NewSynthesizer(
		speech.Voice{Name: "nova", Lang: "en-US"},
		speech.Voice{Name: "alloy", Lang: "en-US", LocalService: true},
	)
	synth.Audio = []byte("ID3-audio")
	svc := newSpeechServiceForTest(nil, synth)

	var out bytes.Buffer
	err := svc.SynthesizeSpeech(context.Background(), serviceinterfaces.SynthesisOptions{
		Text:     "read slowly",
		Language: "en",
		Voice:    "nova",
		Rate:     floatPtr(0.5),
		Pitch:    floatPtr(1.5),
		Volume:   floatPtr(0),
		Output:   &out,
	})
	require.NoError(t, err)

	u := synth.Utterances()[0]
	require.NotNil(t, u.Voice)
	assert.Equal(t, "nova", u.Voice.Name)
	assert.Equal(t, 0.5, u.Rate)
	assert.Equal(t, 1.5, u.Pitch)
	assert.Equal(t, 0.0, u.Volume)
	assert.Equal(t, "ID3-audio", out.String())
}

func TestSpeechService_SynthesizeSpeech_InvalidOptions(t *testing.T) {
	synth := speechtest.NewSynthesizer()
	svc := newSpeechServiceForTest(nil, synth)

	tests := []struct {
		name string
		opts serviceinterfaces.SynthesisOptions
	}{
		{name: "empty text", opts: serviceinterfaces.SynthesisOptions{Language: "en"}},
		{name: "rate too low", opts: serviceinterfaces.SynthesisOptions{Text: "x", Rate: floatPtr(0)}},
		{name: "rate too high", opts: serviceinterfaces.SynthesisOptions{Text: "x", Rate: floatPtr(11)}},
		{name: "pitch out of range", opts: serviceinterfaces.SynthesisOptions{Text: "x", Pitch: floatPtr(2.5)}},
		{name: "volume out of range", opts: serviceinterfaces.SynthesisOptions{Text: "x", Volume: floatPtr(-0.1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SynthesizeSpeech(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Equal(t, contextutils.ErrorCodeInvalidInput, contextutils.GetErrorCode(err))
		})
	}
	assert.Empty(t, synth.Utterances())
}

func TestSpeechService_SynthesizeSpeech_HostError(t *testing.T) {
	synth := speechtest.NewSynthesizer()
	synth.FailCode = speech.ErrorCodeSynthesisFailed
	svc := newSpeechServiceForTest(nil, synth)

	err := svc.SynthesizeSpeech(context.Background(), serviceinterfaces.SynthesisOptions{Text: "boom", Language: "en"})
	require.Error(t, err)

	var appErr *contextutils.AppError
	require.True(t, contextutils.AsError(err, &appErr))
	assert.Equal(t, contextutils.ErrorCodeSynthesisFailed, appErr.Code)
	assert.Equal(t, "Speech synthesis error: synthesis-failed", appErr.Message)
}

func TestSpeechService_SynthesizeSpeech_ContextCancelled(t *testing.T) {
	synth := speechtest.NewSynthesizer()
	synth.Hold = true
	svc := newSpeechServiceForTest(nil, synth)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := svc.SynthesizeSpeech(ctx, serviceinterfaces.SynthesisOptions{Text: "a very long story", Language: "en"})
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeTimeout, contextutils.GetErrorCode(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, synth.Cancels())
	assert.False(t, synth.Speaking())
}

func TestSpeechService_StopSpeaking(t *testing.T) {
	synth := speechtest.NewSynthesizer()
	svc := newSpeechServiceForTest(nil, synth)

	svc.StopSpeaking()
	assert.Equal(t, 0, synth.Cancels(), "nothing in progress")

	synth.Hold = true
	done := make(chan error, 1)
	go func() {
		done <- svc.SynthesizeSpeech(context.Background(), serviceinterfaces.SynthesisOptions{Text: "hold on", Language: "en"})
	}()
	require.Eventually(t, synth.Speaking, 2*time.Second, 5*time.Millisecond)

	svc.StopSpeaking()
	assert.Equal(t, 1, synth.Cancels())

	err := <-done
	require.Error(t, err)
	assert.Equal(t, "Speech synthesis error: interrupted", err.(*contextutils.AppError).Message)

	// Absent synthesizer is a no-op
	newSpeechServiceForTest(nil, nil).StopSpeaking()
}

func TestSpeechService_StopListening(t *testing.T) {
	recognizer := speechtest.NewManualRecognizer()
	svc := newSpeechServiceForTest(recognizer, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RecognizeSpeech(context.Background(), "en", nil, nil)
		done <- err
	}()
	<-recognizer.Started()

	svc.StopListening()

	err := <-done
	require.Error(t, err)
	assert.Equal(t, "Speech recognition error: aborted", err.(*contextutils.AppError).Message)
	assert.Equal(t, 1, recognizer.Stops())

	newSpeechServiceForTest(nil, nil).StopListening()
}

func TestSpeechService_GetAvailableVoices(t *testing.T) {
	assert.Equal(t, []speech.Voice{}, newSpeechServiceForTest(nil, nil).GetAvailableVoices())
	assert.Equal(t, []speech.Voice{}, newSpeechServiceForTest(nil, speechtest.NewSynthesizer()).GetAvailableVoices())

	voices := []speech.Voice{{Name: "alloy", Lang: "en-US"}}
	assert.Equal(t, voices, newSpeechServiceForTest(nil, speechtest.NewSynthesizer(voices...)).GetAvailableVoices())
}

func TestSpeechService_WaitForVoices(t *testing.T) {
	t.Run("voices already present", func(t *testing.T) {
		synth := speechtest.NewSynthesizer(speech.Voice{Name: "a", Lang: "en-US"})
		voices, err := newSpeechServiceForTest(nil, synth).WaitForVoices(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Len(t, voices, 1)
	})

	t.Run("voices arrive later", func(t *testing.T) {
		synth := speechtest.NewSynthesizer()
		svc := newSpeechServiceForTest(nil, synth)
		go func() {
			time.Sleep(30 * time.Millisecond)
			synth.SetVoices(speech.Voice{Name: "late", Lang: "fr-FR"})
		}()

		voices, err := svc.WaitForVoices(context.Background(), 2*time.Second)
		require.NoError(t, err)
		require.Len(t, voices, 1)
		assert.Equal(t, "late", voices[0].Name)
	})

	t.Run("times out empty", func(t *testing.T) {
		svc := newSpeechServiceForTest(nil, speechtest.NewSynthesizer())
		start := time.Now()
		voices, err := svc.WaitForVoices(context.Background(), 60*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, voices)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("context cancelled", func(t *testing.T) {
		svc := newSpeechServiceForTest(nil, speechtest.NewSynthesizer())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		voices, err := svc.WaitForVoices(ctx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, voices)
	})

	t.Run("no synthesizer", func(t *testing.T) {
		voices, err := newSpeechServiceForTest(nil, nil).WaitForVoices(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Empty(t, voices)
	})
}

func TestSpeechService_Capabilities(t *testing.T) {
	recognizer := speechtest.NewRecognizer(speech.RecognitionEvent{})
	synth := speechtest.NewSynthesizer()

	tests := []struct {
		name        string
		recognizer  speech.Recognizer
		synthesizer speech.Synthesizer
		supported   bool
	}{
		{name: "both", recognizer: recognizer, synthesizer: synth, supported: true},
		{name: "recognition only", recognizer: recognizer},
		{name: "synthesis only", synthesizer: synth},
		{name: "neither"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newSpeechServiceForTest(tt.recognizer, tt.synthesizer)
			assert.Equal(t, tt.supported, svc.IsSupported())
			caps := svc.Capabilities()
			assert.Equal(t, tt.recognizer != nil, caps.Recognition)
			assert.Equal(t, tt.synthesizer != nil, caps.Synthesis)
		})
	}
}

func TestSpeechService_ConvertToSpeechLocale(t *testing.T) {
	svc := newSpeechServiceForTest(nil, nil)
	assert.Equal(t, "ja-JP", svc.ConvertToSpeechLocale("ja"))
	assert.Equal(t, "en-US", svc.ConvertToSpeechLocale("xx"))
}
