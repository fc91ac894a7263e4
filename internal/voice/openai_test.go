package voice

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderSynthesize(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", TTSModel: "tts-1", TTSVoice: "alloy"})
	clip, err := p.Synthesize(context.Background(), "  What is the runtime?  ")
	require.NoError(t, err)
	assert.Equal(t, "mp3", clip.Format)
	assert.Equal(t, []byte("ID3fake"), clip.Audio)
	assert.Contains(t, gotBody, `"voice":"alloy"`)
	assert.Contains(t, gotBody, "What is the runtime?")
}

func TestOpenAIProviderTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "en", r.FormValue("language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  I would use a hash map  "}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", STTLanguage: "en"})
	text, err := p.Transcribe(context.Background(), []byte{1, 2, 3}, "webm")
	require.NoError(t, err)
	assert.Equal(t, "I would use a hash map", text)

	_, err = p.Transcribe(context.Background(), nil, "webm")
	assert.ErrorIs(t, err, ErrEmptyAudio)
}
