package voice

import (
	"context"
	"strings"
	"time"

	"github.com/ent0n29/mockinterview/internal/audio"
)

// mockWordDuration approximates a relaxed speaking rate.
const mockWordDuration = 300 * time.Millisecond

// MockProvider is a local fallback used when no speech backend is configured.
// Synthesized clips are silent WAV audio as long as the text would take to
// say, so clients still observe realistic playback.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Synthesize(ctx context.Context, text string) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Clip{}, ErrEmptyAudio
	}
	words := len(strings.Fields(text))
	wav, err := audio.SilenceWAV(time.Duration(words)*mockWordDuration, audio.DefaultSampleRate)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Audio: wav, Format: "wav"}, nil
}

func (p *MockProvider) Transcribe(ctx context.Context, recording []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(recording))) == 0 {
		return "", nil
	}
	return "simulated voice input", nil
}
