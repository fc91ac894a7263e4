package voice

import "context"

// Clip is one synthesized audio segment.
type Clip struct {
	Audio  []byte
	Format string
}

// Transcriber turns a recorded audio blob into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Synthesizer turns interviewer text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}

// Provider bundles both directions for one backend.
type Provider interface {
	Transcriber
	Synthesizer
	Name() string
}
