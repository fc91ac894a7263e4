package voice

import (
	"context"
	"fmt"
	"sync/atomic"
)

// NewFailoverProvider prefers primary and switches to fallback when a primary
// call fails. Once fallback succeeds it stays active until fallback fails;
// then primary is retried.
func NewFailoverProvider(primary, fallback Provider) *FailoverProvider {
	return &FailoverProvider{primary: primary, fallback: fallback}
}

type FailoverProvider struct {
	primary        Provider
	fallback       Provider
	fallbackActive atomic.Bool
}

func (p *FailoverProvider) Name() string {
	return p.primary.Name() + "+" + p.fallback.Name()
}

// FallbackActive reports whether calls currently go to the fallback.
func (p *FailoverProvider) FallbackActive() bool { return p.fallbackActive.Load() }

func (p *FailoverProvider) Synthesize(ctx context.Context, text string) (Clip, error) {
	return failover(p, func(pr Provider) (Clip, error) { return pr.Synthesize(ctx, text) }, "tts")
}

func (p *FailoverProvider) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	return failover(p, func(pr Provider) (string, error) { return pr.Transcribe(ctx, audio, format) }, "stt")
}

func failover[T any](p *FailoverProvider, call func(Provider) (T, error), kind string) (T, error) {
	if p.fallbackActive.Load() {
		out, fbErr := call(p.fallback)
		if fbErr == nil {
			return out, nil
		}
		// Fallback failed after being active; try primary again.
		out, prErr := call(p.primary)
		if prErr == nil {
			p.fallbackActive.Store(false)
			return out, nil
		}
		var zero T
		return zero, fmt.Errorf("%s fallback failed: %v; %s primary failed: %w", kind, fbErr, kind, prErr)
	}

	out, prErr := call(p.primary)
	if prErr == nil {
		return out, nil
	}
	out, fbErr := call(p.fallback)
	if fbErr != nil {
		var zero T
		return zero, fmt.Errorf("%s primary failed: %v; %s fallback failed: %w", kind, prErr, kind, fbErr)
	}
	p.fallbackActive.Store(true)
	return out, nil
}
