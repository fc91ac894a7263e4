package interview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ent0n29/mockinterview/internal/llm"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/problem"
	"github.com/ent0n29/mockinterview/internal/protocol"
	"github.com/ent0n29/mockinterview/internal/session"
	"github.com/ent0n29/mockinterview/internal/speech"
	"github.com/ent0n29/mockinterview/internal/voice"
)

// Opening policies.
const (
	BootstrapGreeting = "greeting"
	BootstrapModel    = "model"
)

type Config struct {
	// PauseThreshold is the trailing silence that ends an utterance. Zero
	// submits every recognized fragment immediately.
	PauseThreshold time.Duration
	// Bootstrap selects how the opening turns are produced.
	Bootstrap       string
	DefaultDuration time.Duration
	ReplyMaxChars   int
	Fillers         []string

	// FillerIgnorePunctuation lets "Okay." match the filler "okay".
	FillerIgnorePunctuation bool
	Clock                   speech.Clock
}

// Dependencies are the engine's external collaborators.
type Dependencies struct {
	Sessions    *session.Manager
	Problems    problem.Source
	Generator   llm.Generator
	Transcriber voice.Transcriber
	Synthesizer voice.Synthesizer
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// Engine runs one interview per websocket connection. Connections share only
// the injected collaborators.
type Engine struct {
	cfg         Config
	sessions    *session.Manager
	problems    problem.Source
	generator   llm.Generator
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	noise       *speech.NoiseFilter
	metrics     *observability.Metrics
	logger      *zap.Logger
}

func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.Sessions == nil || deps.Problems == nil || deps.Generator == nil || deps.Synthesizer == nil {
		return nil, errors.New("interview: sessions, problems, generator and synthesizer are required")
	}
	switch cfg.Bootstrap {
	case "":
		cfg.Bootstrap = BootstrapGreeting
	case BootstrapGreeting, BootstrapModel:
	default:
		return nil, fmt.Errorf("interview: unknown bootstrap policy %q", cfg.Bootstrap)
	}
	if cfg.PauseThreshold < 0 {
		cfg.PauseThreshold = 0
	}
	if cfg.ReplyMaxChars <= 0 {
		cfg.ReplyMaxChars = llm.DefaultMaxReplyChars
	}
	if cfg.Clock == nil {
		cfg.Clock = speech.SystemClock
	}
	fillers := cfg.Fillers
	if len(fillers) == 0 {
		fillers = speech.DefaultFillers
	}
	noise, err := speech.NewNoiseFilter(fillers)
	if err != nil {
		return nil, fmt.Errorf("interview: %w", err)
	}
	if cfg.FillerIgnorePunctuation {
		noise = noise.IgnoringPunctuation()
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsWith("interview", prometheus.NewRegistry(), nil)
	}

	return &Engine{
		cfg:         cfg,
		sessions:    deps.Sessions,
		problems:    deps.Problems,
		generator:   deps.Generator,
		transcriber: deps.Transcriber,
		synthesizer: deps.Synthesizer,
		noise:       noise,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// RunConnection drives the interview for s until the client stops it, the
// inbound channel closes, ctx ends or the registry ends the session. It owns
// all session-scoped resources and releases them before returning.
func (e *Engine) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	ctx, cancel := context.WithCancel(ctx)
	c := e.newConnection(ctx, cancel, s.ID, outbound)

	if err := e.sessions.Attach(s.ID, session.Attachment{
		Stop:       c.requestStop,
		Transcript: c.store.Transcript,
	}); err != nil {
		c.sendError(SourceClient, "session_unavailable", false, err.Error())
		cancel()
		return err
	}
	e.metrics.ActiveSessions.Set(float64(e.sessions.ActiveCount()))
	e.metrics.SessionEvents.WithLabelValues("connected").Inc()

	go c.work()
	defer c.teardown()

	c.send(protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: s.ID,
		Code:      protocol.EventSessionStarted,
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopRequested:
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if done := c.dispatch(msg); done {
				return nil
			}
		}
	}
}
