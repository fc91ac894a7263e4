package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/httpapi"
	"github.com/ent0n29/mockinterview/internal/interview"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/problem"
	"github.com/ent0n29/mockinterview/internal/session"
)

type ProviderInfo struct {
	LLM    string
	Voice  string
	Detail string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Engine   *interview.Engine
	Metrics  *observability.Metrics
	Problems problem.Source
	Info     ProviderInfo

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	return build(ctx, cfg, logger, metrics)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) (*BuildResult, error) {
	problems, err := problem.NewSource(ctx, cfg.DatabaseURL, cfg.ProblemsPath)
	if err != nil {
		return nil, fmt.Errorf("problem source init failed: %w", err)
	}

	llmSetup, err := resolveGenerator(cfg, logger, metrics)
	if err != nil {
		_ = problems.Close()
		return nil, err
	}
	voiceSetup, err := resolveVoiceProvider(cfg, logger)
	if err != nil {
		_ = problems.Close()
		return nil, err
	}
	cfg.LLMProvider = llmSetup.resolvedProvider
	cfg.VoiceProvider = voiceSetup.resolvedProvider

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		logger.Info("session expired", zap.String("session_id", s.ID))
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	engine, err := interview.NewEngine(interview.Config{
		PauseThreshold:  cfg.PauseThreshold,
		Bootstrap:       cfg.Bootstrap,
		DefaultDuration: cfg.InterviewDuration,
		ReplyMaxChars:   cfg.ReplyMaxChars,
		Fillers:         cfg.Fillers,

		FillerIgnorePunctuation: cfg.FillerIgnorePunctuation,
	}, interview.Dependencies{
		Sessions:    sessions,
		Problems:    problems,
		Generator:   llmSetup.generator,
		Transcriber: voiceSetup.provider,
		Synthesizer: voiceSetup.provider,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		_ = problems.Close()
		return nil, err
	}

	api := httpapi.New(cfg, sessions, engine, metrics, logger)

	cleanup := func() error {
		var errs []error
		for _, id := range sessions.ActiveIDs() {
			if _, err := sessions.End(id); err != nil && !errors.Is(err, session.ErrNotFound) {
				errs = append(errs, err)
			}
		}
		if err := problems.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close problem source: %w", err))
		}
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Engine:   engine,
		Metrics:  metrics,
		Problems: problems,
		Info: ProviderInfo{
			LLM:    llmSetup.detail,
			Voice:  voiceSetup.resolvedProvider,
			Detail: voiceSetup.detail,
		},
		Cleanup: cleanup,
	}, nil
}

// JanitorInterval is how often inactive sessions are swept.
func JanitorInterval(cfg config.Config) time.Duration {
	interval := cfg.SessionInactivityTimeout / 10
	if interval < time.Second {
		return time.Second
	}
	if interval > 30*time.Second {
		return 30 * time.Second
	}
	return interval
}
