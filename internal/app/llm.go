package app

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/llm"
	"github.com/ent0n29/mockinterview/internal/observability"
)

type llmSetup struct {
	generator        llm.Generator
	resolvedProvider string
	detail           string
}

func resolveGenerator(cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) (llmSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if mode == "" {
		mode = "auto"
	}

	openAI := func() llmSetup {
		g := llm.NewOpenAIGenerator(llm.OpenAIConfig{
			BaseURL:       cfg.LLMBaseURL,
			APIKey:        cfg.LLMAPIKey,
			Model:         cfg.LLMModel,
			Temperature:   float32(cfg.LLMTemperature),
			MaxReplyChars: cfg.ReplyMaxChars,
			MaxRetries:    cfg.LLMMaxRetries,
		}, logger)
		g.OnCall(func(d time.Duration, err error) {
			if err != nil {
				metrics.ObserveIndicator(observability.IndicatorRetriesExhausted)
				logger.Debug("model call failed", zap.Duration("elapsed", d), zap.Error(err))
				return
			}
			logger.Debug("model call", zap.Duration("elapsed", d))
		})
		return llmSetup{
			generator:        g,
			resolvedProvider: "openai",
			detail:           fmt.Sprintf("openai-compatible (%s @ %s)", cfg.LLMModel, cfg.LLMBaseURL),
		}
	}
	mock := func(detail string) llmSetup {
		g := llm.NewMockGenerator()
		g.MaxReplyChars = cfg.ReplyMaxChars
		return llmSetup{generator: g, resolvedProvider: "mock", detail: detail}
	}

	switch mode {
	case "openai":
		if strings.TrimSpace(cfg.LLMAPIKey) == "" {
			return llmSetup{}, fmt.Errorf("LLM_PROVIDER=openai but neither LLM_API_KEY nor LEMONFOX_API_KEY is set")
		}
		return openAI(), nil
	case "mock":
		return mock("mock"), nil
	case "auto":
		if strings.TrimSpace(cfg.LLMAPIKey) != "" {
			return openAI(), nil
		}
		return mock("mock (no api key)"), nil
	default:
		return llmSetup{}, fmt.Errorf("invalid LLM_PROVIDER: %q (expected auto|openai|mock)", cfg.LLMProvider)
	}
}
