package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/voice"
)

type voiceSetup struct {
	provider         voice.Provider
	resolvedProvider string
	detail           string
}

func resolveVoiceProvider(cfg config.Config, logger *zap.Logger) (voiceSetup, error) {
	voiceMode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if voiceMode == "" {
		voiceMode = "auto"
	}

	tryOpenAI := func() (voiceSetup, bool) {
		if strings.TrimSpace(cfg.LLMAPIKey) == "" {
			return voiceSetup{}, false
		}
		p := voice.NewOpenAIProvider(voice.OpenAIConfig{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			TTSModel:    cfg.TTSModel,
			TTSVoice:    cfg.TTSVoice,
			TTSFormat:   cfg.TTSFormat,
			STTModel:    cfg.STTModel,
			STTLanguage: cfg.STTLanguage,
		})
		setup := voiceSetup{
			provider:         p,
			resolvedProvider: "openai",
			detail:           fmt.Sprintf("openai-compatible (%s/%s)", cfg.TTSModel, cfg.TTSVoice),
		}
		if cfg.VoiceFallbackMock {
			setup.provider = voice.NewFailoverProvider(p, voice.NewMockProvider())
			setup.detail += " with mock fallback"
			logger.Info("voice provider failover enabled", zap.String("fallback", "mock"))
		}
		return setup, true
	}
	mock := func(detail string) voiceSetup {
		return voiceSetup{
			provider:         voice.NewMockProvider(),
			resolvedProvider: "mock",
			detail:           detail,
		}
	}

	switch voiceMode {
	case "openai":
		if setup, ok := tryOpenAI(); ok {
			return setup, nil
		}
		return voiceSetup{}, fmt.Errorf("VOICE_PROVIDER=openai but neither LLM_API_KEY nor LEMONFOX_API_KEY is set")
	case "mock":
		return mock("mock"), nil
	case "auto":
		if setup, ok := tryOpenAI(); ok {
			return setup, nil
		}
		return mock("mock (no api key)"), nil
	default:
		return voiceSetup{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected auto|openai|mock)", cfg.VoiceProvider)
	}
}
