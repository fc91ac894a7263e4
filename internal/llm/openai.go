package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ent0n29/mockinterview/internal/conversation"
	"github.com/ent0n29/mockinterview/internal/reliability"
)

var ErrEmptyReply = errors.New("model returned no choices")

// OpenAIConfig configures an OpenAI-compatible chat completion backend.
type OpenAIConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Temperature   float32
	MaxReplyChars int
	MaxRetries    int
}

// OpenAIGenerator talks to any OpenAI-compatible chat completion API
// (LemonFox, LiteLLM, OpenAI).
type OpenAIGenerator struct {
	client   *openai.Client
	cfg      OpenAIConfig
	logger   *zap.Logger
	observer func(d time.Duration, err error)
}

func NewOpenAIGenerator(cfg OpenAIConfig, logger *zap.Logger) *OpenAIGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.MaxReplyChars == 0 {
		cfg.MaxReplyChars = DefaultMaxReplyChars
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}
}

// OnCall registers a latency observer for every completed model call.
func (g *OpenAIGenerator) OnCall(fn func(d time.Duration, err error)) {
	g.observer = fn
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := toChatMessages(req)
	started := time.Now()

	var reply string
	err := reliability.Retry(ctx, g.cfg.MaxRetries, 250*time.Millisecond, 2*time.Second, func(ctx context.Context) error {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.cfg.Model,
			Messages:    messages,
			Temperature: g.cfg.Temperature,
		})
		if err != nil {
			g.logger.Debug("chat completion attempt failed", zap.String("session_id", req.SessionID), zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyReply
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	if g.observer != nil {
		g.observer(time.Since(started), err)
	}
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return ShapeReply(reply, g.cfg.MaxReplyChars), nil
}

func toChatMessages(req Request) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	for _, t := range req.Turns {
		out = append(out, openai.ChatCompletionMessage{
			Role:    chatRole(t.Role),
			Content: t.Content,
		})
	}
	if code := strings.TrimSpace(req.Code); code != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Candidate's current code (context only, do not read it back):\n```\n" + code + "\n```",
		})
	}
	return out
}

func chatRole(r conversation.Role) string {
	switch r {
	case conversation.RoleSystem:
		return openai.ChatMessageRoleSystem
	case conversation.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
