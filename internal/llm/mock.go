package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/mockinterview/internal/conversation"
)

// MockGenerator gives deterministic replies when no model is configured.
type MockGenerator struct {
	MaxReplyChars int
}

func NewMockGenerator() *MockGenerator { return &MockGenerator{MaxReplyChars: DefaultMaxReplyChars} }

func (g *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return ShapeReply(buildMockReply(req.Turns), g.MaxReplyChars), nil
}

func buildMockReply(turns []conversation.Turn) string {
	var lastUser string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleUser {
			lastUser = strings.TrimSpace(turns[i].Content)
			break
		}
	}
	switch {
	case lastUser == "":
		return "Hi, I'm Alex. Tell me a little about yourself."
	case strings.EqualFold(lastUser, IntroducePrompt):
		return "Let's work on a coding problem today. Take a moment to read it, then walk me through your approach."
	default:
		return fmt.Sprintf("I heard: %s. What is the time complexity of that?", lastUser)
	}
}
