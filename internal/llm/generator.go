package llm

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/ent0n29/mockinterview/internal/conversation"
)

// Control tokens the interviewer persona may answer with instead of speech.
const (
	TokenThinking  = "[THINKING]"
	TokenEncourage = "[ENCOURAGE]"
)

// DefaultMaxReplyChars caps spoken replies.
const DefaultMaxReplyChars = 140

// Request is everything the model sees for one reply.
type Request struct {
	SessionID string
	Turns     []conversation.Turn
	// Code is the candidate's current editor contents, sent as ephemeral
	// context and never stored as a turn.
	Code string
}

// Generator produces the interviewer's next line.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// IsControlToken reports whether reply is one of the persona's tokens.
func IsControlToken(reply string) bool {
	return reply == TokenThinking || reply == TokenEncourage
}

// ShapeReply trims the model output and caps it at maxChars runes, cutting at
// a word boundary and appending an ellipsis. Control tokens pass unchanged.
func ShapeReply(reply string, maxChars int) string {
	reply = strings.TrimSpace(reply)
	if IsControlToken(reply) || maxChars <= 0 {
		return reply
	}
	if utf8.RuneCountInString(reply) <= maxChars {
		return reply
	}

	runes := []rune(reply)
	limit := maxChars - 3
	if limit < 1 {
		limit = 1
	}
	cut := -1
	for i := limit; i > 0; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	if cut <= 0 {
		cut = maxChars - 1
	}
	return strings.TrimRight(string(runes[:cut]), " ") + "…"
}
