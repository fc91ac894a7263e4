package llm

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/mockinterview/internal/conversation"
	"github.com/ent0n29/mockinterview/internal/problem"
)

func TestShapeReplyKeepsShortReplies(t *testing.T) {
	assert.Equal(t, "What is the complexity?", ShapeReply("  What is the complexity?\n", 140))
}

func TestShapeReplyPassesTokens(t *testing.T) {
	assert.Equal(t, TokenThinking, ShapeReply(" [THINKING] ", 5))
	assert.Equal(t, TokenEncourage, ShapeReply("[ENCOURAGE]", 5))
}

func TestShapeReplyCutsAtWordBoundary(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := ShapeReply(long, 140)

	require.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 140)
	body := strings.TrimSuffix(got, "…")
	assert.False(t, strings.HasSuffix(body, " "))
	for _, w := range strings.Fields(body) {
		assert.Equal(t, "word", w)
	}
}

func TestShapeReplyWithoutSpaces(t *testing.T) {
	got := ShapeReply(strings.Repeat("x", 200), 140)
	assert.Equal(t, 140, utf8.RuneCountInString(got))
}

func TestRender(t *testing.T) {
	assert.Equal(t, Rendering{Display: "...", Speak: ""}, Render(TokenThinking))
	assert.Equal(t, Rendering{Display: "Go on.", Speak: "Go on."}, Render(TokenEncourage))
	assert.Equal(t, Rendering{Display: "Hello", Speak: "Hello"}, Render("Hello"))
}

func TestRenderSpeaksWhatTheCandidateShouldHear(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		speak string
	}{
		{"emoji and emphasis", "Sure 😊 **let's** do this.", "Sure let's do this."},
		{"quadratic bound", "What is the runtime of O(n^2)?", "What is the runtime of big O of n squared?"},
		{"log-linear bound", "Can you beat O(n log n)?", "Can you beat big O of n log n?"},
		{"product bound at start", "O(m*n) is fine.", "big O of m times n is fine."},
		{"inline identifier", "What does `twoSum` return?", "What does twoSum return?"},
		{"code block", "Look at this:\n```go\nreturn nil\n```", "Look at this:"},
		{"link label", "See [the docs](https://example.com/a) first.", "See the docs first."},
		{"trailing token", "Good point. " + TokenEncourage, "Good point."},
		{"only code", "```\nfor i := range n {}\n```", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Render(tc.reply)
			assert.Equal(t, tc.reply, r.Display)
			assert.Equal(t, tc.speak, r.Speak)
		})
	}
}

func TestSystemPromptCarriesHiddenContext(t *testing.T) {
	p := problem.Problem{
		Title:      "Two Sum",
		Difficulty: "Easy",
		Statement:  "Find two numbers.",
		Topics:     []string{"array", "hash-table"},
		Hints:      []string{"use a map"},
	}
	prompt := SystemPrompt(p)

	assert.Contains(t, prompt, "Interviewer Alex")
	assert.Contains(t, prompt, "We'll work on a Two Sum problem today.")
	assert.Contains(t, prompt, "array, hash-table")
	assert.Contains(t, prompt, `["use a map"]`)
	assert.Contains(t, prompt, TokenEncourage)
}

func TestToChatMessagesAppendsCodeContext(t *testing.T) {
	req := Request{
		Turns: []conversation.Turn{
			{Role: conversation.RoleSystem, Content: "sys"},
			{Role: conversation.RoleAssistant, Content: "hi"},
			{Role: conversation.RoleUser, Content: "hello there"},
		},
		Code: "func main() {}",
	}
	msgs := toChatMessages(req)

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "user", msgs[2].Role)
	assert.Contains(t, msgs[3].Content, "func main() {}")

	req.Code = "   "
	assert.Len(t, toChatMessages(req), 3)
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator()
	reply, err := g.Generate(context.Background(), Request{Turns: []conversation.Turn{
		{Role: conversation.RoleUser, Content: IntroducePrompt},
	}})
	require.NoError(t, err)
	assert.Contains(t, reply, "coding problem")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorFunc(t *testing.T) {
	var g Generator = GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		return req.SessionID, nil
	})
	got, err := g.Generate(context.Background(), Request{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", got)
}
