package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ent0n29/mockinterview/internal/problem"
)

const (
	// Greeting is the fixed first interviewer line.
	Greeting = "Hi, I'm Alex. Tell me a little about yourself."
	// IntroducePrompt asks the model to present the problem. It is sent as
	// an ephemeral user message and never stored.
	IntroducePrompt = "Please introduce the problem."
	// EncourageSpoken is what the candidate hears for TokenEncourage.
	EncourageSpoken = "Go on."
	// ThinkingDisplay is what the candidate sees for TokenThinking.
	ThinkingDisplay = "..."
)

// SystemPrompt builds the persona instructions with the problem as hidden
// context.
func SystemPrompt(p problem.Problem) string {
	hints, err := json.Marshal(p.Hints)
	if err != nil {
		hints = []byte("[]")
	}
	var b strings.Builder
	b.WriteString(`You are "Interviewer Alex," a strict but encouraging FAANG-style interviewer.

1. Always keep your replies ≤2 sentences and ≤140 characters.
2. First turn: "` + Greeting + `"
`)
	fmt.Fprintf(&b, "3. Second turn: \"We'll work on a %s problem today.\"\n", p.Title)
	b.WriteString(`4. Don't reveal any problem details unless the candidate explicitly asks for:
   - "examples": reply with only the examples block.
   - "hints": reply with only the hints block.
   - "statement" or "problem statement": reply with only the statement.
5. If the candidate is thinking aloud (no question, no code), respond exactly ` + TokenEncourage + `.
6. If you need to show silence, respond exactly ` + TokenThinking + `.
7. Only correct obvious mistakes in their reasoning with a single sentence, then stay quiet again.
8. Always end each turn with either a question or one of the tokens ` + TokenEncourage + ` or ` + TokenThinking + `.

Hidden context (reveal only when asked):
`)
	fmt.Fprintf(&b, "• Title: %s\n", p.Title)
	fmt.Fprintf(&b, "• Difficulty: %s\n", p.Difficulty)
	fmt.Fprintf(&b, "• Topics: %s\n", strings.Join(p.Topics, ", "))
	fmt.Fprintf(&b, "• Statement: %s\n", p.Statement)
	fmt.Fprintf(&b, "• Examples: %s\n", p.Examples)
	fmt.Fprintf(&b, "• Constraints: %s\n", p.Constraints)
	fmt.Fprintf(&b, "• Hints: %s", hints)
	return b.String()
}

// Rendering is how a stored reply reaches the candidate.
type Rendering struct {
	Display string
	Speak   string
}

// Render maps a stored assistant reply to its on-screen text and the text to
// synthesize. An empty Speak means no audio.
func Render(reply string) Rendering {
	switch reply {
	case TokenThinking:
		return Rendering{Display: ThinkingDisplay}
	case TokenEncourage:
		return Rendering{Display: EncourageSpoken, Speak: EncourageSpoken}
	default:
		return Rendering{Display: reply, Speak: spokenForm(reply)}
	}
}
