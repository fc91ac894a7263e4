package problem

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNoProblems = errors.New("no free problems available")

// Problem is the coding question for one interview. It is read-only once
// selected.
type Problem struct {
	Slug        string   `json:"slug" yaml:"slug"`
	Title       string   `json:"title" yaml:"title"`
	Difficulty  string   `json:"difficulty" yaml:"difficulty"`
	Statement   string   `json:"body" yaml:"body"`
	Examples    string   `json:"examples" yaml:"examples"`
	Constraints string   `json:"constraints" yaml:"constraints"`
	Hints       []string `json:"hints" yaml:"hints"`
	Topics      []string `json:"topics" yaml:"topics"`
	Paid        bool     `json:"is_paid" yaml:"is_paid"`
}

// Source supplies the problem for a new session.
type Source interface {
	Random(ctx context.Context) (Problem, error)
	Close() error
}

// FormattedQuestion renders the full problem as markdown.
func (p Problem) FormattedQuestion() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**  (Difficulty: %s)\n\n", p.Title, p.Difficulty)
	b.WriteString(p.Statement)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Topics:** %s\n\n", strings.Join(p.Topics, ", "))
	fmt.Fprintf(&b, "**Examples:**\n%s\n\n", p.Examples)
	fmt.Fprintf(&b, "**Constraints:**\n%s\n\n", p.Constraints)
	b.WriteString("**Hints:**\n")
	for i, h := range p.Hints {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, h)
	}
	return b.String()
}

func freeOnly(in []Problem) []Problem {
	out := make([]Problem, 0, len(in))
	for _, p := range in {
		if p.Paid || strings.TrimSpace(p.Title) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
