package speech

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ent0n29/mockinterview/internal/conversation"
)

// MinUtteranceRunes is the shortest text treated as real speech.
const MinUtteranceRunes = 2

// DefaultFillers are matched as whole-string, case-insensitive patterns.
var DefaultFillers = []string{"thank you", "hello", "hi", "okay", "um+", "ah+"}

// NoiseFilter classifies text that must never reach the conversation.
type NoiseFilter struct {
	fillers   *regexp.Regexp
	trimPunct bool
}

// NewNoiseFilter compiles the filler set. Each entry is a regular expression
// fragment that must match the whole utterance.
func NewNoiseFilter(fillers []string) (*NoiseFilter, error) {
	alts := make([]string, 0, len(fillers))
	for _, f := range fillers {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := regexp.Compile(f); err != nil {
			return nil, fmt.Errorf("invalid filler pattern %q: %w", f, err)
		}
		alts = append(alts, "(?:"+f+")")
	}
	nf := &NoiseFilter{}
	if len(alts) > 0 {
		nf.fillers = regexp.MustCompile(`(?i)^(?:` + strings.Join(alts, "|") + `)$`)
	}
	return nf, nil
}

// MustNoiseFilter is NewNoiseFilter for known-good filler sets.
func MustNoiseFilter(fillers []string) *NoiseFilter {
	nf, err := NewNoiseFilter(fillers)
	if err != nil {
		panic(err)
	}
	return nf
}

// IgnoringPunctuation returns a copy whose filler match also accepts
// trailing sentence punctuation, so "Okay." counts like "okay".
func (f *NoiseFilter) IgnoringPunctuation() *NoiseFilter {
	c := *f
	c.trimPunct = true
	return &c
}

// IsNoise reports whether text is empty, too short, or a filler. The filler
// must match the whole text after surrounding whitespace is removed.
func (f *NoiseFilter) IsNoise(text string) bool {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < MinUtteranceRunes {
		return true
	}
	if f == nil || f.fillers == nil {
		return false
	}
	if f.trimPunct {
		t = strings.TrimRight(t, ".!?,;: ")
	}
	return f.fillers.MatchString(t)
}

// IsEcho reports whether text is the interviewer's own last line picked back
// up by the microphone. Only an exact match against an assistant turn counts.
func IsEcho(last *conversation.Turn, text string) bool {
	if last == nil {
		return false
	}
	return last.Role == conversation.RoleAssistant && last.Content == text
}
