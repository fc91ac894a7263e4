package llm

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencedCode   = regexp.MustCompile("(?s)```.*?```")
	inlineCode   = regexp.MustCompile("`([^`]*)`")
	markdownLink = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bareURL      = regexp.MustCompile(`https?://\S+`)
	complexity   = regexp.MustCompile(`(^|[^\pL\d_])([OΘΩ])\(([^()]*)\)`)
	power        = regexp.MustCompile(`\^(\w+)`)
)

var complexityNames = map[string]string{"O": "big O", "Θ": "theta", "Ω": "omega"}

// spokenForm rewrites a reply for the speech backend. Code blocks are left to
// the screen and complexity notation is read out.
func spokenForm(reply string) string {
	s := strings.NewReplacer(TokenEncourage, " ", TokenThinking, " ").Replace(reply)
	s = fencedCode.ReplaceAllString(s, " ")
	s = markdownLink.ReplaceAllString(s, "$1")
	s = bareURL.ReplaceAllString(s, " ")
	s = complexity.ReplaceAllStringFunc(s, func(m string) string {
		sub := complexity.FindStringSubmatch(m)
		return sub[1] + complexityNames[sub[2]] + " of " + readBound(sub[3])
	})
	s = inlineCode.ReplaceAllString(s, "$1")

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || strings.ContainsRune("*_#~|<>\\/`", r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case unicode.IsControl(r), unicode.In(r, unicode.So, unicode.Sk, unicode.Mn, unicode.Cf), r == '…':
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}

// readBound spells an asymptotic bound such as "n^2 log n".
func readBound(expr string) string {
	expr = power.ReplaceAllStringFunc(expr, func(m string) string {
		switch p := m[1:]; p {
		case "2":
			return " squared"
		case "3":
			return " cubed"
		default:
			return " to the " + p
		}
	})
	expr = strings.NewReplacer("*", " times ", "+", " plus ", "/", " over ", "!", " factorial", "·", " times ").Replace(expr)
	return strings.Join(strings.Fields(expr), " ")
}
