package resolve

import (
	"strings"
	"unicode"
)

// defaultAbbreviations expands the equipment shorthand lifters actually
// write. Config can extend it but not shrink it.
var defaultAbbreviations = map[string]string{
	"bb":   "barbell",
	"db":   "dumbbell",
	"kb":   "kettlebell",
	"bw":   "bodyweight",
	"ez":   "ez bar",
	"ohp":  "overhead press",
	"rdl":  "romanian deadlift",
	"sldl": "stiff leg deadlift",
	"gm":   "good morning",
	"alt":  "alternating",
	"sa":   "single arm",
	"sl":   "single leg",
}

// NormalizeKey reduces a free-text exercise name to the form used to dedupe
// resolution lookups: lowercased, every punctuation/whitespace run collapsed
// to one space. "Bench-Press!" and "bench press" share a key.
func NormalizeKey(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return sb.String()
}

// Tokenize lowercases, maps hyphens and slashes to spaces, splits on
// whitespace, and expands abbreviations from both the built-in dictionary
// and extra. Expansions may contribute multiple tokens.
func Tokenize(name string, extra map[string]string) []string {
	mapped := strings.Map(func(r rune) rune {
		if r == '-' || r == '/' {
			return ' '
		}
		return r
	}, strings.ToLower(name))

	fields := strings.Fields(mapped)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		expansion, ok := extra[field]
		if !ok {
			expansion, ok = defaultAbbreviations[field]
		}
		if !ok {
			out = append(out, field)
			continue
		}
		out = append(out, strings.Fields(expansion)...)
	}
	return out
}
