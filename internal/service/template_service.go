package service

import (
	"math/rand"
	"strings"
)

// Resolve expands alternation groups in a template. A group is a
// brace-delimited, pipe-separated list of choices, e.g. "{Oi|Olá|E aí}", and
// is replaced by one choice drawn uniformly at random. Groups do not nest.
// Brace fragments without a pipe (placeholders like "{name}") pass through
// untouched, as does all plain text.
//
// Repeated calls yield independent variants; that is the mechanism by which
// thousands of recipients each receive slightly different text.
func Resolve(template string) string {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			b.WriteString(template[i:])
			break
		}
		open += i

		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		end += open

		b.WriteString(template[i:open])

		inner := template[open+1 : end]
		if strings.Contains(inner, "|") {
			choices := strings.Split(inner, "|")
			b.WriteString(choices[rand.Intn(len(choices))])
		} else {
			// not an alternation group, keep the braces for RenderTemplate
			b.WriteString(template[open : end+1])
		}
		i = end + 1
	}

	return b.String()
}

// RenderTemplate substitutes {key} placeholders with their values.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Preview returns n independently resolved variants of a template so the
// operator can see example outputs. n is clamped to 1..4.
func Preview(template string, n int) []string {
	if n < 1 {
		n = 3
	}
	if n > 4 {
		n = 4
	}
	out := make([]string, n)
	for i := range out {
		out[i] = Resolve(template)
	}
	return out
}
