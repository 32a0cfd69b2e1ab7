// Package policy masks sensitive text before it reaches logs.
package policy

import "regexp"

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	apiKeyPattern = regexp.MustCompile(`\b(?:sk-(?:ant-)?[A-Za-z0-9_\-]{16,}|Bearer\s+[A-Za-z0-9._\-]{16,})`)
)

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: keys before cards, cards before phones.
var rules = []rule{
	{emailPattern, "[REDACTED_EMAIL]"},
	{apiKeyPattern, "[REDACTED_KEY]"},
	{cardPattern, "[REDACTED_CARD]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// RedactPII masks contact details, card numbers and vendor API keys.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// Preview is a redacted excerpt of at most max runes, for log fields.
func Preview(text string, max int) string {
	redacted, _ := RedactPII(text)
	if r := []rune(redacted); max > 0 && len(r) > max {
		return string(r[:max]) + "…"
	}
	return redacted
}
