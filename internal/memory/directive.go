package memory

import (
	"regexp"
	"strings"
)

// DirectiveOpen is the literal prefix of an inline save-memory directive.
const DirectiveOpen = "[SAVE_MEMORY:"

var directivePattern = regexp.MustCompile(`(?is)\[SAVE_MEMORY:\s*(.*?)\s*\]`)

// ExtractDirectives finds every [SAVE_MEMORY: ...] directive in generated
// text. It returns the text with each directive removed verbatim (surrounding
// whitespace is left alone, only the ends are trimmed) and the non-empty
// payloads in order of appearance.
func ExtractDirectives(text string) (string, []string) {
	matches := directivePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), nil
	}
	facts := make([]string, 0, len(matches))
	for _, m := range matches {
		fact := strings.TrimSpace(m[1])
		if fact != "" {
			facts = append(facts, fact)
		}
	}
	cleaned := directivePattern.ReplaceAllString(text, "")
	return strings.TrimSpace(cleaned), facts
}
