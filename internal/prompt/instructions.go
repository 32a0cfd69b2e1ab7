package prompt

import "strings"

// CommandHints tells the model which slash commands exist and how to save a
// memory inline.
const CommandHints = `The user can type these commands:
/save <fact> remembers a fact
/forget <id> forgets a remembered fact
/memories lists what you remember
/imagine <prompt> generates an image
/search <query> searches the web

When the user tells you something worth remembering long term, include [SAVE_MEMORY: <fact>] in your reply. It is removed before the user sees it.`

// Instructions joins persona instructions, the assembled context and the
// command hints, skipping empty parts.
func Instructions(personaInstructions, context, hints string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{personaInstructions, context, hints} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}
