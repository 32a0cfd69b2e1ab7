package memory

import (
	"fmt"
	"strings"
)

const NoMemoriesMessage = "I don't have any memories saved yet. Use /save to add one."

// FormatForDisplay renders a numbered listing with each memory's id in
// brackets so it can be passed to /forget.
func FormatForDisplay(items []Memory) string {
	if len(items) == 0 {
		return NoMemoriesMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what I remember (%d):\n", len(items))
	for i, m := range items {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, m.ID, m.Text)
		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
