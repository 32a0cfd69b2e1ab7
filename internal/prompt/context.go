// Package prompt assembles the context preamble sent with each generation
// request.
package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/memory"
	"github.com/cathedral/cathedral/internal/projectfile"
)

const (
	MemoriesHeader     = "Things you remember about the user:"
	FilesHeader        = "Project files:"
	ConversationHeader = "Recent conversation:"
)

// Options tunes Build. The zero value formats the whole history.
type Options struct {
	// HistoryWindow keeps only the most recent messages when > 0.
	HistoryWindow int
}

// Build is BuildWith using zero Options.
func Build(historyNewestFirst []history.Message, memories []memory.Memory, files []projectfile.File) string {
	return BuildWith(Options{}, historyNewestFirst, memories, files)
}

// BuildWith renders memories, project files and the conversation, in that
// order. Empty sections are omitted and all-empty input yields "".
// historyNewestFirst is in storage order.
func BuildWith(opts Options, historyNewestFirst []history.Message, memories []memory.Memory, files []projectfile.File) string {
	sections := make([]string, 0, 3)
	if s := memoriesSection(memories); s != "" {
		sections = append(sections, s)
	}
	if s := filesSection(files); s != "" {
		sections = append(sections, s)
	}

	recent := historyNewestFirst
	if opts.HistoryWindow > 0 && len(recent) > opts.HistoryWindow {
		recent = recent[:opts.HistoryWindow]
	}
	if s := conversationSection(history.Reverse(recent)); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n")
}

func memoriesSection(memories []memory.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	lines := make([]string, 0, len(memories)+1)
	lines = append(lines, MemoriesHeader)
	for _, m := range memories {
		lines = append(lines, "- "+m.Text)
	}
	return strings.Join(lines, "\n")
}

func filesSection(files []projectfile.File) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(FilesHeader)
	for _, f := range files {
		b.WriteString("\n- ")
		b.WriteString(f.Name)
		b.WriteString("\n```\n")
		b.WriteString(f.Content)
		b.WriteString("\n```")
	}
	return b.String()
}

func conversationSection(chronological []history.Message) string {
	if len(chronological) == 0 {
		return ""
	}
	lines := make([]string, 0, len(chronological)+1)
	lines = append(lines, ConversationHeader)
	for _, m := range chronological {
		lines = append(lines, roleLabel(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func roleLabel(role string) string {
	switch role {
	case history.RoleUser:
		return "User"
	case history.RoleAssistant:
		return "Assistant"
	case "":
		return "Unknown"
	default:
		r, size := utf8.DecodeRuneInString(role)
		return string(unicode.ToUpper(r)) + role[size:]
	}
}
