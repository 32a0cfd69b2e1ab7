// Package library stores captured readings and the per-companion chats held
// about them.
package library

import (
	"errors"
	"strings"
	"time"
)

const (
	SourceManual           = "manual"
	SourceKindleExtension  = "kindle-extension"
	SourceBrowserExtension = "browser-extension"
	SourceContextMenu      = "context-menu"

	DefaultMaxChars = 50000
	DefaultTitle    = "Untitled"
)

var (
	ErrNotFound     = errors.New("reading not found")
	ErrInvalidInput = errors.New("invalid reading")
)

// Reading is one captured text.
type Reading struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	WordCount int       `json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Progress  *float64  `json:"progress,omitempty"`
}

// CreateRequest is the capture payload, including the one the browser
// extension posts.
type CreateRequest struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Title    *string  `json:"title"`
	URL      *string  `json:"url"`
	Text     *string  `json:"text"`
	Progress *float64 `json:"progress"`
}

// NormalizeSource maps "" to manual and rejects anything unknown.
func NormalizeSource(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return SourceManual, true
	case SourceManual, SourceKindleExtension, SourceBrowserExtension, SourceContextMenu:
		return s, true
	default:
		return "", false
	}
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}
