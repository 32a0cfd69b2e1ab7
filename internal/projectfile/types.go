// Package projectfile stores the reference documents a user uploads for a
// persona. Content is truncated to a character budget before it is stored.
package projectfile

import (
	"errors"
	"time"
)

const (
	TypeText = "text"
	TypePDF  = "pdf"

	DefaultMaxChars = 50000
)

var (
	ErrNotFound     = errors.New("project file not found")
	ErrInvalidInput = errors.New("invalid project file")
)

// File is one uploaded document. Size is the byte length of the upload
// before extraction and truncation.
type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Summary is File without its content, for listings.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int       `json:"size"`
	Chars      int       `json:"chars"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (f File) Summary() Summary {
	return Summary{
		ID:         f.ID,
		Name:       f.Name,
		Type:       f.Type,
		Size:       f.Size,
		Chars:      len([]rune(f.Content)),
		UploadedAt: f.UploadedAt,
	}
}

// Truncate cuts s to at most max runes. A non-positive max leaves s alone.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
