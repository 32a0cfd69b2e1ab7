package session

import "time"

// Session is one named conversation thread of a persona.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	Name string `json:"name"`
}

// RenameRequest defines payload for renaming a session.
type RenameRequest struct {
	Name string `json:"name"`
}
