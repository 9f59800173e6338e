package model

import "time"

// Message represents a chat message in the conversation
type Message struct {
	ID        string
	Role      string
	Content   string
	Rendered  string // Cached rendered markdown
	Timestamp time.Time
	Pending   bool // Locally-added, not yet confirmed by the server
}
