package entities

import (
	"time"
)

// Conversation represents a message thread inside a project
type Conversation struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxConversationTitleLength is the upper bound the backend enforces on titles
const MaxConversationTitleLength = 200

// Retitle updates the conversation title and bumps the update timestamp
func (c *Conversation) Retitle(title string) {
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
}
