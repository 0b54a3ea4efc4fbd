package entities

import (
	"time"
)

// Project represents a workspace grouping related conversations
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxProjectNameLength is the upper bound the backend enforces on names
const MaxProjectNameLength = 100

// Rename updates the project name and bumps the update timestamp
func (p *Project) Rename(name string) {
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
}
