package entities

import (
	"strings"

	"github.com/username/deskchat/internal/pkg/validate"
)

// CreateProjectInput is the payload for creating a project
type CreateProjectInput struct {
	Name string `json:"name"`
}

// Validate checks the payload and normalizes whitespace
func (in *CreateProjectInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	return validate.New().
		RequiredString("name", in.Name).
		MaxLength("name", in.Name, MaxProjectNameLength).
		Err()
}

// UpdateProjectInput is the payload for renaming a project
type UpdateProjectInput struct {
	Name string `json:"name"`
}

func (in *UpdateProjectInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	return validate.New().
		RequiredString("name", in.Name).
		MaxLength("name", in.Name, MaxProjectNameLength).
		Err()
}

// CreateConversationInput is the payload for creating a conversation
type CreateConversationInput struct {
	Title string `json:"title"`
}

func (in *CreateConversationInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	return validate.New().
		RequiredString("title", in.Title).
		MaxLength("title", in.Title, MaxConversationTitleLength).
		Err()
}

// UpdateConversationInput is the payload for retitling a conversation
type UpdateConversationInput struct {
	Title string `json:"title"`
}

func (in *UpdateConversationInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	return validate.New().
		RequiredString("title", in.Title).
		MaxLength("title", in.Title, MaxConversationTitleLength).
		Err()
}

// SendMessageInput is the payload for posting a user message. Only the
// user role is accepted from clients; assistant and system messages are
// created by the backend.
type SendMessageInput struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (in *SendMessageInput) Validate() error {
	return validate.New().
		OneOf("role", string(in.Role), string(RoleUser)).
		RequiredString("content", in.Content).
		Err()
}
