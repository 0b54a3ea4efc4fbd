package entities

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known variants
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Bot describes the persona behind an assistant message. It is attached by
// the backend and never mutated by the client.
type Bot struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
}

// Message represents a single message in a conversation. IDs and timestamps
// are assigned by the backend; messages are append-only.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	AgentID        string    `json:"agent_id,omitempty"`
	Bot            *Bot      `json:"bot,omitempty"`
}

// Validate checks the message invariants: a known role, non-empty content,
// and bot metadata only on assistant messages.
func (m *Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	if m.Bot != nil && m.Role != RoleAssistant {
		return fmt.Errorf("bot metadata is only valid on assistant messages, got role %q", m.Role)
	}
	return nil
}

// IsFromUser returns true if the message is from a user
func (m *Message) IsFromUser() bool {
	return m.Role == RoleUser
}

// IsFromAssistant returns true if the message is from an assistant
func (m *Message) IsFromAssistant() bool {
	return m.Role == RoleAssistant
}

// ExportRequest describes an export the backend detected and prepared in
// response to a user message.
type ExportRequest struct {
	Format      string `json:"format"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

// SendMessageResponse is the composite result of posting a user message.
// The backend persists the user message and, when it decides to answer,
// generates the assistant reply within the same request.
type SendMessageResponse struct {
	Message          Message        `json:"message"`
	AssistantMessage *Message       `json:"assistant_message,omitempty"`
	Bot              *Bot           `json:"bot,omitempty"`
	AgentsInvolved   []string       `json:"agents_involved,omitempty"`
	ExportRequested  *ExportRequest `json:"export_requested,omitempty"`
}
