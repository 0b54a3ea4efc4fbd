package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageValidate(t *testing.T) {
	bot := &Bot{Name: "Alex", Avatar: "/avatars/alex.png", Role: "assistant"}

	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{
			name:    "valid_user_message",
			message: Message{Role: RoleUser, Content: "hello"},
		},
		{
			name:    "valid_assistant_with_bot",
			message: Message{Role: RoleAssistant, Content: "hi", Bot: bot},
		},
		{
			name:    "valid_system_message",
			message: Message{Role: RoleSystem, Content: "context"},
		},
		{
			name:    "unknown_role",
			message: Message{Role: "moderator", Content: "hello"},
			wantErr: true,
		},
		{
			name:    "empty_content",
			message: Message{Role: RoleUser, Content: "   "},
			wantErr: true,
		},
		{
			name:    "bot_on_user_message",
			message: Message{Role: RoleUser, Content: "hello", Bot: bot},
			wantErr: true,
		},
		{
			name:    "bot_on_system_message",
			message: Message{Role: RoleSystem, Content: "ctx", Bot: bot},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.True(t, RoleSystem.Valid())
	assert.False(t, Role("tool").Valid())
	assert.False(t, Role("").Valid())
}

func TestCreateProjectInputValidate(t *testing.T) {
	in := CreateProjectInput{Name: "  Acme  "}
	assert.NoError(t, in.Validate())
	assert.Equal(t, "Acme", in.Name, "validation trims the name")

	empty := CreateProjectInput{Name: "   "}
	assert.Error(t, empty.Validate())

	long := CreateProjectInput{Name: strings.Repeat("x", MaxProjectNameLength+1)}
	assert.Error(t, long.Validate())

	exact := CreateProjectInput{Name: strings.Repeat("x", MaxProjectNameLength)}
	assert.NoError(t, exact.Validate())
}

func TestCreateConversationInputValidate(t *testing.T) {
	in := CreateConversationInput{Title: "Kickoff"}
	assert.NoError(t, in.Validate())

	long := CreateConversationInput{Title: strings.Repeat("y", MaxConversationTitleLength+1)}
	assert.Error(t, long.Validate())
}

func TestSendMessageInputValidate(t *testing.T) {
	assert.NoError(t, (&SendMessageInput{Role: RoleUser, Content: "hi"}).Validate())
	assert.Error(t, (&SendMessageInput{Role: RoleUser, Content: " "}).Validate())
	// Clients may only submit user messages
	assert.Error(t, (&SendMessageInput{Role: RoleAssistant, Content: "hi"}).Validate())
	assert.Error(t, (&SendMessageInput{Role: RoleSystem, Content: "hi"}).Validate())
}
