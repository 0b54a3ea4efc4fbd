package sync

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/username/deskchat/internal/apiclient"
	"github.com/username/deskchat/internal/domain/entities"
	"github.com/username/deskchat/internal/pkg/logutil"
)

// Mutations is the write side of the sync layer: each operation calls the
// backend through the resource client and, on success, applies exactly one
// cache effect. Project and conversation writes invalidate, because their
// outcome must be re-derived from the authoritative list; message sends
// patch, because the response already carries the persisted messages with
// server-assigned ids. On failure the cache is left untouched and the
// typed error is returned to the caller; there is no automatic retry.
type Mutations struct {
	client *apiclient.Client
	store  *Store
	logger *logutil.Logger

	projectPending      atomic.Bool
	conversationPending atomic.Bool
	sendPending         atomic.Bool
}

// NewMutations creates the write side of the sync layer
func NewMutations(client *apiclient.Client, store *Store, logger *logutil.Logger) *Mutations {
	if logger == nil {
		logger = logutil.NewDefault()
	}
	return &Mutations{
		client: client,
		store:  store,
		logger: logger.WithFields(logutil.Fields{"component": "sync.mutations"}),
	}
}

// ProjectPending reports whether a project write is in flight. Callers use
// it to disable a submit control; the engine itself does not queue or
// deduplicate concurrent calls.
func (m *Mutations) ProjectPending() bool { return m.projectPending.Load() }

// ConversationPending reports whether a conversation write is in flight
func (m *Mutations) ConversationPending() bool { return m.conversationPending.Load() }

// SendPending reports whether a message send is in flight
func (m *Mutations) SendPending() bool { return m.sendPending.Load() }

// CreateProject creates a project and invalidates the project list so the
// next read includes it. Returns the created project so the caller can
// navigate to it.
func (m *Mutations) CreateProject(ctx context.Context, in entities.CreateProjectInput) (*entities.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.projectPending.Store(true)
	defer m.projectPending.Store(false)

	project, err := m.client.CreateProject(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	m.store.Invalidate(ProjectsKey())
	m.logger.Info("project created", logutil.Fields{"project_id": project.ID})
	return project, nil
}

// UpdateProject renames a project and invalidates every project entry
func (m *Mutations) UpdateProject(ctx context.Context, projectID int64, in entities.UpdateProjectInput) (*entities.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.projectPending.Store(true)
	defer m.projectPending.Store(false)

	project, err := m.client.UpdateProject(ctx, projectID, in)
	if err != nil {
		return nil, fmt.Errorf("update project %d: %w", projectID, err)
	}

	m.store.Invalidate(ProjectsKey())
	m.logger.Info("project updated", logutil.Fields{"project_id": projectID})
	return project, nil
}

// DeleteProject deletes a project. The backend cascades the delete, so the
// whole cached subtree under the project is invalidated as well: an open
// conversation view refetches and surfaces NotFound instead of serving
// children the client must no longer assume valid.
func (m *Mutations) DeleteProject(ctx context.Context, projectID int64) error {
	m.projectPending.Store(true)
	defer m.projectPending.Store(false)

	if err := m.client.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete project %d: %w", projectID, err)
	}

	m.store.Invalidate(ProjectsKey())
	m.store.Invalidate(ConversationsKey(projectID))
	m.store.Invalidate(Key{Kind: KindMessages, Path: []int64{projectID}})
	m.logger.Info("project deleted", logutil.Fields{"project_id": projectID})
	return nil
}

// CreateConversation creates a conversation and invalidates the owning
// project's conversation list
func (m *Mutations) CreateConversation(ctx context.Context, projectID int64, in entities.CreateConversationInput) (*entities.Conversation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.conversationPending.Store(true)
	defer m.conversationPending.Store(false)

	conversation, err := m.client.CreateConversation(ctx, projectID, in)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	m.store.Invalidate(ConversationsKey(projectID))
	m.logger.Info("conversation created", logutil.Fields{
		"project_id":      projectID,
		"conversation_id": conversation.ID,
	})
	return conversation, nil
}

// UpdateConversation retitles a conversation and invalidates the owning
// project's conversation list, which covers the single-item entry too
func (m *Mutations) UpdateConversation(ctx context.Context, projectID, conversationID int64, in entities.UpdateConversationInput) (*entities.Conversation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.conversationPending.Store(true)
	defer m.conversationPending.Store(false)

	conversation, err := m.client.UpdateConversation(ctx, projectID, conversationID, in)
	if err != nil {
		return nil, fmt.Errorf("update conversation %d: %w", conversationID, err)
	}

	m.store.Invalidate(ConversationsKey(projectID))
	m.logger.Info("conversation updated", logutil.Fields{
		"project_id":      projectID,
		"conversation_id": conversationID,
	})
	return conversation, nil
}

// DeleteConversation deletes a conversation, invalidating the owning list
// and the conversation's cached messages
func (m *Mutations) DeleteConversation(ctx context.Context, projectID, conversationID int64) error {
	m.conversationPending.Store(true)
	defer m.conversationPending.Store(false)

	if err := m.client.DeleteConversation(ctx, projectID, conversationID); err != nil {
		return fmt.Errorf("delete conversation %d: %w", conversationID, err)
	}

	m.store.Invalidate(ConversationsKey(projectID))
	m.store.Invalidate(MessagesKey(projectID, conversationID))
	m.logger.Info("conversation deleted", logutil.Fields{
		"project_id":      projectID,
		"conversation_id": conversationID,
	})
	return nil
}

// SendMessage posts a user message and optimistically appends the result
// to the cached message list: the user message first, then the assistant
// reply when the backend generated one. No invalidation happens — the list
// is already complete with server-assigned ids, so a refetch would only
// re-download what the response delivered.
func (m *Mutations) SendMessage(ctx context.Context, projectID, conversationID int64, in entities.SendMessageInput) (*entities.SendMessageResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.sendPending.Store(true)
	defer m.sendPending.Store(false)

	result, err := m.client.SendMessage(ctx, projectID, conversationID, in)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	m.store.Patch(MessagesKey(projectID, conversationID), func(old interface{}) interface{} {
		messages, _ := old.([]entities.Message)
		appended := make([]entities.Message, 0, len(messages)+2)
		appended = append(appended, messages...)
		appended = append(appended, result.Message)
		if result.AssistantMessage != nil {
			appended = append(appended, *result.AssistantMessage)
		}
		return appended
	})

	m.logger.Info("message sent", logutil.Fields{
		"project_id":      projectID,
		"conversation_id": conversationID,
		"message_id":      result.Message.ID,
		"has_reply":       result.AssistantMessage != nil,
	})
	return result, nil
}
