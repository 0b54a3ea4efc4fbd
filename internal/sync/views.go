package sync

import (
	"context"

	"github.com/username/deskchat/internal/apiclient"
	"github.com/username/deskchat/internal/domain/entities"
)

// Views composes cache reads into the typed snapshots screens consume.
// Views own no state of their own: every result is a pure function of the
// underlying store entries, and reading through a view triggers the same
// background fetches a raw store read would.
type Views struct {
	client *apiclient.Client
	store  *Store
}

// NewViews creates the read side of the sync layer
func NewViews(client *apiclient.Client, store *Store) *Views {
	return &Views{client: client, store: store}
}

// ProjectListView is the project overview screen: all projects
type ProjectListView struct {
	Projects []entities.Project
	Status   Status
	Err      error
}

// ConversationListView is a project's sidebar: the project plus its
// conversations, composed from two independently-loading reads
type ConversationListView struct {
	Project       *entities.Project
	Conversations []entities.Conversation
	Status        Status
	Err           error
}

// ConversationView is an open conversation: metadata plus the ordered
// message list, composed from two independently-loading reads
type ConversationView struct {
	Conversation *entities.Conversation
	Messages     []entities.Message
	Status       Status
	Err          error
}

// ProjectList reads the project list
func (v *Views) ProjectList(ctx context.Context) ProjectListView {
	snap := v.store.Read(ctx, ProjectsKey(), func(ctx context.Context) (interface{}, error) {
		return v.client.ListProjects(ctx)
	})

	view := ProjectListView{Status: snap.Status, Err: snap.Err}
	if projects, ok := snap.Value.([]entities.Project); ok {
		view.Projects = projects
	}
	return view
}

// ConversationList reads a project and its conversation list
func (v *Views) ConversationList(ctx context.Context, projectID int64) ConversationListView {
	projectSnap := v.store.Read(ctx, ProjectKey(projectID), func(ctx context.Context) (interface{}, error) {
		return v.client.GetProject(ctx, projectID)
	})
	listSnap := v.store.Read(ctx, ConversationsKey(projectID), func(ctx context.Context) (interface{}, error) {
		return v.client.ListConversations(ctx, projectID)
	})

	view := ConversationListView{}
	view.Status, view.Err = composeStatus(projectSnap, listSnap)
	if project, ok := projectSnap.Value.(*entities.Project); ok {
		view.Project = project
	}
	if conversations, ok := listSnap.Value.([]entities.Conversation); ok {
		view.Conversations = conversations
	}
	return view
}

// Conversation reads an open conversation's metadata and messages
func (v *Views) Conversation(ctx context.Context, projectID, conversationID int64) ConversationView {
	metaSnap := v.store.Read(ctx, ConversationKey(projectID, conversationID), func(ctx context.Context) (interface{}, error) {
		return v.client.GetConversation(ctx, projectID, conversationID)
	})
	messagesSnap := v.store.Read(ctx, MessagesKey(projectID, conversationID), func(ctx context.Context) (interface{}, error) {
		return v.client.ListMessages(ctx, projectID, conversationID)
	})

	view := ConversationView{}
	view.Status, view.Err = composeStatus(metaSnap, messagesSnap)
	if conversation, ok := metaSnap.Value.(*entities.Conversation); ok {
		view.Conversation = conversation
	}
	if messages, ok := messagesSnap.Value.([]entities.Message); ok {
		view.Messages = messages
	}
	return view
}

// Watch subscribes to changes under prefix so a screen can re-read when
// any entry it depends on moves
func (v *Views) Watch(prefix Key) (<-chan Key, func()) {
	return v.store.Subscribe(prefix)
}

// composeStatus folds several reads into one signal: error if any read
// errored, ready only when every read is ready, loading otherwise
func composeStatus(snaps ...Snapshot) (Status, error) {
	for _, snap := range snaps {
		if snap.Status == StatusError {
			return StatusError, snap.Err
		}
	}
	for _, snap := range snaps {
		if snap.Status != StatusReady {
			return StatusLoading, nil
		}
	}
	return StatusReady, nil
}
