package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/deskchat/internal/apiclient"
	"github.com/username/deskchat/internal/domain/entities"
)

type fixture struct {
	backend   *stubBackend
	store     *Store
	views     *Views
	mutations *Mutations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := newStubBackend(t)
	client := backend.client()
	store := NewStore(nil)
	return &fixture{
		backend:   backend,
		store:     store,
		views:     NewViews(client, store),
		mutations: NewMutations(client, store, nil),
	}
}

// readFreshConversations reads the conversation list until the entry is
// ready and not stale, i.e. any pending refetch has landed
func (f *fixture) readFreshConversations(t *testing.T, projectID int64) []entities.Conversation {
	t.Helper()
	var view ConversationListView
	require.Eventually(t, func() bool {
		view = f.views.ConversationList(context.Background(), projectID)
		snap := f.store.Peek(ConversationsKey(projectID))
		return view.Status == StatusReady && !snap.Stale
	}, 2*time.Second, 5*time.Millisecond)
	return view.Conversations
}

func (f *fixture) readFreshMessages(t *testing.T, projectID, conversationID int64) []entities.Message {
	t.Helper()
	var view ConversationView
	require.Eventually(t, func() bool {
		view = f.views.Conversation(context.Background(), projectID, conversationID)
		snap := f.store.Peek(MessagesKey(projectID, conversationID))
		return view.Status == StatusReady && !snap.Stale
	}, 2*time.Second, 5*time.Millisecond)
	return view.Messages
}

func TestCreateProjectInvalidatesProjectList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.views.ProjectList(ctx)
	require.Eventually(t, func() bool {
		return f.views.ProjectList(ctx).Status == StatusReady
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, f.views.ProjectList(ctx).Projects)

	project, err := f.mutations.CreateProject(ctx, entities.CreateProjectInput{Name: "Acme"})
	require.NoError(t, err)
	assert.NotZero(t, project.ID, "create returns the new entity so the caller can navigate to it")

	require.Eventually(t, func() bool {
		view := f.views.ProjectList(ctx)
		return view.Status == StatusReady && len(view.Projects) == 1 && view.Projects[0].ID == project.ID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConversationMutationsKeepListCoherent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.backend.addProject("Acme")

	assert.Empty(t, f.readFreshConversations(t, project.ID))

	created, err := f.mutations.CreateConversation(ctx, project.ID, entities.CreateConversationInput{Title: "Kickoff"})
	require.NoError(t, err)

	list := f.readFreshConversations(t, project.ID)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	_, err = f.mutations.UpdateConversation(ctx, project.ID, created.ID, entities.UpdateConversationInput{Title: "Kickoff v2"})
	require.NoError(t, err)

	list = f.readFreshConversations(t, project.ID)
	require.Len(t, list, 1)
	assert.Equal(t, "Kickoff v2", list[0].Title)

	err = f.mutations.DeleteConversation(ctx, project.ID, created.ID)
	require.NoError(t, err)

	assert.Empty(t, f.readFreshConversations(t, project.ID))
}

func TestDeletedConversationSurfacesNotFoundInOpenView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.backend.addProject("Acme")
	conversation := f.backend.addConversation(project.ID, "Kickoff")

	f.readFreshMessages(t, project.ID, conversation.ID)

	err := f.mutations.DeleteConversation(ctx, project.ID, conversation.ID)
	require.NoError(t, err)

	// The open view's next read refetches and surfaces NotFound instead of
	// serving the stale entry
	require.Eventually(t, func() bool {
		view := f.views.Conversation(ctx, project.ID, conversation.ID)
		return view.Status == StatusError && apiclient.IsNotFound(view.Err)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDeleteProjectInvalidatesWholeSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.backend.addProject("Acme")
	conversation := f.backend.addConversation(project.ID, "Kickoff")

	f.readFreshConversations(t, project.ID)
	f.readFreshMessages(t, project.ID, conversation.ID)

	err := f.mutations.DeleteProject(ctx, project.ID)
	require.NoError(t, err)

	assert.True(t, f.store.Peek(ConversationsKey(project.ID)).Stale)
	assert.True(t, f.store.Peek(ConversationKey(project.ID, conversation.ID)).Stale)
	assert.True(t, f.store.Peek(MessagesKey(project.ID, conversation.ID)).Stale)
}

func TestSendMessageAppendsOptimistically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.backend.addProject("Acme")
	conversation := f.backend.addConversation(project.ID, "Kickoff")

	require.Empty(t, f.readFreshMessages(t, project.ID, conversation.ID))
	fetchesBefore := f.backend.fetchCount(messagesURL(project.ID, conversation.ID))

	result, err := f.mutations.SendMessage(ctx, project.ID, conversation.ID, entities.SendMessageInput{
		Role:    entities.RoleUser,
		Content: "Hello",
	})
	require.NoError(t, err)
	require.NotNil(t, result.AssistantMessage)

	// The cached list reflects both messages immediately, in send order,
	// with no refetch
	snap := f.store.Peek(MessagesKey(project.ID, conversation.ID))
	require.Equal(t, StatusReady, snap.Status)
	messages := snap.Value.([]entities.Message)
	require.Len(t, messages, 2)
	assert.Equal(t, entities.RoleUser, messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, entities.RoleAssistant, messages[1].Role)
	assert.Equal(t, result.AssistantMessage.ID, messages[1].ID)
	assert.False(t, snap.Stale, "message sends patch, they never invalidate")
	assert.Equal(t, fetchesBefore, f.backend.fetchCount(messagesURL(project.ID, conversation.ID)))
}

func TestRapidSendsCompose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.backend.addProject("Acme")
	conversation := f.backend.addConversation(project.ID, "Kickoff")

	require.Empty(t, f.readFreshMessages(t, project.ID, conversation.ID))

	_, err := f.mutations.SendMessage(ctx, project.ID, conversation.ID, entities.SendMessageInput{Role: entities.RoleUser, Content: "one"})
	require.NoError(t, err)
	_, err = f.mutations.SendMessage(ctx, project.ID, conversation.ID, entities.SendMessageInput{Role: entities.RoleUser, Content: "two"})
	require.NoError(t, err)

	messages := f.store.Peek(MessagesKey(project.ID, conversation.ID)).Value.([]entities.Message)
	require.Len(t, messages, 4, "each send appends relative to the list the previous one produced")
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[2].Content)
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.backend.addProject("Acme")
	conversation := f.backend.addConversation(project.ID, "Kickoff")

	f.readFreshConversations(t, project.ID)
	f.readFreshMessages(t, project.ID, conversation.ID)

	before := map[string]Snapshot{
		"conversations": f.store.Peek(ConversationsKey(project.ID)),
		"messages":      f.store.Peek(MessagesKey(project.ID, conversation.ID)),
	}

	f.backend.setFailStatus(http.StatusInternalServerError)

	_, err := f.mutations.CreateConversation(ctx, project.ID, entities.CreateConversationInput{Title: "Doomed"})
	require.Error(t, err)
	assert.True(t, apiclient.IsServerUnavailable(err))

	_, err = f.mutations.SendMessage(ctx, project.ID, conversation.ID, entities.SendMessageInput{Role: entities.RoleUser, Content: "Doomed"})
	require.Error(t, err)
	assert.True(t, apiclient.IsServerUnavailable(err))

	after := map[string]Snapshot{
		"conversations": f.store.Peek(ConversationsKey(project.ID)),
		"messages":      f.store.Peek(MessagesKey(project.ID, conversation.ID)),
	}
	assert.True(t, reflect.DeepEqual(before, after), "a failed write must not move the cache at all")
}

func TestValidationFailureShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mutations.CreateProject(ctx, entities.CreateProjectInput{Name: "   "})
	require.Error(t, err)

	// Nothing reached the backend
	f.views.ProjectList(ctx)
	require.Eventually(t, func() bool {
		return f.views.ProjectList(ctx).Status == StatusReady
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, f.views.ProjectList(ctx).Projects)
}

func TestSendPendingFlag(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		writeJSON(w, http.StatusOK, entities.SendMessageResponse{
			Message: entities.Message{ID: 1, ConversationID: 2, Role: entities.RoleUser, Content: "hi", CreatedAt: time.Now().UTC()},
		})
	}))
	defer server.Close()

	store := NewStore(nil)
	mutations := NewMutations(apiclient.NewClient(server.URL, 5*time.Second), store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := mutations.SendMessage(context.Background(), 1, 2, entities.SendMessageInput{Role: entities.RoleUser, Content: "hi"})
		done <- err
	}()

	<-entered
	assert.True(t, mutations.SendPending(), "pending is visible while the request is in flight")
	close(release)
	require.NoError(t, <-done)
	assert.Eventually(t, func() bool { return !mutations.SendPending() }, time.Second, 5*time.Millisecond)
}

func messagesURL(projectID, conversationID int64) string {
	return fmt.Sprintf("/projects/%d/conversations/%d/messages", projectID, conversationID)
}
