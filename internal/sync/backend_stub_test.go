package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	stdsync "sync"
	"testing"
	"time"

	"github.com/username/deskchat/internal/apiclient"
	"github.com/username/deskchat/internal/domain/entities"
)

// stubBackend is an in-memory rendition of the REST surface, enough for
// the sync layer tests: state is mutated by writes and served by reads, a
// fail switch turns every request into a given status, and a counter
// tracks how many list fetches happened.
type stubBackend struct {
	mu            stdsync.Mutex
	server        *httptest.Server
	projects      map[int64]entities.Project
	conversations map[int64]entities.Conversation
	messages      map[int64][]entities.Message
	nextID        int64
	failStatus    int // when non-zero, every request fails with this status
	reply         string
	fetchCounts   map[string]int
}

var (
	projectPath       = regexp.MustCompile(`^/projects/(\d+)$`)
	conversationsPath = regexp.MustCompile(`^/projects/(\d+)/conversations$`)
	conversationPath  = regexp.MustCompile(`^/projects/(\d+)/conversations/(\d+)$`)
	messagesPath      = regexp.MustCompile(`^/projects/(\d+)/conversations/(\d+)/messages$`)
)

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	b := &stubBackend{
		projects:      make(map[int64]entities.Project),
		conversations: make(map[int64]entities.Conversation),
		messages:      make(map[int64][]entities.Message),
		nextID:        1,
		reply:         "Hi there",
		fetchCounts:   make(map[string]int),
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *stubBackend) client() *apiclient.Client {
	return apiclient.NewClient(b.server.URL, 5*time.Second)
}

func (b *stubBackend) setFailStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStatus = status
}

func (b *stubBackend) fetchCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCounts[path]
}

func (b *stubBackend) addProject(name string) entities.Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insertProject(name)
}

func (b *stubBackend) addConversation(projectID int64, title string) entities.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insertConversation(projectID, title)
}

func (b *stubBackend) insertProject(name string) entities.Project {
	now := time.Now().UTC()
	p := entities.Project{ID: b.nextID, Name: name, CreatedAt: now, UpdatedAt: now}
	b.nextID++
	b.projects[p.ID] = p
	return p
}

func (b *stubBackend) insertConversation(projectID int64, title string) entities.Conversation {
	now := time.Now().UTC()
	c := entities.Conversation{ID: b.nextID, ProjectID: projectID, Title: title, CreatedAt: now, UpdatedAt: now}
	b.nextID++
	b.conversations[c.ID] = c
	return c
}

func (b *stubBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failStatus != 0 {
		writeJSON(w, b.failStatus, map[string]string{"error": "induced failure"})
		return
	}

	path := r.URL.Path
	if r.Method == http.MethodGet {
		b.fetchCounts[path]++
	}

	switch {
	case path == "/projects":
		b.handleProjects(w, r)
	case projectPath.MatchString(path):
		b.handleProject(w, r, pathID(projectPath, path, 1))
	case conversationsPath.MatchString(path):
		b.handleConversations(w, r, pathID(conversationsPath, path, 1))
	case conversationPath.MatchString(path):
		b.handleConversation(w, r, pathID(conversationPath, path, 1), pathID(conversationPath, path, 2))
	case messagesPath.MatchString(path):
		b.handleMessages(w, r, pathID(messagesPath, path, 1), pathID(messagesPath, path, 2))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no route"})
	}
}

func (b *stubBackend) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := make([]entities.Project, 0, len(b.projects))
		for _, p := range b.projects {
			list = append(list, p)
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var in entities.CreateProjectInput
		json.NewDecoder(r.Body).Decode(&in)
		if err := in.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, b.insertProject(in.Name))
	}
}

func (b *stubBackend) handleProject(w http.ResponseWriter, r *http.Request, projectID int64) {
	project, ok := b.projects[projectID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "project not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, project)
	case http.MethodPut:
		var in entities.UpdateProjectInput
		json.NewDecoder(r.Body).Decode(&in)
		if err := in.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		project.Name = in.Name
		b.projects[projectID] = project
		writeJSON(w, http.StatusOK, project)
	case http.MethodDelete:
		delete(b.projects, projectID)
		for id, c := range b.conversations {
			if c.ProjectID == projectID {
				delete(b.conversations, id)
				delete(b.messages, id)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *stubBackend) handleConversations(w http.ResponseWriter, r *http.Request, projectID int64) {
	if _, ok := b.projects[projectID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "project not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		list := make([]entities.Conversation, 0)
		for _, c := range b.conversations {
			if c.ProjectID == projectID {
				list = append(list, c)
			}
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var in entities.CreateConversationInput
		json.NewDecoder(r.Body).Decode(&in)
		if err := in.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, b.insertConversation(projectID, in.Title))
	}
}

func (b *stubBackend) handleConversation(w http.ResponseWriter, r *http.Request, projectID, conversationID int64) {
	conversation, ok := b.conversations[conversationID]
	if !ok || conversation.ProjectID != projectID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, conversation)
	case http.MethodPut:
		var in entities.UpdateConversationInput
		json.NewDecoder(r.Body).Decode(&in)
		if err := in.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		conversation.Title = in.Title
		b.conversations[conversationID] = conversation
		writeJSON(w, http.StatusOK, conversation)
	case http.MethodDelete:
		delete(b.conversations, conversationID)
		delete(b.messages, conversationID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *stubBackend) handleMessages(w http.ResponseWriter, r *http.Request, projectID, conversationID int64) {
	conversation, ok := b.conversations[conversationID]
	if !ok || conversation.ProjectID != projectID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		list := b.messages[conversationID]
		if list == nil {
			list = make([]entities.Message, 0)
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var in entities.SendMessageInput
		json.NewDecoder(r.Body).Decode(&in)
		if err := in.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		now := time.Now().UTC()
		userMessage := entities.Message{
			ID: b.nextID, ConversationID: conversationID,
			Role: entities.RoleUser, Content: in.Content, CreatedAt: now,
		}
		b.nextID++
		assistantMessage := entities.Message{
			ID: b.nextID, ConversationID: conversationID,
			Role: entities.RoleAssistant, Content: b.reply, CreatedAt: now,
			AgentID: "alex",
			Bot:     &entities.Bot{Name: "Alex", Avatar: "/avatars/alex.png", Role: "assistant"},
		}
		b.nextID++
		b.messages[conversationID] = append(b.messages[conversationID], userMessage, assistantMessage)

		writeJSON(w, http.StatusOK, entities.SendMessageResponse{
			Message:          userMessage,
			AssistantMessage: &assistantMessage,
			Bot:              assistantMessage.Bot,
			AgentsInvolved:   []string{"alex"},
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func pathID(re *regexp.Regexp, path string, group int) int64 {
	match := re.FindStringSubmatch(path)
	id, _ := strconv.ParseInt(match[group], 10, 64)
	return id
}
