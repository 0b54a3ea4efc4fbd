package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/username/deskchat/internal/domain/entities"
)

// Client provides typed access to the deskchat REST API. It performs the
// network call and nothing else; caching is layered on top by the sync
// package.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client for the given base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// errorBody is the failure envelope the backend uses
type errorBody struct {
	Error string `json:"error"`
}

// do executes a request and decodes the response into out (which may be nil
// for operations without a response body). Non-success statuses and
// transport failures are mapped to the APIError taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return transportError(fmt.Errorf("failed to marshal request: %w", err))
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return transportError(fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		raw, _ := io.ReadAll(resp.Body)
		if jsonErr := json.Unmarshal(raw, &eb); jsonErr != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(raw))
		}
		return errorFromStatus(resp.StatusCode, eb.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// ListProjects returns all projects
func (c *Client) ListProjects(ctx context.Context) ([]entities.Project, error) {
	var projects []entities.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns a single project by id
func (c *Client) GetProject(ctx context.Context, projectID int64) (*entities.Project, error) {
	var project entities.Project
	path := fmt.Sprintf("/projects/%d", projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject creates a new project
func (c *Client) CreateProject(ctx context.Context, in entities.CreateProjectInput) (*entities.Project, error) {
	var project entities.Project
	if err := c.do(ctx, http.MethodPost, "/projects", in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject renames a project
func (c *Client) UpdateProject(ctx context.Context, projectID int64, in entities.UpdateProjectInput) (*entities.Project, error) {
	var project entities.Project
	path := fmt.Sprintf("/projects/%d", projectID)
	if err := c.do(ctx, http.MethodPut, path, in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes a project and, on the backend, everything under it
func (c *Client) DeleteProject(ctx context.Context, projectID int64) error {
	path := fmt.Sprintf("/projects/%d", projectID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListConversations returns all conversations in a project
func (c *Client) ListConversations(ctx context.Context, projectID int64) ([]entities.Conversation, error) {
	var conversations []entities.Conversation
	path := fmt.Sprintf("/projects/%d/conversations", projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetConversation returns a single conversation by id
func (c *Client) GetConversation(ctx context.Context, projectID, conversationID int64) (*entities.Conversation, error) {
	var conversation entities.Conversation
	path := fmt.Sprintf("/projects/%d/conversations/%d", projectID, conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateConversation creates a new conversation in a project
func (c *Client) CreateConversation(ctx context.Context, projectID int64, in entities.CreateConversationInput) (*entities.Conversation, error) {
	var conversation entities.Conversation
	path := fmt.Sprintf("/projects/%d/conversations", projectID)
	if err := c.do(ctx, http.MethodPost, path, in, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// UpdateConversation retitles a conversation
func (c *Client) UpdateConversation(ctx context.Context, projectID, conversationID int64, in entities.UpdateConversationInput) (*entities.Conversation, error) {
	var conversation entities.Conversation
	path := fmt.Sprintf("/projects/%d/conversations/%d", projectID, conversationID)
	if err := c.do(ctx, http.MethodPut, path, in, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// DeleteConversation deletes a conversation and its messages
func (c *Client) DeleteConversation(ctx context.Context, projectID, conversationID int64) error {
	path := fmt.Sprintf("/projects/%d/conversations/%d", projectID, conversationID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListMessages returns the messages of a conversation in creation order
func (c *Client) ListMessages(ctx context.Context, projectID, conversationID int64) ([]entities.Message, error) {
	var messages []entities.Message
	path := fmt.Sprintf("/projects/%d/conversations/%d/messages", projectID, conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a user message. The backend persists it and generates
// the assistant reply synchronously, so the response carries both. A 500
// specifically means reply generation failed and maps to
// KindServerUnavailable.
func (c *Client) SendMessage(ctx context.Context, projectID, conversationID int64, in entities.SendMessageInput) (*entities.SendMessageResponse, error) {
	var result entities.SendMessageResponse
	path := fmt.Sprintf("/projects/%d/conversations/%d/messages", projectID, conversationID)
	if err := c.do(ctx, http.MethodPost, path, in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
