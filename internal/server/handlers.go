// Package server implements the reference backend for the deskchat API:
// the REST surface the sync client consumes, backed by SQLite, with
// automated assistant replies generated synchronously on message send.
package server

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/username/deskchat/internal/agent"
	"github.com/username/deskchat/internal/domain/entities"
	"github.com/username/deskchat/internal/pkg/httputil"
	"github.com/username/deskchat/internal/pkg/logutil"
	"github.com/username/deskchat/internal/server/storage/sqlite"
	"github.com/username/deskchat/internal/server/ws"
)

// Handlers contains the HTTP API handlers and their collaborators
type Handlers struct {
	storage   *sqlite.Adapter
	roster    *agent.Roster
	responder *agent.Responder
	hub       *ws.Hub
	logger    *logutil.Logger
}

// NewHandlers creates the API handlers. hub may be nil when no observer
// fanout is wanted (tests).
func NewHandlers(storage *sqlite.Adapter, roster *agent.Roster, responder *agent.Responder, hub *ws.Hub, logger *logutil.Logger) *Handlers {
	if logger == nil {
		logger = logutil.NewDefault()
	}
	return &Handlers{
		storage:   storage,
		roster:    roster,
		responder: responder,
		hub:       hub,
		logger:    logger.WithFields(logutil.Fields{"component": "server"}),
	}
}

// SetupRoutes configures all API routes
func (h *Handlers) SetupRoutes(r *gin.Engine, corsEnabled bool) {
	if corsEnabled {
		r.Use(httputil.CORSMiddleware())
	}
	r.Use(httputil.RequestLogger(h.logger))

	r.GET("/health", h.handleHealth)
	if h.hub != nil {
		r.GET("/ws", h.hub.Handler())
	}

	api := r.Group("/api")
	{
		api.GET("/projects", h.listProjects)
		api.POST("/projects", h.createProject)
		api.GET("/projects/:pid", h.getProject)
		api.PUT("/projects/:pid", h.updateProject)
		api.DELETE("/projects/:pid", h.deleteProject)

		api.GET("/projects/:pid/conversations", h.listConversations)
		api.POST("/projects/:pid/conversations", h.createConversation)
		api.GET("/projects/:pid/conversations/:cid", h.getConversation)
		api.PUT("/projects/:pid/conversations/:cid", h.updateConversation)
		api.DELETE("/projects/:pid/conversations/:cid", h.deleteConversation)

		api.GET("/projects/:pid/conversations/:cid/messages", h.listMessages)
		api.POST("/projects/:pid/conversations/:cid/messages", h.sendMessage)
	}
}

func (h *Handlers) handleHealth(c *gin.Context) {
	if err := h.storage.Ping(c.Request.Context()); err != nil {
		httputil.Internal(c, fmt.Errorf("database unreachable"))
		return
	}
	httputil.OK(c, gin.H{"status": "ok"})
}

func (h *Handlers) publish(eventType string, data map[string]interface{}) {
	if h.hub != nil {
		h.hub.Publish(eventType, data)
	}
}

func (h *Handlers) listProjects(c *gin.Context) {
	projects, err := h.storage.ListProjects(c.Request.Context())
	if err != nil {
		httputil.Internal(c, err)
		return
	}
	httputil.OK(c, projects)
}

func (h *Handlers) getProject(c *gin.Context) {
	projectID, err := httputil.IDParam(c, "pid")
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	project, err := h.storage.GetProject(c.Request.Context(), projectID)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("project not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}
	httputil.OK(c, project)
}

func (h *Handlers) createProject(c *gin.Context) {
	var in entities.CreateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.BadRequest(c, fmt.Errorf("invalid request body"))
		return
	}
	if err := in.Validate(); err != nil {
		httputil.BadRequest(c, err)
		return
	}

	project, err := h.storage.CreateProject(c.Request.Context(), in.Name)
	if err != nil {
		httputil.Internal(c, err)
		return
	}

	h.publish(ws.EventProjectCreated, map[string]interface{}{"project_id": project.ID})
	httputil.Created(c, project)
}

func (h *Handlers) updateProject(c *gin.Context) {
	projectID, err := httputil.IDParam(c, "pid")
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	var in entities.UpdateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.BadRequest(c, fmt.Errorf("invalid request body"))
		return
	}
	if err := in.Validate(); err != nil {
		httputil.BadRequest(c, err)
		return
	}

	project, err := h.storage.UpdateProject(c.Request.Context(), projectID, in.Name)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("project not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}

	h.publish(ws.EventProjectUpdated, map[string]interface{}{"project_id": project.ID})
	httputil.OK(c, project)
}

func (h *Handlers) deleteProject(c *gin.Context) {
	projectID, err := httputil.IDParam(c, "pid")
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	err = h.storage.DeleteProject(c.Request.Context(), projectID)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("project not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}

	h.publish(ws.EventProjectDeleted, map[string]interface{}{"project_id": projectID})
	httputil.NoContent(c)
}

func (h *Handlers) listConversations(c *gin.Context) {
	projectID, err := httputil.IDParam(c, "pid")
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	conversations, err := h.storage.ListConversations(c.Request.Context(), projectID)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("project not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}
	httputil.OK(c, conversations)
}

func (h *Handlers) getConversation(c *gin.Context) {
	projectID, conversationID, err := conversationIDs(c)
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	conversation, err := h.storage.GetConversation(c.Request.Context(), projectID, conversationID)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("conversation not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}
	httputil.OK(c, conversation)
}

func (h *Handlers) createConversation(c *gin.Context) {
	projectID, err := httputil.IDParam(c, "pid")
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	var in entities.CreateConversationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.BadRequest(c, fmt.Errorf("invalid request body"))
		return
	}
	if err := in.Validate(); err != nil {
		httputil.BadRequest(c, err)
		return
	}

	conversation, err := h.storage.CreateConversation(c.Request.Context(), projectID, in.Title)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("project not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}

	h.publish(ws.EventConversationCreated, map[string]interface{}{
		"project_id":      projectID,
		"conversation_id": conversation.ID,
	})
	httputil.Created(c, conversation)
}

func (h *Handlers) updateConversation(c *gin.Context) {
	projectID, conversationID, err := conversationIDs(c)
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	var in entities.UpdateConversationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.BadRequest(c, fmt.Errorf("invalid request body"))
		return
	}
	if err := in.Validate(); err != nil {
		httputil.BadRequest(c, err)
		return
	}

	conversation, err := h.storage.UpdateConversation(c.Request.Context(), projectID, conversationID, in.Title)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("conversation not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}

	h.publish(ws.EventConversationUpdated, map[string]interface{}{
		"project_id":      projectID,
		"conversation_id": conversationID,
	})
	httputil.OK(c, conversation)
}

func (h *Handlers) deleteConversation(c *gin.Context) {
	projectID, conversationID, err := conversationIDs(c)
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	err = h.storage.DeleteConversation(c.Request.Context(), projectID, conversationID)
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(c, fmt.Errorf("conversation not found"))
		return
	}
	if err != nil {
		httputil.Internal(c, err)
		return
	}

	h.publish(ws.EventConversationDeleted, map[string]interface{}{
		"project_id":      projectID,
		"conversation_id": conversationID,
	})
	httputil.NoContent(c)
}

func (h *Handlers) listMessages(c *gin.Context) {
	projectID, conversationID, err := conversationIDs(c)
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.storage.GetConversation(ctx, projectID, conversationID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			httputil.NotFound(c, fmt.Errorf("conversation not found"))
			return
		}
		httputil.Internal(c, err)
		return
	}

	messages, err := h.storage.ListMessages(ctx, conversationID)
	if err != nil {
		httputil.Internal(c, err)
		return
	}
	httputil.OK(c, messages)
}

// sendMessage persists the user message, routes it to an agent, and
// generates the assistant reply within the same request. A reply failure
// is a 500; the user message is already persisted at that point and shows
// up on the next list fetch.
func (h *Handlers) sendMessage(c *gin.Context) {
	projectID, conversationID, err := conversationIDs(c)
	if err != nil {
		httputil.BadRequest(c, err)
		return
	}

	var in entities.SendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.BadRequest(c, fmt.Errorf("invalid request body"))
		return
	}
	if err := in.Validate(); err != nil {
		httputil.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.storage.GetConversation(ctx, projectID, conversationID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			httputil.NotFound(c, fmt.Errorf("conversation not found"))
			return
		}
		httputil.Internal(c, err)
		return
	}

	userMessage, err := h.storage.CreateMessage(ctx, conversationID, entities.RoleUser, in.Content, "")
	if err != nil {
		httputil.Internal(c, err)
		return
	}
	h.publish(ws.EventMessageCreated, map[string]interface{}{
		"conversation_id": conversationID,
		"message_id":      userMessage.ID,
	})

	result := entities.SendMessageResponse{Message: *userMessage}

	agents := h.roster.Route(in.Content)
	if len(agents) > 0 {
		responder := agents[0]
		for _, a := range agents {
			result.AgentsInvolved = append(result.AgentsInvolved, a.ID)
		}

		history, err := h.storage.ListMessages(ctx, conversationID)
		if err != nil {
			httputil.Internal(c, err)
			return
		}

		reply, err := h.responder.GenerateReply(ctx, responder, history)
		if err != nil {
			h.logger.Error("reply generation failed", logutil.Fields{
				"conversation_id": conversationID,
				"agent":           responder.ID,
				"error":           err.Error(),
			})
			httputil.Internal(c, fmt.Errorf("agent processing failed"))
			return
		}

		assistantMessage, err := h.storage.CreateMessage(ctx, conversationID, entities.RoleAssistant, reply, responder.ID)
		if err != nil {
			httputil.Internal(c, err)
			return
		}
		assistantMessage.Bot = responder.Bot()
		result.AssistantMessage = assistantMessage
		result.Bot = responder.Bot()

		h.publish(ws.EventMessageCreated, map[string]interface{}{
			"conversation_id": conversationID,
			"message_id":      assistantMessage.ID,
		})
	}

	if format := agent.DetectExportFormat(in.Content); format != "" {
		result.ExportRequested = agent.BuildExportRequest(conversationID, format)
	}

	httputil.OK(c, result)
}

func conversationIDs(c *gin.Context) (int64, int64, error) {
	projectID, err := httputil.IDParam(c, "pid")
	if err != nil {
		return 0, 0, err
	}
	conversationID, err := httputil.IDParam(c, "cid")
	if err != nil {
		return 0, 0, err
	}
	return projectID, conversationID, nil
}
