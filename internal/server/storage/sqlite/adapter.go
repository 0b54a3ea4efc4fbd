package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/username/deskchat/internal/domain/entities"
	"github.com/username/deskchat/internal/pkg/dbutil"
)

// ErrNotFound is returned when a row does not exist or is not reachable
// through the given ancestor ids
var ErrNotFound = errors.New("not found")

// schema is applied at open; the tables are small enough that versioned
// migration files would be overhead
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	agent_id TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations(project_id);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`

// Adapter implements backend persistence using SQLite
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens the database and applies the schema
func NewAdapter(dbPath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Adapter{db: db}, nil
}

// Ping checks database connectivity
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection
func (a *Adapter) Close() error {
	return a.db.Close()
}

// ListProjects returns all projects, newest first
func (a *Adapter) ListProjects(ctx context.Context) ([]entities.Project, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, name, created_at, updated_at FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]entities.Project, 0)
	for rows.Next() {
		var p entities.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns a single project
func (a *Adapter) GetProject(ctx context.Context, projectID int64) (*entities.Project, error) {
	var p entities.Project
	err := a.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM projects WHERE id = ?", projectID).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// CreateProject inserts a new project
func (a *Adapter) CreateProject(ctx context.Context, name string) (*entities.Project, error) {
	now := time.Now().UTC()
	result, err := a.db.ExecContext(ctx,
		"INSERT INTO projects (name, created_at, updated_at) VALUES (?, ?, ?)",
		name, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read project id: %w", err)
	}
	return &entities.Project{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdateProject renames an existing project
func (a *Adapter) UpdateProject(ctx context.Context, projectID int64, name string) (*entities.Project, error) {
	now := time.Now().UTC()
	result, err := a.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, updated_at = ? WHERE id = ?",
		name, now, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return a.GetProject(ctx, projectID)
}

// DeleteProject deletes a project and everything under it. The delete runs
// in one transaction so a partial cascade is never visible.
func (a *Adapter) DeleteProject(ctx context.Context, projectID int64) error {
	return dbutil.WithTransaction(ctx, a.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE project_id = ?)",
			projectID); err != nil {
			return fmt.Errorf("failed to delete project messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM conversations WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("failed to delete project conversations: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListConversations returns a project's conversations, newest first. The
// project must exist.
func (a *Adapter) ListConversations(ctx context.Context, projectID int64) ([]entities.Conversation, error) {
	if _, err := a.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx,
		"SELECT id, project_id, title, created_at, updated_at FROM conversations WHERE project_id = ? ORDER BY created_at DESC",
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]entities.Conversation, 0)
	for rows.Next() {
		var c entities.Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetConversation returns a conversation scoped by its project
func (a *Adapter) GetConversation(ctx context.Context, projectID, conversationID int64) (*entities.Conversation, error) {
	var c entities.Conversation
	err := a.db.QueryRowContext(ctx,
		"SELECT id, project_id, title, created_at, updated_at FROM conversations WHERE id = ? AND project_id = ?",
		conversationID, projectID).
		Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// CreateConversation inserts a new conversation under a project
func (a *Adapter) CreateConversation(ctx context.Context, projectID int64, title string) (*entities.Conversation, error) {
	if _, err := a.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := a.db.ExecContext(ctx,
		"INSERT INTO conversations (project_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		projectID, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation id: %w", err)
	}
	return &entities.Conversation{ID: id, ProjectID: projectID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdateConversation retitles a conversation scoped by its project
func (a *Adapter) UpdateConversation(ctx context.Context, projectID, conversationID int64, title string) (*entities.Conversation, error) {
	now := time.Now().UTC()
	result, err := a.db.ExecContext(ctx,
		"UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND project_id = ?",
		title, now, conversationID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return a.GetConversation(ctx, projectID, conversationID)
}

// DeleteConversation deletes a conversation and its messages
func (a *Adapter) DeleteConversation(ctx context.Context, projectID, conversationID int64) error {
	return dbutil.WithTransaction(ctx, a.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
			return fmt.Errorf("failed to delete conversation messages: %w", err)
		}
		result, err := tx.ExecContext(ctx,
			"DELETE FROM conversations WHERE id = ? AND project_id = ?", conversationID, projectID)
		if err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListMessages returns a conversation's messages in creation order
func (a *Adapter) ListMessages(ctx context.Context, conversationID int64) ([]entities.Message, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, conversation_id, role, content, agent_id, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC",
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]entities.Message, 0)
	for rows.Next() {
		var m entities.Message
		var agentID sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &agentID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.AgentID = agentID.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateMessage inserts a message into a conversation
func (a *Adapter) CreateMessage(ctx context.Context, conversationID int64, role entities.Role, content, agentID string) (*entities.Message, error) {
	now := time.Now().UTC()
	var agent sql.NullString
	if agentID != "" {
		agent = sql.NullString{String: agentID, Valid: true}
	}
	result, err := a.db.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, role, content, agent_id, created_at) VALUES (?, ?, ?, ?, ?)",
		conversationID, string(role), content, agent, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read message id: %w", err)
	}
	return &entities.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		AgentID:        agentID,
		CreatedAt:      now,
	}, nil
}
