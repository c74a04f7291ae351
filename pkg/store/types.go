// Package store is the document store for agents, tool schemas, sheet
// integrations, knowledge documents and history records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed lookup does not resolve.
var ErrNotFound = errors.New("not found")

// TruncationPolicy controls how much conversation history is kept.
// Only the "last_messages" kind is supported.
type TruncationPolicy struct {
	Kind   string `json:"type"`
	Window int    `json:"last_messages"`
}

// Agent is a configured conversational persona. Read-only to the
// pipeline; edited through the external admin surface.
type Agent struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Credential     string           `json:"credential"`
	Model          string           `json:"model"`
	Instructions   string           `json:"instructions"`
	Temperature    float64          `json:"temperature"`
	ToolsEnabled   bool             `json:"tools_enabled"`
	HelloMessage   string           `json:"hello_message"`
	ErrorMessage   string           `json:"error_message"`
	MaxTokens      int              `json:"max_tokens"`
	SearchCount    int              `json:"search_count"`
	MinRelatedness float64          `json:"min_relatedness"`
	Truncation     TruncationPolicy `json:"truncation_strategy"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SetDefaults fills unset agent fields with the stock defaults.
func (a *Agent) SetDefaults() {
	if a.Model == "" {
		a.Model = "gpt-4o-mini"
	}
	if a.Temperature == 0 {
		a.Temperature = 0.7
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = 2000
	}
	if a.SearchCount == 0 {
		a.SearchCount = 3
	}
	if a.MinRelatedness == 0 {
		a.MinRelatedness = 0.3
	}
	if a.HelloMessage == "" {
		a.HelloMessage = "I am ready to help!"
	}
	if a.ErrorMessage == "" {
		a.ErrorMessage = "Sorry, I am unavailable right now, please try again later."
	}
	if a.Truncation.Kind == "" {
		a.Truncation.Kind = "last_messages"
	}
	if a.Truncation.Window < 1 {
		a.Truncation.Window = 10
	}
}

// ToolField is one declared parameter of a tool schema. Field order is
// significant: the spreadsheet header follows declaration order.
type ToolField struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, boolean, integer, number, object
	Description string `json:"description"`
}

// ToolSchema is a named capability declared to the completion service.
type ToolSchema struct {
	ID          string      `json:"id"`
	AgentID     string      `json:"agent_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Fields      []ToolField `json:"fields"`
}

// SaveUserDataConfig is the per-agent activation of the reserved
// save_user_data tool: its field schema plus an optional explicit
// integration reference captured at activation time.
type SaveUserDataConfig struct {
	AgentID       string      `json:"agent_id"`
	Description   string      `json:"description"`
	Fields        []ToolField `json:"fields"`
	IntegrationID string      `json:"integration_id,omitempty"`
}

// SheetIntegration binds an agent to an external spreadsheet.
type SheetIntegration struct {
	ID            string          `json:"id"`
	SpreadsheetID string          `json:"spreadsheet_id"`
	Credentials   json.RawMessage `json:"credentials_json"`
	AgentID       string          `json:"agent_id"`
}

// Document is a knowledge-base text resolved from a vector-index hit.
type Document struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRecord is an append-only audit entry. Written per turn,
// independent of the in-memory session; never mutated or deleted.
type HistoryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Channel   string    `json:"channel"`
	Role      string    `json:"role"` // user or bot
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id"`
}

// AgentStore reads and writes agent configurations. Load is called on
// every message so edits take effect without a restart.
type AgentStore interface {
	Load(ctx context.Context, id string) (*Agent, error)
	Save(ctx context.Context, agent *Agent) error
}

// ToolStore holds tool schemas and the save_user_data activation.
type ToolStore interface {
	// List returns the agent's tool schemas in store order.
	List(ctx context.Context, agentID string) ([]ToolSchema, error)
	Save(ctx context.Context, schema *ToolSchema) error

	// LoadSaveUserData returns the save_user_data activation for the
	// agent, or ErrNotFound when the tool is not activated.
	LoadSaveUserData(ctx context.Context, agentID string) (*SaveUserDataConfig, error)
	SaveSaveUserData(ctx context.Context, cfg *SaveUserDataConfig) error
}

// IntegrationStore holds spreadsheet integrations.
type IntegrationStore interface {
	Load(ctx context.Context, id string) (*SheetIntegration, error)
	// FindByAgentID matches on the stored agent id column as-is.
	FindByAgentID(ctx context.Context, agentID string) (*SheetIntegration, error)
	// List returns all integrations system-wide in store order.
	List(ctx context.Context) ([]SheetIntegration, error)
	Save(ctx context.Context, integration *SheetIntegration) error
	Delete(ctx context.Context, id string) error
}

// DocumentStore holds knowledge-base documents.
type DocumentStore interface {
	Load(ctx context.Context, id string) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id string) error
}

// HistoryStore is the durable audit log.
type HistoryStore interface {
	Append(ctx context.Context, record *HistoryRecord) error
	Recent(ctx context.Context, userID string, limit int) ([]HistoryRecord, error)
}

// Store aggregates the entity stores behind one connection.
type Store interface {
	Agents() AgentStore
	Tools() ToolStore
	Integrations() IntegrationStore
	Documents() DocumentStore
	History() HistoryStore
	Close() error
}
