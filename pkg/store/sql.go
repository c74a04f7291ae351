package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	// SQL drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements Store on a SQL database. Entities are kept as
// JSON documents next to the key columns the lookups need.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const createAgentsSQL = `
CREATE TABLE IF NOT EXISTS agents (
    id VARCHAR(255) PRIMARY KEY,
    data TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const createToolSchemasSQL = `
CREATE TABLE IF NOT EXISTS tool_schemas (
    id VARCHAR(255) PRIMARY KEY,
    agent_id VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    data TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

const createSaveUserDataSQL = `
CREATE TABLE IF NOT EXISTS save_user_data_configs (
    agent_id VARCHAR(255) PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const createIntegrationsSQL = `
CREATE TABLE IF NOT EXISTS sheet_integrations (
    id VARCHAR(255) PRIMARY KEY,
    agent_id VARCHAR(255) NOT NULL,
    data TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

const createDocumentsSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id VARCHAR(255) PRIMARY KEY,
    agent_id VARCHAR(255) NOT NULL,
    data TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

const createHistorySQL = `
CREATE TABLE IF NOT EXISTS history_records (
    id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    channel VARCHAR(64) NOT NULL,
    role VARCHAR(16) NOT NULL,
    content TEXT NOT NULL,
    agent_id VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

const createHistoryIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_history_user ON history_records(user_id, created_at)`

// NewSQLStore opens the database and ensures the schema exists.
// Supported drivers: "postgres", "sqlite3".
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLStore{db: db, dialect: driver}
	for _, stmt := range []string{
		createAgentsSQL,
		createToolSchemasSQL,
		createSaveUserDataSQL,
		createIntegrationsSQL,
		createDocumentsSQL,
		createHistorySQL,
		createHistoryIndexSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return s, nil
}

// rebind converts ? placeholders to the dialect's form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Agents() AgentStore             { return (*sqlAgents)(s) }
func (s *SQLStore) Tools() ToolStore               { return (*sqlTools)(s) }
func (s *SQLStore) Integrations() IntegrationStore { return (*sqlIntegrations)(s) }
func (s *SQLStore) Documents() DocumentStore       { return (*sqlDocuments)(s) }
func (s *SQLStore) History() HistoryStore          { return (*sqlHistory)(s) }

func (s *SQLStore) Close() error { return s.db.Close() }

type sqlAgents SQLStore

func (s *sqlAgents) Load(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx,
		(*SQLStore)(s).rebind(`SELECT data FROM agents WHERE id = ?`), id)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	var agent Agent
	if err := json.Unmarshal([]byte(data), &agent); err != nil {
		return nil, fmt.Errorf("failed to decode agent %s: %w", id, err)
	}
	return &agent, nil
}

func (s *sqlAgents) Save(ctx context.Context, agent *Agent) error {
	now := time.Now()
	if agent.ID == "" {
		agent.ID = uuid.NewString()
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	data, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to encode agent: %w", err)
	}

	q := (*SQLStore)(s).rebind(`
		INSERT INTO agents (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, agent.ID, string(data), agent.CreatedAt, agent.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

type sqlTools SQLStore

func (s *sqlTools) List(ctx context.Context, agentID string) ([]ToolSchema, error) {
	rows, err := s.db.QueryContext(ctx,
		(*SQLStore)(s).rebind(`SELECT data FROM tool_schemas WHERE agent_id = ? ORDER BY created_at`), agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool schemas: %w", err)
	}
	defer rows.Close()

	var out []ToolSchema
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var schema ToolSchema
		if err := json.Unmarshal([]byte(data), &schema); err != nil {
			return nil, fmt.Errorf("failed to decode tool schema: %w", err)
		}
		out = append(out, schema)
	}
	return out, rows.Err()
}

func (s *sqlTools) Save(ctx context.Context, schema *ToolSchema) error {
	if schema.ID == "" {
		schema.ID = uuid.NewString()
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to encode tool schema: %w", err)
	}

	q := (*SQLStore)(s).rebind(`
		INSERT INTO tool_schemas (id, agent_id, name, data, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET agent_id = excluded.agent_id, name = excluded.name, data = excluded.data`)
	if _, err := s.db.ExecContext(ctx, q, schema.ID, schema.AgentID, schema.Name, string(data), time.Now()); err != nil {
		return fmt.Errorf("failed to save tool schema: %w", err)
	}
	return nil
}

func (s *sqlTools) LoadSaveUserData(ctx context.Context, agentID string) (*SaveUserDataConfig, error) {
	row := s.db.QueryRowContext(ctx,
		(*SQLStore)(s).rebind(`SELECT data FROM save_user_data_configs WHERE agent_id = ?`), agentID)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load save_user_data config: %w", err)
	}

	var cfg SaveUserDataConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode save_user_data config: %w", err)
	}
	return &cfg, nil
}

func (s *sqlTools) SaveSaveUserData(ctx context.Context, cfg *SaveUserDataConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode save_user_data config: %w", err)
	}

	q := (*SQLStore)(s).rebind(`
		INSERT INTO save_user_data_configs (agent_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (agent_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, cfg.AgentID, string(data), time.Now()); err != nil {
		return fmt.Errorf("failed to save save_user_data config: %w", err)
	}
	return nil
}

type sqlIntegrations SQLStore

func (s *sqlIntegrations) scanOne(row *sql.Row) (*SheetIntegration, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	var integration SheetIntegration
	if err := json.Unmarshal([]byte(data), &integration); err != nil {
		return nil, fmt.Errorf("failed to decode integration: %w", err)
	}
	return &integration, nil
}

func (s *sqlIntegrations) Load(ctx context.Context, id string) (*SheetIntegration, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		(*SQLStore)(s).rebind(`SELECT data FROM sheet_integrations WHERE id = ?`), id))
}

func (s *sqlIntegrations) FindByAgentID(ctx context.Context, agentID string) (*SheetIntegration, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		(*SQLStore)(s).rebind(`SELECT data FROM sheet_integrations WHERE agent_id = ? ORDER BY created_at LIMIT 1`), agentID))
}

func (s *sqlIntegrations) List(ctx context.Context) ([]SheetIntegration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM sheet_integrations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var out []SheetIntegration
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var integration SheetIntegration
		if err := json.Unmarshal([]byte(data), &integration); err != nil {
			return nil, fmt.Errorf("failed to decode integration: %w", err)
		}
		out = append(out, integration)
	}
	return out, rows.Err()
}

func (s *sqlIntegrations) Save(ctx context.Context, integration *SheetIntegration) error {
	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}
	data, err := json.Marshal(integration)
	if err != nil {
		return fmt.Errorf("failed to encode integration: %w", err)
	}

	q := (*SQLStore)(s).rebind(`
		INSERT INTO sheet_integrations (id, agent_id, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET agent_id = excluded.agent_id, data = excluded.data`)
	if _, err := s.db.ExecContext(ctx, q, integration.ID, integration.AgentID, string(data), time.Now()); err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}
	return nil
}

func (s *sqlIntegrations) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		(*SQLStore)(s).rebind(`DELETE FROM sheet_integrations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqlDocuments SQLStore

func (s *sqlDocuments) Load(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		(*SQLStore)(s).rebind(`SELECT data FROM documents WHERE id = ?`), id)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return &doc, nil
}

func (s *sqlDocuments) Save(ctx context.Context, doc *Document) error {
	now := time.Now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
		doc.CreatedAt = now
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	q := (*SQLStore)(s).rebind(`
		INSERT INTO documents (id, agent_id, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET agent_id = excluded.agent_id, data = excluded.data`)
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.AgentID, string(data), now); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *sqlDocuments) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		(*SQLStore)(s).rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqlHistory SQLStore

func (s *sqlHistory) Append(ctx context.Context, record *HistoryRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	q := (*SQLStore)(s).rebind(`
		INSERT INTO history_records (id, user_id, channel, role, content, agent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q,
		record.ID, record.UserID, record.Channel, record.Role, record.Content, record.AgentID, record.Timestamp); err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

func (s *sqlHistory) Recent(ctx context.Context, userID string, limit int) ([]HistoryRecord, error) {
	q := (*SQLStore)(s).rebind(`
		SELECT id, user_id, channel, role, content, agent_id, created_at
		FROM history_records WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Channel, &r.Role, &r.Content, &r.AgentID, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Store = (*SQLStore)(nil)
