package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/assistant-api/assistant-api/pkg/logger"
	"github.com/assistant-api/assistant-api/pkg/store"
)

// Upsert outcome statuses.
const (
	StatusSaved   = "saved"
	StatusUpdated = "updated"
	StatusFailed  = "failed"
)

// UpsertOutcome reports one structured write. Message is the
// user-facing line rendered into the tool reply, for failures too.
type UpsertOutcome struct {
	Status  string
	Message string
}

const rowTimestampFormat = "2006-01-02 15:04:05"

// Syncer persists save_user_data payloads and conversation logs to the
// agent's resolved spreadsheet.
type Syncer struct {
	resolver *Resolver
	tools    store.ToolStore
	factory  ServiceFactory
	log      *slog.Logger
}

// NewSyncer creates a syncer. factory builds the backend for each
// resolved integration.
func NewSyncer(resolver *Resolver, tools store.ToolStore, factory ServiceFactory) *Syncer {
	return &Syncer{
		resolver: resolver,
		tools:    tools,
		factory:  factory,
		log:      logger.WithComponent("sheets"),
	}
}

// SaveUserData resolves the agent's integration and upserts the
// payload, returning the outcome line. Every failure becomes text;
// nothing escapes to the caller.
func (s *Syncer) SaveUserData(ctx context.Context, agentID, userID string, data map[string]interface{}) string {
	cfg, err := s.tools.LoadSaveUserData(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "Error: save_user_data is not configured"
		}
		s.log.Error("failed to load save_user_data config", "agent_id", agentID, "error", err)
		return fmt.Sprintf("Error saving user data: %v", err)
	}

	integration, err := s.resolver.Resolve(ctx, agentID, cfg)
	if err != nil {
		if errors.Is(err, ErrIntegrationNotConfigured) {
			return "Error: spreadsheet integration is not configured"
		}
		s.log.Error("failed to resolve integration", "agent_id", agentID, "error", err)
		return fmt.Sprintf("Error saving user data: %v", err)
	}

	svc, err := s.factory(integration.Credentials, integration.SpreadsheetID)
	if err != nil {
		s.log.Error("failed to initialize spreadsheet client",
			"integration_id", integration.ID, "error", err)
		return fmt.Sprintf("Error initializing spreadsheet client: %v", err)
	}

	outcome := s.Upsert(ctx, svc, cfg, userID, data)
	if outcome.Status == StatusFailed {
		s.log.Warn("user data upsert failed", "agent_id", agentID, "user_id", userID,
			"message", outcome.Message)
	}
	return outcome.Message
}

// Upsert writes one user's payload into the UserData worksheet: header
// maintenance, row lookup by string-normalized user id, then merge at
// the same index or a header-ordered append.
func (s *Syncer) Upsert(ctx context.Context, svc Service, cfg *store.SaveUserDataConfig, userID string, data map[string]interface{}) UpsertOutcome {
	rows, err := svc.Read(ctx, WorksheetUserData)
	if err != nil {
		return UpsertOutcome{StatusFailed, fmt.Sprintf("Error working with the spreadsheet: %v", err)}
	}

	header, err := s.ensureHeader(ctx, svc, rows, cfg)
	if err != nil {
		return UpsertOutcome{StatusFailed, fmt.Sprintf("Error working with the spreadsheet: %v", err)}
	}

	existingIndex := -1
	var existingRow []string
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) > 0 && strings.TrimSpace(row[0]) == strings.TrimSpace(userID) {
			existingIndex = i
			existingRow = row
			break
		}
	}

	merged := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(existingRow) {
			merged[col] = existingRow[i]
		}
	}
	for k, v := range data {
		merged[k] = fmt.Sprintf("%v", v)
	}
	merged["user_id"] = userID
	merged["updated_at"] = time.Now().Format(rowTimestampFormat)

	rowData := make([]string, len(header))
	for i, col := range header {
		rowData[i] = merged[col]
	}

	if existingIndex >= 0 {
		// Sheet rows are 1-based; the slice index already accounts for
		// the header row.
		if err := svc.WriteRow(ctx, WorksheetUserData, existingIndex+1, rowData); err != nil {
			return UpsertOutcome{StatusFailed, fmt.Sprintf("Error working with the spreadsheet: %v", err)}
		}
		return UpsertOutcome{StatusUpdated, "User data updated!"}
	}

	if err := svc.Append(ctx, WorksheetUserData, rowData); err != nil {
		return UpsertOutcome{StatusFailed, fmt.Sprintf("Error working with the spreadsheet: %v", err)}
	}
	return UpsertOutcome{StatusSaved, "User data saved!"}
}

// ensureHeader returns the effective header, writing it when the sheet
// is empty or its first two columns are not the fixed prefix. A rebuild
// preserves extra columns and appends missing schema fields; row data
// is not migrated.
func (s *Syncer) ensureHeader(ctx context.Context, svc Service, rows [][]string, cfg *store.SaveUserDataConfig) ([]string, error) {
	if len(rows) == 0 {
		header := []string{"user_id", "updated_at"}
		for _, f := range cfg.Fields {
			header = append(header, f.Name)
		}
		if err := svc.WriteRow(ctx, WorksheetUserData, 1, header); err != nil {
			return nil, err
		}
		return header, nil
	}

	current := rows[0]
	if len(current) >= 2 && current[0] == "user_id" && current[1] == "updated_at" {
		return current, nil
	}

	header := []string{"user_id", "updated_at"}
	for _, col := range current {
		if col != "" && !containsColumn(header, col) {
			header = append(header, col)
		}
	}
	for _, f := range cfg.Fields {
		if !containsColumn(header, f.Name) {
			header = append(header, f.Name)
		}
	}
	if err := svc.WriteRow(ctx, WorksheetUserData, 1, header); err != nil {
		return nil, err
	}
	return header, nil
}

func containsColumn(header []string, col string) bool {
	for _, h := range header {
		if h == col {
			return true
		}
	}
	return false
}

// LogConversation appends one exchange to the Conversations worksheet.
// Best-effort: failures are logged and swallowed.
func (s *Syncer) LogConversation(ctx context.Context, agentID, userID, userMessage, botResponse string) {
	integration, err := s.resolver.Resolve(ctx, agentID, nil)
	if err != nil {
		if !errors.Is(err, ErrIntegrationNotConfigured) {
			s.log.Warn("skipping conversation log", "agent_id", agentID, "error", err)
		}
		return
	}

	svc, err := s.factory(integration.Credentials, integration.SpreadsheetID)
	if err != nil {
		s.log.Warn("skipping conversation log", "integration_id", integration.ID, "error", err)
		return
	}

	row := []string{
		time.Now().Format(rowTimestampFormat),
		userID,
		userMessage,
		botResponse,
	}
	if err := svc.Append(ctx, WorksheetConversations, row); err != nil {
		s.log.Warn("failed to append conversation log",
			"integration_id", integration.ID, "error", err)
	}
}
