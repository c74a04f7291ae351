package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/assistant-api/assistant-api/pkg/logger"
	"github.com/assistant-api/assistant-api/pkg/store"
)

// ErrIntegrationNotConfigured is returned only when no spreadsheet
// integration exists anywhere in the system.
var ErrIntegrationNotConfigured = errors.New("spreadsheet integration not configured")

// Resolver picks the spreadsheet integration for an agent. The chain,
// in order, short-circuiting on the first hit:
//
//  1. integration whose stored agent id matches as-is
//  2. integration whose agent id matches after string normalization
//  3. the integration referenced explicitly by the save_user_data
//     configuration
//  4. the first integration system-wide
//
// Step 4 can cross tenants; it is kept for continuity with historical
// data and always logged at Warn.
type Resolver struct {
	integrations store.IntegrationStore
	log          *slog.Logger
}

// NewResolver creates a resolver over the integration store.
func NewResolver(integrations store.IntegrationStore) *Resolver {
	return &Resolver{
		integrations: integrations,
		log:          logger.WithComponent("sheets"),
	}
}

// Resolve returns the integration for the agent. cfg may be nil when
// no save_user_data configuration is in play (the conversation log).
func (r *Resolver) Resolve(ctx context.Context, agentID string, cfg *store.SaveUserDataConfig) (*store.SheetIntegration, error) {
	integration, err := r.integrations.FindByAgentID(ctx, agentID)
	if err == nil {
		return integration, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up integration: %w", err)
	}

	all, err := r.integrations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	if found := matchNormalized(all, agentID); found != nil {
		return found, nil
	}

	if cfg != nil && cfg.IntegrationID != "" {
		integration, err := r.integrations.Load(ctx, cfg.IntegrationID)
		if err == nil {
			return integration, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load referenced integration: %w", err)
		}
		r.log.Warn("save_user_data references a missing integration",
			"agent_id", agentID, "integration_id", cfg.IntegrationID)
	}

	if len(all) > 0 {
		fallback := &all[0]
		r.log.Warn("falling back to first spreadsheet integration",
			"agent_id", agentID, "integration_id", fallback.ID,
			"integration_agent_id", fallback.AgentID)
		return fallback, nil
	}

	return nil, ErrIntegrationNotConfigured
}

// matchNormalized scans for an agent id that matches after trimming
// whitespace, catching ids stored through a different serialization.
func matchNormalized(all []store.SheetIntegration, agentID string) *store.SheetIntegration {
	want := strings.TrimSpace(agentID)
	for i := range all {
		if strings.TrimSpace(all[i].AgentID) == want && want != "" {
			return &all[i]
		}
	}
	return nil
}
