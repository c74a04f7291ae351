// Package tools builds tool declarations for the completion service and
// routes the calls the model makes back to their handlers.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/assistant-api/assistant-api/pkg/llms"
	"github.com/assistant-api/assistant-api/pkg/store"
)

// SaveUserDataToolName is the reserved tool routed to the spreadsheet
// sync instead of a generic acknowledgment.
const SaveUserDataToolName = "save_user_data"

// ErrMalformedArguments marks a tool call whose JSON arguments could
// not be parsed. It isolates to that one call.
var ErrMalformedArguments = errors.New("malformed tool arguments")

// Registry turns stored tool schemas into completion-service
// declarations.
type Registry struct {
	tools store.ToolStore
}

// NewRegistry creates a registry over the tool store.
func NewRegistry(tools store.ToolStore) *Registry {
	return &Registry{tools: tools}
}

// Declarations returns the agent's tool declarations. The activated
// save_user_data schema comes first when present, then the other
// registered tools in store order. Any stored schema that reuses the
// reserved name is skipped so it cannot shadow the activation.
func (r *Registry) Declarations(ctx context.Context, agentID string) ([]llms.ToolDefinition, error) {
	var defs []llms.ToolDefinition

	cfg, err := r.tools.LoadSaveUserData(ctx, agentID)
	switch {
	case err == nil:
		defs = append(defs, llms.ToolDefinition{
			Name:        SaveUserDataToolName,
			Description: cfg.Description,
			Parameters:  schemaParameters(cfg.Fields),
		})
	case errors.Is(err, store.ErrNotFound):
		// Tool not activated for this agent.
	default:
		return nil, fmt.Errorf("failed to load save_user_data config: %w", err)
	}

	schemas, err := r.tools.List(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool schemas: %w", err)
	}
	for _, schema := range schemas {
		if schema.Name == SaveUserDataToolName {
			continue
		}
		defs = append(defs, llms.ToolDefinition{
			Name:        schema.Name,
			Description: schema.Description,
			Parameters:  schemaParameters(schema.Fields),
		})
	}

	return defs, nil
}

// schemaParameters renders ordered fields as a JSON-schema object.
func schemaParameters(fields []store.ToolField) map[string]interface{} {
	properties := make(map[string]interface{}, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		fieldType := f.Type
		if fieldType == "" {
			fieldType = "string"
		}
		properties[f.Name] = map[string]interface{}{
			"type":        fieldType,
			"description": f.Description,
		}
		required = append(required, f.Name)
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
