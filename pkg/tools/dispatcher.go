package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/assistant-api/assistant-api/pkg/llms"
	"github.com/assistant-api/assistant-api/pkg/logger"
)

// UserDataSaver persists save_user_data payloads. The returned string
// is the user-facing outcome line, success or failure alike.
type UserDataSaver interface {
	SaveUserData(ctx context.Context, agentID, userID string, data map[string]interface{}) string
}

// Dispatcher routes the tool calls of one completion to their handlers
// and renders one output line per call.
type Dispatcher struct {
	saver UserDataSaver
	log   *slog.Logger
}

// NewDispatcher creates a dispatcher. saver may be nil when no
// spreadsheet backend is wired; save_user_data then reports failure
// inline like any other degraded outcome.
func NewDispatcher(saver UserDataSaver) *Dispatcher {
	return &Dispatcher{
		saver: saver,
		log:   logger.WithComponent("tools"),
	}
}

// Dispatch executes every call and joins the outputs, one per line.
// A call with unparseable arguments fails alone; its siblings run.
func (d *Dispatcher) Dispatch(ctx context.Context, agentID, userID string, calls []llms.ToolCall) string {
	outputs := make([]string, 0, len(calls))

	for _, call := range calls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			d.log.Error("failed to parse tool arguments",
				"tool", call.Name, "error", fmt.Errorf("%w: %v", ErrMalformedArguments, err))
			outputs = append(outputs, fmt.Sprintf("Function called: %s (error: %s)", call.Name, ErrMalformedArguments))
			continue
		}

		if call.Name == SaveUserDataToolName {
			outputs = append(outputs, d.saveUserData(ctx, agentID, userID, args))
			continue
		}

		outputs = append(outputs, fmt.Sprintf("Function called: %s(%s)", call.Name, formatArgs(args)))
	}

	return strings.Join(outputs, "\n")
}

func (d *Dispatcher) saveUserData(ctx context.Context, agentID, userID string, args map[string]interface{}) string {
	if d.saver == nil {
		d.log.Warn("save_user_data called without a spreadsheet backend", "agent_id", agentID)
		return "Error: save_user_data is not configured"
	}
	return d.saver.SaveUserData(ctx, agentID, userID, args)
}

// formatArgs renders arguments as k=v pairs in key order.
func formatArgs(args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(pairs, ", ")
}
