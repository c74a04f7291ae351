package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assistant-api/assistant-api/pkg/llms"
)

// recordingSaver captures the save_user_data payload it receives.
type recordingSaver struct {
	agentID string
	userID  string
	data    map[string]interface{}
	reply   string
}

func (s *recordingSaver) SaveUserData(ctx context.Context, agentID, userID string, data map[string]interface{}) string {
	s.agentID = agentID
	s.userID = userID
	s.data = data
	return s.reply
}

func TestDispatchRoutesSaveUserData(t *testing.T) {
	saver := &recordingSaver{reply: "User data saved!"}
	d := NewDispatcher(saver)

	out := d.Dispatch(context.Background(), "agent-1", "u42", []llms.ToolCall{
		{ID: "1", Name: SaveUserDataToolName, Arguments: `{"name":"Alice","phone":"+123"}`},
	})

	assert.Equal(t, "User data saved!", out)
	assert.Equal(t, "agent-1", saver.agentID)
	assert.Equal(t, "u42", saver.userID)
	assert.Equal(t, "Alice", saver.data["name"])
}

func TestDispatchAcknowledgesUnknownTools(t *testing.T) {
	d := NewDispatcher(nil)

	out := d.Dispatch(context.Background(), "agent-1", "u42", []llms.ToolCall{
		{ID: "1", Name: "check_order", Arguments: `{"order_id":"A7","priority":true}`},
	})

	assert.Equal(t, "Function called: check_order(order_id=A7, priority=true)", out)
}

func TestDispatchIsolatesMalformedArguments(t *testing.T) {
	saver := &recordingSaver{reply: "User data saved!"}
	d := NewDispatcher(saver)

	out := d.Dispatch(context.Background(), "agent-1", "u42", []llms.ToolCall{
		{ID: "1", Name: "check_order", Arguments: `{not json`},
		{ID: "2", Name: SaveUserDataToolName, Arguments: `{"name":"Bob"}`},
	})

	// The broken call fails alone; its sibling still runs.
	assert.Equal(t,
		"Function called: check_order (error: malformed tool arguments)\nUser data saved!",
		out)
	assert.Equal(t, "Bob", saver.data["name"])
}

func TestDispatchWithoutSaverReportsInline(t *testing.T) {
	d := NewDispatcher(nil)

	out := d.Dispatch(context.Background(), "agent-1", "u42", []llms.ToolCall{
		{ID: "1", Name: SaveUserDataToolName, Arguments: `{"name":"Bob"}`},
	})

	assert.Equal(t, "Error: save_user_data is not configured", out)
}
