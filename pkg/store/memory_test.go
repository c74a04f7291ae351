package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAgents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Agents().Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	agent := &Agent{Name: "support", Model: "gpt-4o-mini"}
	agent.SetDefaults()
	require.NoError(t, s.Agents().Save(ctx, agent))
	require.NotEmpty(t, agent.ID)

	loaded, err := s.Agents().Load(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "support", loaded.Name)
	assert.Equal(t, 10, loaded.Truncation.Window)
	assert.Equal(t, 0.7, loaded.Temperature)
}

func TestMemoryIntegrationsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Integrations().Save(ctx, &SheetIntegration{
			ID:            id,
			SpreadsheetID: "sheet-" + id,
			AgentID:       "agent-" + id,
		}))
	}

	all, err := s.Integrations().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].ID)
	assert.Equal(t, "third", all[2].ID)

	found, err := s.Integrations().FindByAgentID(ctx, "agent-second")
	require.NoError(t, err)
	assert.Equal(t, "second", found.ID)

	require.NoError(t, s.Integrations().Delete(ctx, "second"))
	_, err = s.Integrations().Load(ctx, "second")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryToolsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Tools().Save(ctx, &ToolSchema{AgentID: "a1", Name: "get_weather"}))
	require.NoError(t, s.Tools().Save(ctx, &ToolSchema{AgentID: "a1", Name: "book_meeting"}))
	require.NoError(t, s.Tools().Save(ctx, &ToolSchema{AgentID: "a2", Name: "other_agent_tool"}))

	schemas, err := s.Tools().List(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "get_weather", schemas[0].Name)
	assert.Equal(t, "book_meeting", schemas[1].Name)
}

func TestMemoryHistoryRecent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, s.History().Append(ctx, &HistoryRecord{
			UserID:  "u1",
			Channel: "telegram",
			Role:    "user",
			Content: content,
			AgentID: "a1",
		}))
	}
	require.NoError(t, s.History().Append(ctx, &HistoryRecord{
		UserID: "u2", Channel: "telegram", Role: "user", Content: "unrelated", AgentID: "a1",
	}))

	recent, err := s.History().Recent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, "two", recent[1].Content)
}
