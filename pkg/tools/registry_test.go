package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistant-api/assistant-api/pkg/store"
)

func TestDeclarationsOrdersSaveUserDataFirst(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	require.NoError(t, st.Tools().Save(ctx, &store.ToolSchema{
		AgentID:     "agent-1",
		Name:        "check_order",
		Description: "Look up an order",
		Fields:      []store.ToolField{{Name: "order_id", Type: "string", Description: "Order number"}},
	}))
	require.NoError(t, st.Tools().SaveSaveUserData(ctx, &store.SaveUserDataConfig{
		AgentID:     "agent-1",
		Description: "Save contact details",
		Fields: []store.ToolField{
			{Name: "name", Type: "string", Description: "Full name"},
			{Name: "phone", Type: "string", Description: "Phone number"},
		},
	}))

	defs, err := NewRegistry(st.Tools()).Declarations(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, SaveUserDataToolName, defs[0].Name)
	assert.Equal(t, "Save contact details", defs[0].Description)
	assert.Equal(t, "check_order", defs[1].Name)

	props, ok := defs[0].Parameters["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "phone")
	assert.Equal(t, []string{"name", "phone"}, defs[0].Parameters["required"])
}

func TestDeclarationsSkipsShadowingSchema(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	// A stored schema reusing the reserved name must not be declared twice.
	require.NoError(t, st.Tools().Save(ctx, &store.ToolSchema{
		AgentID: "agent-1",
		Name:    SaveUserDataToolName,
	}))
	require.NoError(t, st.Tools().SaveSaveUserData(ctx, &store.SaveUserDataConfig{
		AgentID:     "agent-1",
		Description: "Save contact details",
		Fields:      []store.ToolField{{Name: "name", Type: "string"}},
	}))

	defs, err := NewRegistry(st.Tools()).Declarations(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, SaveUserDataToolName, defs[0].Name)
}

func TestDeclarationsWithoutActivation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	require.NoError(t, st.Tools().Save(ctx, &store.ToolSchema{
		AgentID: "agent-1",
		Name:    "check_order",
	}))

	defs, err := NewRegistry(st.Tools()).Declarations(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "check_order", defs[0].Name)
}

func TestDeclarationsEmpty(t *testing.T) {
	st := store.NewMemoryStore()

	defs, err := NewRegistry(st.Tools()).Declarations(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Empty(t, defs)
}
