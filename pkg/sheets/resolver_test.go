package sheets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistant-api/assistant-api/pkg/store"
)

func TestResolveByAgentID(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Integrations().Save(ctx, &store.SheetIntegration{
		ID: "int-1", SpreadsheetID: "sheet-1", AgentID: "agent-1",
	}))

	got, err := NewResolver(st.Integrations()).Resolve(ctx, "agent-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "int-1", got.ID)
}

func TestResolveByNormalizedAgentID(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	// Agent id stored with stray whitespace misses the direct lookup.
	require.NoError(t, st.Integrations().Save(ctx, &store.SheetIntegration{
		ID: "int-1", SpreadsheetID: "sheet-1", AgentID: " agent-1 ",
	}))

	got, err := NewResolver(st.Integrations()).Resolve(ctx, "agent-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "int-1", got.ID)
}

func TestResolveByExplicitReference(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Integrations().Save(ctx, &store.SheetIntegration{
		ID: "int-9", SpreadsheetID: "sheet-9", AgentID: "other-agent",
	}))

	cfg := &store.SaveUserDataConfig{AgentID: "agent-1", IntegrationID: "int-9"}
	got, err := NewResolver(st.Integrations()).Resolve(ctx, "agent-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, "int-9", got.ID)
}

func TestResolveFallsBackToFirstIntegration(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Integrations().Save(ctx, &store.SheetIntegration{
		ID: "int-a", SpreadsheetID: "sheet-a", AgentID: "tenant-a",
	}))
	require.NoError(t, st.Integrations().Save(ctx, &store.SheetIntegration{
		ID: "int-b", SpreadsheetID: "sheet-b", AgentID: "tenant-b",
	}))

	got, err := NewResolver(st.Integrations()).Resolve(ctx, "agent-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "int-a", got.ID)
}

func TestResolveNoneConfigured(t *testing.T) {
	st := store.NewMemoryStore()

	_, err := NewResolver(st.Integrations()).Resolve(context.Background(), "agent-1", nil)
	assert.ErrorIs(t, err, ErrIntegrationNotConfigured)
}

func TestResolveMissingReferenceStillFallsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Integrations().Save(ctx, &store.SheetIntegration{
		ID: "int-a", SpreadsheetID: "sheet-a", AgentID: "tenant-a",
	}))

	cfg := &store.SaveUserDataConfig{AgentID: "agent-1", IntegrationID: "gone"}
	got, err := NewResolver(st.Integrations()).Resolve(ctx, "agent-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, "int-a", got.ID)
}
