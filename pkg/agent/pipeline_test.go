package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistant-api/assistant-api/pkg/databases"
	"github.com/assistant-api/assistant-api/pkg/embedders"
	"github.com/assistant-api/assistant-api/pkg/knowledge"
	"github.com/assistant-api/assistant-api/pkg/llms"
	"github.com/assistant-api/assistant-api/pkg/session"
	"github.com/assistant-api/assistant-api/pkg/sheets"
	"github.com/assistant-api/assistant-api/pkg/store"
	"github.com/assistant-api/assistant-api/pkg/tools"
)

// mockProvider returns canned responses and records requests.
type mockProvider struct {
	resp     *llms.ChatResponse
	err      error
	requests []llms.ChatRequest
}

func (m *mockProvider) Generate(ctx context.Context, req llms.ChatRequest) (*llms.ChatResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockProvider) Close() error { return nil }

// nullIndex satisfies the vector index with no data.
type nullIndex struct{}

func (nullIndex) Upsert(ctx context.Context, id uint64, vector []float32, payload map[string]interface{}) error {
	return nil
}

func (nullIndex) Search(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]databases.SearchHit, error) {
	return nil, nil
}

func (nullIndex) Delete(ctx context.Context, id uint64) error { return nil }
func (nullIndex) Close() error                                { return nil }

type fixture struct {
	store      *store.MemoryStore
	sessions   *session.Manager
	provider   *mockProvider
	pipeline   *Pipeline
	embedCreds []string
}

func newFixture(t *testing.T, agent *store.Agent) *fixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	require.NoError(t, st.Agents().Save(ctx, agent))

	f := &fixture{store: st, sessions: session.NewManager()}
	retriever := knowledge.NewRetriever(func(credential string) *embedders.FallbackEmbedder {
		f.embedCreds = append(f.embedCreds, credential)
		return embedders.NewFallbackEmbedder(nil, "text-embedding-ada-002")
	}, nullIndex{}, st.Documents())
	registry := tools.NewRegistry(st.Tools())

	resolver := sheets.NewResolver(st.Integrations())
	syncer := sheets.NewSyncer(resolver, st.Tools(),
		func(credentials []byte, spreadsheetID string) (sheets.Service, error) {
			return nil, assert.AnError
		})

	f.provider = &mockProvider{resp: &llms.ChatResponse{Content: "Hi"}}
	dispatcher := tools.NewDispatcher(syncer)

	f.pipeline = NewPipeline(agent.ID, st, f.sessions, retriever, registry, dispatcher, syncer,
		func(credential string) llms.Provider { return f.provider })
	return f
}

func testAgent() *store.Agent {
	agent := &store.Agent{
		ID:           "agent-1",
		Name:         "Support",
		Credential:   "sk-test",
		Instructions: "You are a support assistant.",
	}
	agent.SetDefaults()
	return agent
}

func TestHandleSimpleExchange(t *testing.T) {
	f := newFixture(t, testAgent())

	reply := f.pipeline.Handle(context.Background(), "telegram", "u1", "Hello")

	assert.Equal(t, "Hi", reply)

	turns := f.sessions.History("telegram", "u1")
	require.Len(t, turns, 2)
	assert.Equal(t, llms.Message{Role: llms.RoleUser, Content: "Hello"}, turns[0])
	assert.Equal(t, llms.Message{Role: llms.RoleAssistant, Content: "Hi"}, turns[1])

	// The request carries a fresh system turn plus the session.
	require.Len(t, f.provider.requests, 1)
	req := f.provider.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llms.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "support assistant")
	assert.Equal(t, "Hello", req.Messages[1].Content)
	assert.Empty(t, req.Tools)

	// Both sides of the exchange hit the durable history.
	records, err := f.store.History().Recent(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bot", records[0].Role)
	assert.Equal(t, "user", records[1].Role)
}

func TestHandleEmbedsWithAgentCredential(t *testing.T) {
	f := newFixture(t, testAgent())

	f.pipeline.Handle(context.Background(), "telegram", "u1", "Hello")

	// Retrieval embeds with the agent's own credential, not a
	// process-level key.
	require.Equal(t, []string{"sk-test"}, f.embedCreds)
}

func TestHandleDeclaresToolsWhenEnabled(t *testing.T) {
	agent := testAgent()
	agent.ToolsEnabled = true
	f := newFixture(t, agent)

	require.NoError(t, f.store.Tools().SaveSaveUserData(context.Background(), &store.SaveUserDataConfig{
		AgentID:     "agent-1",
		Description: "Save contact details",
		Fields:      []store.ToolField{{Name: "name", Type: "string"}},
	}))

	f.pipeline.Handle(context.Background(), "telegram", "u1", "My name is Alice")

	require.Len(t, f.provider.requests, 1)
	require.Len(t, f.provider.requests[0].Tools, 1)
	assert.Equal(t, "save_user_data", f.provider.requests[0].Tools[0].Name)
}

func TestHandleToolCallsRenderIntoReply(t *testing.T) {
	agent := testAgent()
	agent.ToolsEnabled = true
	f := newFixture(t, agent)
	f.provider.resp = &llms.ChatResponse{
		Content: "Noted.",
		ToolCalls: []llms.ToolCall{
			{ID: "1", Name: "check_order", Arguments: `{"order_id":"A7"}`},
		},
	}

	reply := f.pipeline.Handle(context.Background(), "telegram", "u1", "Check my order A7")

	assert.Equal(t, "Noted.\nFunction called: check_order(order_id=A7)", reply)
	turns := f.sessions.History("telegram", "u1")
	assert.Equal(t, reply, turns[len(turns)-1].Content)
}

func TestHandleCompletionFailureUsesErrorTemplate(t *testing.T) {
	agent := testAgent()
	agent.ErrorMessage = "Back soon."
	f := newFixture(t, agent)
	f.provider.err = assert.AnError

	reply := f.pipeline.Handle(context.Background(), "telegram", "u1", "Hello")

	assert.Equal(t, "Back soon.", reply)
	// The failed exchange is still recorded.
	turns := f.sessions.History("telegram", "u1")
	require.Len(t, turns, 2)
	assert.Equal(t, "Back soon.", turns[1].Content)
}

func TestHandleUnknownAgent(t *testing.T) {
	f := newFixture(t, testAgent())
	missing := NewPipeline("no-such-agent", f.store, f.sessions,
		knowledge.NewRetriever(func(credential string) *embedders.FallbackEmbedder {
			return embedders.NewFallbackEmbedder(nil, "")
		}, nullIndex{}, f.store.Documents()),
		tools.NewRegistry(f.store.Tools()), tools.NewDispatcher(nil), nil,
		func(credential string) llms.Provider { return f.provider })

	reply := missing.Handle(context.Background(), "telegram", "u1", "Hello")

	assert.Equal(t, "Sorry, I am unavailable right now, please try again later.", reply)
}

func TestHandleTruncatesLongSessions(t *testing.T) {
	agent := testAgent()
	agent.Truncation.Window = 2
	f := newFixture(t, agent)

	for i := 0; i < 6; i++ {
		f.pipeline.Handle(context.Background(), "telegram", "u1", "ping")
	}

	turns := f.sessions.History("telegram", "u1")
	// Truncation runs before the completion, so the session holds at
	// most 2*window turns plus the newest exchange.
	assert.LessOrEqual(t, len(turns), 6)
}

func TestHello(t *testing.T) {
	agent := testAgent()
	agent.HelloMessage = "Welcome aboard!"
	f := newFixture(t, agent)

	assert.Equal(t, "Welcome aboard!", f.pipeline.Hello(context.Background()))
}
