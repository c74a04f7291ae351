// Package agent orchestrates one inbound message end to end: session
// bookkeeping, knowledge retrieval, completion with tools, spreadsheet
// sync and the durable history trail.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/assistant-api/assistant-api/pkg/knowledge"
	"github.com/assistant-api/assistant-api/pkg/llms"
	"github.com/assistant-api/assistant-api/pkg/logger"
	"github.com/assistant-api/assistant-api/pkg/session"
	"github.com/assistant-api/assistant-api/pkg/sheets"
	"github.com/assistant-api/assistant-api/pkg/store"
	"github.com/assistant-api/assistant-api/pkg/tools"
)

// ProviderFactory builds a completion provider for one agent
// credential. Called per message so credential edits apply immediately.
type ProviderFactory func(credential string) llms.Provider

// Pipeline is the channel-agnostic per-message orchestrator. One
// pipeline serves one agent across every channel adapter.
type Pipeline struct {
	agentID    string
	store      store.Store
	sessions   *session.Manager
	retriever  *knowledge.Retriever
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	syncer     *sheets.Syncer
	providers  ProviderFactory
	log        *slog.Logger
}

// NewPipeline wires the orchestrator. syncer may be nil when no
// spreadsheet sync is configured.
func NewPipeline(
	agentID string,
	st store.Store,
	sessions *session.Manager,
	retriever *knowledge.Retriever,
	registry *tools.Registry,
	dispatcher *tools.Dispatcher,
	syncer *sheets.Syncer,
	providers ProviderFactory,
) *Pipeline {
	return &Pipeline{
		agentID:    agentID,
		store:      st,
		sessions:   sessions,
		retriever:  retriever,
		registry:   registry,
		dispatcher: dispatcher,
		syncer:     syncer,
		providers:  providers,
		log:        logger.WithComponent("pipeline"),
	}
}

// Hello returns the agent's greeting for a conversation opener.
func (p *Pipeline) Hello(ctx context.Context) string {
	agent, err := p.store.Agents().Load(ctx, p.agentID)
	if err != nil {
		p.log.Error("failed to load agent for greeting", "agent_id", p.agentID, "error", err)
		fallback := &store.Agent{}
		fallback.SetDefaults()
		return fallback.HelloMessage
	}
	return agent.HelloMessage
}

// Handle processes one inbound message and always returns a reply.
// Failures degrade to the agent's error template; nothing panics past
// this method.
func (p *Pipeline) Handle(ctx context.Context, channel, userID, text string) string {
	agent, err := p.store.Agents().Load(ctx, p.agentID)
	if err != nil {
		p.log.Error("failed to load agent", "agent_id", p.agentID, "error", err)
		fallback := &store.Agent{}
		fallback.SetDefaults()
		return fallback.ErrorMessage
	}
	agent.SetDefaults()

	p.recordHistory(ctx, channel, userID, "user", text, agent.ID)
	p.sessions.Append(channel, userID, llms.Message{Role: llms.RoleUser, Content: text})

	retrieval := p.retriever.Retrieve(ctx, agent.ID, agent.Credential, text, agent.SearchCount)

	p.sessions.Truncate(channel, userID, agent.Truncation.Window)

	reply := p.complete(ctx, agent, retrieval, channel, userID)

	p.sessions.Append(channel, userID, llms.Message{Role: llms.RoleAssistant, Content: reply})
	p.recordHistory(ctx, channel, userID, "bot", reply, agent.ID)

	if p.syncer != nil {
		p.syncer.LogConversation(ctx, agent.ID, userID, text, reply)
	}

	return reply
}

// complete runs the completion with tool declarations and resolves any
// tool calls into the reply text.
func (p *Pipeline) complete(ctx context.Context, agent *store.Agent, retrieval *knowledge.Result, channel, userID string) string {
	messages := p.buildMessages(agent, retrieval, p.sessions.History(channel, userID))

	var declarations []llms.ToolDefinition
	if agent.ToolsEnabled {
		defs, err := p.registry.Declarations(ctx, agent.ID)
		if err != nil {
			p.log.Warn("continuing without tools", "agent_id", agent.ID, "error", err)
		} else {
			declarations = defs
		}
	}

	provider := p.providers(agent.Credential)
	defer provider.Close()

	resp, err := provider.Generate(ctx, llms.ChatRequest{
		Model:       agent.Model,
		Messages:    messages,
		Temperature: agent.Temperature,
		MaxTokens:   agent.MaxTokens,
		Tools:       declarations,
	})
	if err != nil {
		p.log.Error("completion failed", "agent_id", agent.ID, "error", err)
		return agent.ErrorMessage
	}

	if len(resp.ToolCalls) == 0 {
		return resp.Content
	}

	outputs := p.dispatcher.Dispatch(ctx, agent.ID, userID, resp.ToolCalls)
	return joinReply(resp.Content, outputs)
}

// buildMessages assembles the completion transcript: one system turn
// built fresh from the instructions and retrieval context, then the
// session turns. The system turn is never stored in the session.
func (p *Pipeline) buildMessages(agent *store.Agent, retrieval *knowledge.Result, history []llms.Message) []llms.Message {
	system := agent.Instructions
	if kb := knowledge.FormatContext(retrieval); kb != "" {
		system = strings.TrimSpace(system + "\n\n" + kb)
	}

	messages := make([]llms.Message, 0, len(history)+1)
	if system != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: system})
	}
	return append(messages, history...)
}

func (p *Pipeline) recordHistory(ctx context.Context, channel, userID, role, content, agentID string) {
	record := &store.HistoryRecord{
		UserID:    userID,
		Channel:   channel,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		AgentID:   agentID,
	}
	if err := p.store.History().Append(ctx, record); err != nil {
		p.log.Warn("failed to append history record", "user_id", userID, "error", err)
	}
}

// joinReply concatenates the model's text with the tool outputs,
// skipping empty parts.
func joinReply(content, outputs string) string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(content) != "" {
		parts = append(parts, content)
	}
	if strings.TrimSpace(outputs) != "" {
		parts = append(parts, outputs)
	}
	return strings.Join(parts, "\n")
}
