// Package llms talks to chat-completion services.
package llms

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn submitted to the completion service.
type Message struct {
	Role    string `json:"role"` // user, system, assistant
	Content string `json:"content"`
}

// ToolDefinition declares a callable tool to the completion service.
// Parameters is a JSON-schema object.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is an invocation the model requested. Arguments stays a raw
// JSON string: parsing happens at dispatch time so one malformed
// payload only fails its own call.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatRequest carries the per-message completion parameters. Model,
// temperature and token budget come from the agent configuration and
// may differ between messages.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []ToolDefinition
}

// ChatResponse is the provider-neutral completion result.
type ChatResponse struct {
	Content    string
	ToolCalls  []ToolCall
	TokensUsed int
}

// Provider generates chat completions.
type Provider interface {
	Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Close() error
}
