package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/assistant-api/assistant-api/pkg/config"
)

// Seed is a declarative bootstrap file applied to the store on
// startup. Useful for local runs without an admin surface.
type Seed struct {
	Agents       []seedAgent        `yaml:"agents"`
	Tools        []seedTool         `yaml:"tools"`
	SaveUserData []seedSaveUserData `yaml:"save_user_data"`
	Integrations []seedIntegration  `yaml:"integrations"`
	Documents    []seedDocument     `yaml:"documents"`
}

type seedAgent struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Credential   string  `yaml:"credential"`
	Model        string  `yaml:"model"`
	Instructions string  `yaml:"instructions"`
	Temperature  float64 `yaml:"temperature"`
	ToolsEnabled bool    `yaml:"tools_enabled"`
	HelloMessage string  `yaml:"hello_message"`
	ErrorMessage string  `yaml:"error_message"`
	MaxTokens    int     `yaml:"max_tokens"`
	SearchCount  int     `yaml:"search_count"`
	Window       int     `yaml:"window"`
}

type seedField struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

type seedTool struct {
	AgentID     string      `yaml:"agent_id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Fields      []seedField `yaml:"fields"`
}

type seedSaveUserData struct {
	AgentID       string      `yaml:"agent_id"`
	Description   string      `yaml:"description"`
	Fields        []seedField `yaml:"fields"`
	IntegrationID string      `yaml:"integration_id"`
}

type seedIntegration struct {
	ID            string `yaml:"id"`
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Credentials   string `yaml:"credentials_json"`
	AgentID       string `yaml:"agent_id"`
}

type seedDocument struct {
	ID      string `yaml:"id"`
	AgentID string `yaml:"agent_id"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// LoadSeed parses a YAML seed file. ${VAR} and ${VAR:-default}
// references are expanded first, so credentials and spreadsheet ids
// can come from the environment instead of the file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	expanded := config.ExpandEnvVars(string(data))
	var seed Seed
	if err := yaml.Unmarshal([]byte(expanded), &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// Apply writes the seed into the store. Documents go through ingest so
// they also land in the vector index.
func (s *Seed) Apply(ctx context.Context, st Store, ingest func(context.Context, *Document) error) error {
	for _, a := range s.Agents {
		agent := &Agent{
			ID:           a.ID,
			Name:         a.Name,
			Credential:   a.Credential,
			Model:        a.Model,
			Instructions: a.Instructions,
			Temperature:  a.Temperature,
			ToolsEnabled: a.ToolsEnabled,
			HelloMessage: a.HelloMessage,
			ErrorMessage: a.ErrorMessage,
			MaxTokens:    a.MaxTokens,
			SearchCount:  a.SearchCount,
			Truncation:   TruncationPolicy{Kind: "last_messages", Window: a.Window},
		}
		agent.SetDefaults()
		if err := st.Agents().Save(ctx, agent); err != nil {
			return fmt.Errorf("failed to seed agent %s: %w", a.ID, err)
		}
	}

	for _, tool := range s.Tools {
		if err := st.Tools().Save(ctx, &ToolSchema{
			AgentID:     tool.AgentID,
			Name:        tool.Name,
			Description: tool.Description,
			Fields:      convertFields(tool.Fields),
		}); err != nil {
			return fmt.Errorf("failed to seed tool %s: %w", tool.Name, err)
		}
	}

	for _, cfg := range s.SaveUserData {
		if err := st.Tools().SaveSaveUserData(ctx, &SaveUserDataConfig{
			AgentID:       cfg.AgentID,
			Description:   cfg.Description,
			Fields:        convertFields(cfg.Fields),
			IntegrationID: cfg.IntegrationID,
		}); err != nil {
			return fmt.Errorf("failed to seed save_user_data for %s: %w", cfg.AgentID, err)
		}
	}

	for _, integration := range s.Integrations {
		if err := st.Integrations().Save(ctx, &SheetIntegration{
			ID:            integration.ID,
			SpreadsheetID: integration.SpreadsheetID,
			Credentials:   json.RawMessage(integration.Credentials),
			AgentID:       integration.AgentID,
		}); err != nil {
			return fmt.Errorf("failed to seed integration %s: %w", integration.ID, err)
		}
	}

	for _, doc := range s.Documents {
		document := &Document{
			ID:      doc.ID,
			AgentID: doc.AgentID,
			Title:   doc.Title,
			Content: doc.Content,
		}
		if err := ingest(ctx, document); err != nil {
			return fmt.Errorf("failed to seed document %s: %w", doc.Title, err)
		}
	}

	return nil
}

func convertFields(fields []seedField) []ToolField {
	out := make([]ToolField, len(fields))
	for i, f := range fields {
		out[i] = ToolField{Name: f.Name, Type: f.Type, Description: f.Description}
	}
	return out
}
