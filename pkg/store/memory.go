package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used for local runs and tests.
// Listing orders follow insertion order, matching the SQL store's
// created_at ordering.
type MemoryStore struct {
	mu           sync.RWMutex
	agents       map[string]*Agent
	tools        []*ToolSchema
	saveConfigs  map[string]*SaveUserDataConfig
	integrations []*SheetIntegration
	documents    map[string]*Document
	history      []*HistoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:      make(map[string]*Agent),
		saveConfigs: make(map[string]*SaveUserDataConfig),
		documents:   make(map[string]*Document),
	}
}

func (s *MemoryStore) Agents() AgentStore             { return (*memoryAgents)(s) }
func (s *MemoryStore) Tools() ToolStore               { return (*memoryTools)(s) }
func (s *MemoryStore) Integrations() IntegrationStore { return (*memoryIntegrations)(s) }
func (s *MemoryStore) Documents() DocumentStore       { return (*memoryDocuments)(s) }
func (s *MemoryStore) History() HistoryStore          { return (*memoryHistory)(s) }
func (s *MemoryStore) Close() error                   { return nil }

type memoryAgents MemoryStore

func (s *memoryAgents) Load(ctx context.Context, id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *agent
	return &copied, nil
}

func (s *memoryAgents) Save(ctx context.Context, agent *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	copied := *agent
	s.agents[agent.ID] = &copied
	return nil
}

type memoryTools MemoryStore

func (s *memoryTools) List(ctx context.Context, agentID string) ([]ToolSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ToolSchema
	for _, schema := range s.tools {
		if schema.AgentID == agentID {
			out = append(out, *schema)
		}
	}
	return out, nil
}

func (s *memoryTools) Save(ctx context.Context, schema *ToolSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schema.ID == "" {
		schema.ID = uuid.NewString()
	}
	copied := *schema
	for i, existing := range s.tools {
		if existing.ID == schema.ID {
			s.tools[i] = &copied
			return nil
		}
	}
	s.tools = append(s.tools, &copied)
	return nil
}

func (s *memoryTools) LoadSaveUserData(ctx context.Context, agentID string) (*SaveUserDataConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.saveConfigs[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (s *memoryTools) SaveSaveUserData(ctx context.Context, cfg *SaveUserDataConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cfg
	s.saveConfigs[cfg.AgentID] = &copied
	return nil
}

type memoryIntegrations MemoryStore

func (s *memoryIntegrations) Load(ctx context.Context, id string) (*SheetIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, integration := range s.integrations {
		if integration.ID == id {
			copied := *integration
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryIntegrations) FindByAgentID(ctx context.Context, agentID string) (*SheetIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, integration := range s.integrations {
		if integration.AgentID == agentID {
			copied := *integration
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryIntegrations) List(ctx context.Context) ([]SheetIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SheetIntegration, 0, len(s.integrations))
	for _, integration := range s.integrations {
		out = append(out, *integration)
	}
	return out, nil
}

func (s *memoryIntegrations) Save(ctx context.Context, integration *SheetIntegration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}
	copied := *integration
	for i, existing := range s.integrations {
		if existing.ID == integration.ID {
			s.integrations[i] = &copied
			return nil
		}
	}
	s.integrations = append(s.integrations, &copied)
	return nil
}

func (s *memoryIntegrations) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.integrations {
		if existing.ID == id {
			s.integrations = append(s.integrations[:i], s.integrations[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type memoryDocuments MemoryStore

func (s *memoryDocuments) Load(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *memoryDocuments) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	copied := *doc
	s.documents[doc.ID] = &copied
	return nil
}

func (s *memoryDocuments) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

type memoryHistory MemoryStore

func (s *memoryHistory) Append(ctx context.Context, record *HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	copied := *record
	s.history = append(s.history, &copied)
	return nil
}

func (s *memoryHistory) Recent(ctx context.Context, userID string, limit int) ([]HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []HistoryRecord
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].UserID == userID {
			out = append(out, *s.history[i])
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
