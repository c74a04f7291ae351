package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the service-level settings. Per-agent behavior (model,
// temperature, instructions, tool toggle) lives in the document store
// and is reloaded on every message.
type Config struct {
	// Document store. Driver is "postgres" or "sqlite3".
	StoreDriver string
	StoreDSN    string

	// Qdrant vector index.
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantUseTLS bool
	Collection   string

	// Chat completion / embedding endpoints. Overridable for proxies
	// and tests; the API key itself comes from the agent record.
	LLMHost        string
	EmbeddingModel string

	// Timeout in seconds for outbound HTTP calls.
	Timeout    int
	MaxRetries int

	// Optional YAML seed file applied to the store on startup.
	SeedFile string

	// The agent this process serves.
	AgentID string

	// Embedding credential. Empty enables the random-vector fallback.
	OpenAIAPIKey string

	// Channel credentials. An empty token disables that adapter.
	TelegramToken    string
	GreenAPIInstance string
	GreenAPIToken    string
	GreenAPINums     int

	// Workbook file used for integrations without credentials JSON.
	WorkbookPath string

	LogLevel  string
	LogFormat string
}

// FromEnv builds a Config from the process environment.
func FromEnv() *Config {
	cfg := &Config{
		StoreDriver:      os.Getenv("STORE_DRIVER"),
		StoreDSN:         os.Getenv("STORE_DSN"),
		QdrantHost:       os.Getenv("QDRANT_HOST"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		Collection:       os.Getenv("VECTOR_COLLECTION_NAME"),
		LLMHost:          os.Getenv("LLM_HOST"),
		EmbeddingModel:   os.Getenv("EMBEDDING_MODEL"),
		SeedFile:         os.Getenv("SEED_FILE"),
		AgentID:          os.Getenv("AGENT_ID"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		GreenAPIInstance: os.Getenv("GREENAPI_INSTANCE_ID"),
		GreenAPIToken:    os.Getenv("GREENAPI_API_TOKEN"),
		WorkbookPath:     os.Getenv("WORKBOOK_PATH"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        os.Getenv("LOG_FORMAT"),
	}
	cfg.GreenAPINums, _ = strconv.Atoi(os.Getenv("GREENAPI_NUMS"))
	cfg.QdrantPort, _ = strconv.Atoi(os.Getenv("QDRANT_PORT"))
	cfg.QdrantUseTLS, _ = strconv.ParseBool(os.Getenv("QDRANT_USE_TLS"))
	cfg.Timeout, _ = strconv.Atoi(os.Getenv("HTTP_TIMEOUT"))
	cfg.MaxRetries, _ = strconv.Atoi(os.Getenv("HTTP_MAX_RETRIES"))
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields with working local defaults.
func (c *Config) SetDefaults() {
	if c.StoreDriver == "" {
		c.StoreDriver = "sqlite3"
	}
	if c.StoreDSN == "" {
		c.StoreDSN = "assistant.db"
	}
	if c.QdrantHost == "" {
		c.QdrantHost = "localhost"
	}
	if c.QdrantPort == 0 {
		c.QdrantPort = 6334
	}
	if c.Collection == "" {
		c.Collection = "knowledge_base"
	}
	if c.LLMHost == "" {
		c.LLMHost = "https://api.openai.com/v1"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-ada-002"
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.WorkbookPath == "" {
		c.WorkbookPath = "assistant.xlsx"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.StoreDriver)
	}
	if c.QdrantPort < 0 || c.QdrantPort > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.QdrantPort)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %d", c.Timeout)
	}
	return nil
}
