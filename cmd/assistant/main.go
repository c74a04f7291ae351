// Command assistant runs one conversational agent against its
// configured channels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/assistant-api/assistant-api/pkg/agent"
	"github.com/assistant-api/assistant-api/pkg/channels"
	"github.com/assistant-api/assistant-api/pkg/config"
	"github.com/assistant-api/assistant-api/pkg/databases"
	"github.com/assistant-api/assistant-api/pkg/embedders"
	"github.com/assistant-api/assistant-api/pkg/knowledge"
	"github.com/assistant-api/assistant-api/pkg/llms"
	"github.com/assistant-api/assistant-api/pkg/logger"
	"github.com/assistant-api/assistant-api/pkg/session"
	"github.com/assistant-api/assistant-api/pkg/sheets"
	"github.com/assistant-api/assistant-api/pkg/store"
	"github.com/assistant-api/assistant-api/pkg/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "assistant: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(logger.ParseLevel(cfg.LogLevel), os.Stderr, cfg.LogFormat)
	log := logger.WithComponent("main")

	if cfg.AgentID == "" {
		return fmt.Errorf("AGENT_ID is required")
	}

	st, err := store.NewSQLStore(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	index, err := databases.NewQdrantIndex(&databases.QdrantConfig{
		Host:       cfg.QdrantHost,
		Port:       cfg.QdrantPort,
		APIKey:     cfg.QdrantAPIKey,
		UseTLS:     cfg.QdrantUseTLS,
		Collection: cfg.Collection,
	})
	if err != nil {
		return err
	}
	defer index.Close()

	retriever := knowledge.NewRetriever(embedderFactory(cfg), index, st.Documents())

	if cfg.SeedFile != "" {
		seed, err := store.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		ingest := func(ctx context.Context, doc *store.Document) error {
			credential := ""
			if agent, err := st.Agents().Load(ctx, doc.AgentID); err == nil {
				credential = agent.Credential
			}
			return retriever.Ingest(ctx, doc, credential)
		}
		if err := seed.Apply(context.Background(), st, ingest); err != nil {
			return err
		}
		log.Info("seed applied", "file", cfg.SeedFile)
	}

	resolver := sheets.NewResolver(st.Integrations())
	syncer := sheets.NewSyncer(resolver, st.Tools(), sheetFactory(cfg))

	pipeline := agent.NewPipeline(
		cfg.AgentID,
		st,
		session.NewManager(),
		retriever,
		tools.NewRegistry(st.Tools()),
		tools.NewDispatcher(syncer),
		syncer,
		func(credential string) llms.Provider {
			return llms.NewOpenAIProvider(llms.OpenAIConfig{
				APIKey:     credential,
				Host:       cfg.LLMHost,
				Timeout:    time.Duration(cfg.Timeout) * time.Second,
				MaxRetries: cfg.MaxRetries,
			})
		},
	)

	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		return fmt.Errorf("no channel adapter configured; set TELEGRAM_BOT_TOKEN or GREENAPI_INSTANCE_ID")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, adapter := range adapters {
		wg.Add(1)
		go func(a channels.Adapter) {
			defer wg.Done()
			if err := a.Run(ctx, pipeline); err != nil && ctx.Err() == nil {
				log.Error("adapter stopped", "channel", a.Name(), "error", err)
			}
		}(adapter)
	}

	log.Info("assistant started", "agent_id", cfg.AgentID, "channels", len(adapters))
	wg.Wait()
	return nil
}

// embedderFactory builds embedders per agent credential, falling back
// to the process-level key and then to the degraded random-vector
// embedder when no credential exists at all.
func embedderFactory(cfg *config.Config) knowledge.EmbedderFactory {
	return func(credential string) *embedders.FallbackEmbedder {
		if credential == "" {
			credential = cfg.OpenAIAPIKey
		}
		if credential == "" {
			return embedders.NewFallbackEmbedder(nil, cfg.EmbeddingModel)
		}
		inner, err := embedders.NewOpenAIEmbedder(embedders.OpenAIConfig{
			APIKey:  credential,
			Model:   cfg.EmbeddingModel,
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		})
		if err != nil {
			return embedders.NewFallbackEmbedder(nil, cfg.EmbeddingModel)
		}
		return embedders.NewFallbackEmbedder(inner, cfg.EmbeddingModel)
	}
}

// sheetFactory picks the backend per integration: Google Sheets when
// credentials JSON is present, the local workbook otherwise.
func sheetFactory(cfg *config.Config) sheets.ServiceFactory {
	return func(credentials []byte, spreadsheetID string) (sheets.Service, error) {
		if len(credentials) > 0 && string(credentials) != "null" {
			return sheets.NewGoogleSheets(credentials, spreadsheetID)
		}
		return sheets.NewLocalWorkbook(cfg.WorkbookPath)
	}
}

func buildAdapters(cfg *config.Config) []channels.Adapter {
	var adapters []channels.Adapter
	if cfg.TelegramToken != "" {
		adapters = append(adapters, channels.NewTelegramAdapter(cfg.TelegramToken))
	}
	if cfg.GreenAPIInstance != "" && cfg.GreenAPIToken != "" {
		adapters = append(adapters, channels.NewGreenAPIAdapter(cfg.GreenAPIInstance, cfg.GreenAPIToken, cfg.GreenAPINums))
	}
	return adapters
}
