// Package knowledge retrieves relevant documents for a user message and
// renders them as grounding context for the completion request.
package knowledge

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/assistant-api/assistant-api/pkg/databases"
	"github.com/assistant-api/assistant-api/pkg/embedders"
	"github.com/assistant-api/assistant-api/pkg/logger"
	"github.com/assistant-api/assistant-api/pkg/store"
)

// Retrieval status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusEmpty    = "empty"
)

// Hit is one resolved knowledge-base document.
type Hit struct {
	ID      string
	Title   string
	Content string
	Score   float32
}

// Result is the outcome of one retrieval pass. Status is degraded when
// the query was embedded with the random fallback vector, so the hits
// are effectively arbitrary but the pipeline still proceeds.
type Result struct {
	Hits   []Hit
	Status string
}

// EmbedderFactory builds an embedder for one agent credential. Called
// per operation so credential edits apply immediately, the same way
// the completion provider is built per message.
type EmbedderFactory func(credential string) *embedders.FallbackEmbedder

// Retriever embeds a query, searches the vector index scoped to one
// agent, and resolves hits back to stored documents.
type Retriever struct {
	embedders EmbedderFactory
	index     databases.VectorIndex
	docs      store.DocumentStore
	log       *slog.Logger
}

// NewRetriever creates a retriever over the given index and document store.
func NewRetriever(embedders EmbedderFactory, index databases.VectorIndex, docs store.DocumentStore) *Retriever {
	return &Retriever{
		embedders: embedders,
		index:     index,
		docs:      docs,
		log:       logger.WithComponent("knowledge"),
	}
}

// Retrieve returns up to limit documents for the agent ranked by
// similarity to the query, embedding with the agent's credential.
// Retrieval never fails the pipeline: index errors and unresolvable
// hits degrade to an empty result.
func (r *Retriever) Retrieve(ctx context.Context, agentID, credential, query string, limit int) *Result {
	if limit <= 0 {
		limit = 3
	}

	vector, degraded, _ := r.embedders(credential).Embed(ctx, query)

	hits, err := r.index.Search(ctx, vector, limit, map[string]string{"agent_id": agentID})
	if err != nil {
		r.log.Warn("knowledge search failed, continuing without context",
			"agent_id", agentID, "error", err)
		return &Result{Status: StatusEmpty}
	}

	result := &Result{Status: StatusOK}
	if degraded {
		result.Status = StatusDegraded
	}

	for _, hit := range hits {
		docID, ok := hit.Payload["document_id"].(string)
		if !ok || docID == "" {
			continue
		}
		doc, err := r.docs.Load(ctx, docID)
		if err != nil {
			// Index entry outlived its document; skip it.
			r.log.Debug("skipping stale index hit", "document_id", docID)
			continue
		}
		result.Hits = append(result.Hits, Hit{
			ID:      doc.ID,
			Title:   doc.Title,
			Content: doc.Content,
			Score:   hit.Score,
		})
	}

	if len(result.Hits) == 0 && result.Status == StatusOK {
		result.Status = StatusEmpty
	}
	return result
}

// Ingest stores a document and indexes its content under the owning
// agent, embedding with that agent's credential. The point id is
// derived from the document id so re-ingesting replaces the previous
// vector.
func (r *Retriever) Ingest(ctx context.Context, doc *store.Document, credential string) error {
	if err := r.docs.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	vector, degraded, _ := r.embedders(credential).Embed(ctx, doc.Content)
	if degraded {
		r.log.Warn("indexing document with fallback embedding", "document_id", doc.ID)
	}

	payload := map[string]interface{}{
		"document_id": doc.ID,
		"agent_id":    doc.AgentID,
		"title":       doc.Title,
	}
	if err := r.index.Upsert(ctx, PointID(doc.ID), vector, payload); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	return nil
}

// PointID maps a document id to a stable integer point id.
func PointID(docID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(docID))
	return h.Sum64()
}

// FormatContext renders retrieved documents as a context block to
// prepend to the agent instructions. Returns "" when there is nothing
// to ground on.
func FormatContext(result *Result) string {
	if result == nil || len(result.Hits) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("### Relevant information from knowledge base:")
	for i, hit := range result.Hits {
		fmt.Fprintf(&sb, "\n\n## %d. %s\n%s", i+1, hit.Title, hit.Content)
	}
	return sb.String()
}
