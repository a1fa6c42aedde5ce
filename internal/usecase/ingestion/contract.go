package ingestion

import (
	"context"

	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
	"github.com/kailas-cloud/vecgraph/internal/domain/document"
	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
	"github.com/kailas-cloud/vecgraph/internal/repository/dedup"
	"github.com/kailas-cloud/vecgraph/internal/usecase/embedding"
	"github.com/kailas-cloud/vecgraph/internal/usecase/graph"
	"github.com/kailas-cloud/vecgraph/internal/usecase/langfilter"
)

// DedupStore tracks processed (crawl, URL) pairs and fails open.
type DedupStore interface {
	IsProcessed(ctx context.Context, crawlID, url string) dedup.Check
	MarkProcessed(ctx context.Context, crawlID, url string) dedup.Mark
	Cleanup(ctx context.Context, crawlID string) error
}

// LanguageFilter decides whether page text is in an allowed language.
type LanguageFilter interface {
	Decide(text string) langfilter.Decision
}

// Normalizer turns a crawled page into document text.
type Normalizer interface {
	Page(p *crawl.Page) string
}

// Embedder batches documents into the vector store.
type Embedder interface {
	Enqueue(ctx context.Context, docs []document.Document) embedding.Report
}

// Extractor finds entities and relationships in text.
type Extractor interface {
	ExtractEntities(ctx context.Context, text string) ([]domgraph.Entity, error)
	ExtractRelationships(ctx context.Context, text string, entities []domgraph.Entity) ([]domgraph.Relationship, error)
}

// GraphWriter stores the extraction output of one document.
type GraphWriter interface {
	WritePage(ctx context.Context, p graph.Page) error
}

// Ledger persists crawl jobs beyond their in-memory lifetime.
type Ledger interface {
	Save(ctx context.Context, snap crawl.Snapshot) error
	Get(ctx context.Context, id string) (*crawl.Job, error)
}
