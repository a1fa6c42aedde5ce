package query

import (
	"context"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	domdoc "github.com/kailas-cloud/vecgraph/internal/domain/document"
	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
	"github.com/kailas-cloud/vecgraph/internal/repository/vector"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore runs similarity search and loads document payloads.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, topK int) ([]vector.Match, error)
	GetMany(ctx context.Context, ids []string) ([]domdoc.Document, error)
}

// Graph reads the entity graph.
type Graph interface {
	FindConnected(ctx context.Context, id string, maxDepth int, types []string) ([]domgraph.Connection, error)
	Nodes(ctx context.Context, ids []string) ([]domgraph.Node, error)
	Mentions(ctx context.Context, entityIDs []string) ([]string, error)
	SearchEntities(ctx context.Context, query string, types []domgraph.EntityType, limit int) ([]domgraph.Node, error)
}

// EntityExtractor finds entities mentioned in the query.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]domgraph.Entity, error)
}
