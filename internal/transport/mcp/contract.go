package mcp

import (
	"context"

	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
	"github.com/kailas-cloud/vecgraph/internal/usecase/query"
)

// Searcher is the query surface exposed as tools.
type Searcher interface {
	Search(ctx context.Context, req query.Request) (query.Response, error)
	EntityConnections(ctx context.Context, id string, depth int, types []string) ([]domgraph.Connection, error)
	SearchEntities(ctx context.Context, q string, types []string, limit int) ([]domgraph.Node, error)
}
