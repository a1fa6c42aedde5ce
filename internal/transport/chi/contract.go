package chi

import (
	"context"

	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
	healthuc "github.com/kailas-cloud/vecgraph/internal/usecase/health"
	"github.com/kailas-cloud/vecgraph/internal/usecase/query"
)

// Ingestor accepts crawl events and reports crawl jobs.
type Ingestor interface {
	HandleEvent(ctx context.Context, evt crawl.Event) error
	Job(ctx context.Context, id string) (crawl.Snapshot, error)
}

// Searcher answers hybrid queries and entity lookups.
type Searcher interface {
	Search(ctx context.Context, req query.Request) (query.Response, error)
	EntityConnections(ctx context.Context, id string, depth int, types []string) ([]domgraph.Connection, error)
	SearchEntities(ctx context.Context, q string, types []string, limit int) ([]domgraph.Node, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
