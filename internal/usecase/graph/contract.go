package graph

import (
	"context"

	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
)

// Store is the graph storage contract.
type Store interface {
	MergeNode(ctx context.Context, id string, typ domgraph.EntityType, name string, attrs map[string]string) (domgraph.Node, error)
	MergeEdge(ctx context.Context, rel domgraph.Relationship) (domgraph.Edge, error)
	Traverse(ctx context.Context, start string, maxDepth int, types []string) ([]domgraph.Connection, error)
	Nodes(ctx context.Context, ids []string) ([]domgraph.Node, error)
	Mentions(ctx context.Context, entityIDs []string) ([]string, error)
	SearchNodes(ctx context.Context, query string, types []domgraph.EntityType, limit int) ([]domgraph.Node, error)
}
