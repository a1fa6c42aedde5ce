// Package extraction pulls typed entities and relationships out of text.
package extraction

import (
	"context"

	"github.com/kailas-cloud/vecgraph/internal/domain/graph"
)

// Extractor finds entities and the relationships between them.
// ExtractRelationships is only meaningful with at least two entities.
type Extractor interface {
	ExtractEntities(ctx context.Context, text string) ([]graph.Entity, error)
	ExtractRelationships(ctx context.Context, text string, entities []graph.Entity) ([]graph.Relationship, error)
}
