package extraction

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain/graph"
)

// Safe wraps an extractor so that errors and panics become zero results.
// Invalid entities and relationships with empty endpoints are dropped.
type Safe struct {
	inner  Extractor
	logger *zap.Logger
}

// NewSafe wraps inner.
func NewSafe(inner Extractor, logger *zap.Logger) *Safe {
	return &Safe{inner: inner, logger: logger}
}

// ExtractEntities never fails.
func (s *Safe) ExtractEntities(ctx context.Context, text string) (entities []graph.Entity, _ error) {
	defer s.guard("entities", func() { entities = nil })

	got, err := s.inner.ExtractEntities(ctx, text)
	if err != nil {
		s.logger.Warn("Entity extraction failed", zap.Error(err))
		return nil, nil
	}
	out := got[:0:0]
	seen := make(map[string]struct{}, len(got))
	for _, e := range got {
		if !e.Valid() {
			continue
		}
		if _, dup := seen[e.ID()]; dup {
			continue
		}
		seen[e.ID()] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// ExtractRelationships never fails and returns nothing for fewer than two entities.
func (s *Safe) ExtractRelationships(
	ctx context.Context, text string, entities []graph.Entity,
) (rels []graph.Relationship, _ error) {
	if len(entities) < 2 {
		return nil, nil
	}
	defer s.guard("relationships", func() { rels = nil })

	got, err := s.inner.ExtractRelationships(ctx, text, entities)
	if err != nil {
		s.logger.Warn("Relationship extraction failed", zap.Error(err))
		return nil, nil
	}
	out := got[:0:0]
	for _, r := range got {
		if r.SourceID == "" || r.TargetID == "" || graph.NormalizeRelType(r.Type) == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Safe) guard(stage string, reset func()) {
	if p := recover(); p != nil {
		s.logger.Error("Extractor panicked",
			zap.String("stage", stage),
			zap.String("panic", fmt.Sprint(p)),
		)
		reset()
	}
}
