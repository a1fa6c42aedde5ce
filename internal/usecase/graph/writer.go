// Package graph writes extracted knowledge into the graph store and answers
// bounded traversal queries.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
)

// Traversal depth bounds.
const (
	DefaultDepth = 2
	MinDepth     = 1
	MaxDepth     = 4
)

// StoreTimeout is the fixed ceiling of every graph store call.
const StoreTimeout = 5 * time.Second

// Page is the extraction output of one document.
type Page struct {
	DocumentID    string
	URL           string
	Title         string
	Entities      []domgraph.Entity
	Relationships []domgraph.Relationship
}

// Writer merges entities and relationships keyed by derived identifiers, so
// concurrent and repeated writes converge.
type Writer struct {
	store   Store
	timeout time.Duration
	errors  *prometheus.CounterVec
	logger  *zap.Logger
}

// NewWriter creates a graph writer. errs is a counter vec with label "op"; it may be nil.
func NewWriter(s Store, errs *prometheus.CounterVec, logger *zap.Logger) *Writer {
	return &Writer{store: s, timeout: StoreTimeout, errors: errs, logger: logger}
}

// ClampDepth maps 0 to DefaultDepth and clamps the rest to [MinDepth, MaxDepth].
func ClampDepth(d int) int {
	switch {
	case d == 0:
		return DefaultDepth
	case d < MinDepth:
		return MinDepth
	case d > MaxDepth:
		return MaxDepth
	}
	return d
}

// UpsertEntity creates the entity node if absent, otherwise refreshes it.
func (w *Writer) UpsertEntity(ctx context.Context, e domgraph.Entity) (domgraph.Node, error) {
	if !e.Valid() {
		return domgraph.Node{}, fmt.Errorf("entity %q: %w", e.Text, domain.ErrInvalidRequest)
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var attrs map[string]string
	if e.Confidence > 0 {
		attrs = map[string]string{"confidence": strconv.FormatFloat(e.Confidence, 'f', 2, 64)}
	}
	n, err := w.store.MergeNode(ctx, e.ID(), domgraph.NormalizeType(e.Type), e.Text, attrs)
	if err != nil {
		w.count("upsert_entity")
		return domgraph.Node{}, fmt.Errorf("upsert entity %s: %w", e.ID(), err)
	}
	return n, nil
}

// UpsertRelationship merges the (source, type, target) edge. Repeats bump its
// weight and record the document as provenance.
func (w *Writer) UpsertRelationship(ctx context.Context, rel domgraph.Relationship) (domgraph.Edge, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	e, err := w.store.MergeEdge(ctx, rel)
	if err != nil {
		w.count("upsert_relationship")
		return domgraph.Edge{}, fmt.Errorf("upsert relationship %s: %w", rel.Key(), err)
	}
	return e, nil
}

// LinkMention merges the document node and a MENTIONED_IN edge from the entity.
func (w *Writer) LinkMention(ctx context.Context, entityID, documentID, url string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var attrs map[string]string
	if url != "" {
		attrs = map[string]string{"url": url}
	}
	if _, err := w.store.MergeNode(ctx, documentID, domgraph.TypeDocument, url, attrs); err != nil {
		w.count("link_mention")
		return fmt.Errorf("merge document %s: %w", documentID, err)
	}
	_, err := w.store.MergeEdge(ctx, domgraph.Relationship{
		SourceID:   entityID,
		TargetID:   documentID,
		Type:       domgraph.RelMentionedIn,
		DocumentID: documentID,
	})
	if err != nil {
		w.count("link_mention")
		return fmt.Errorf("link %s to %s: %w", entityID, documentID, err)
	}
	return nil
}

// WritePage stores everything extracted from one document. It is best effort:
// every write is attempted and the failures are joined.
func (w *Writer) WritePage(ctx context.Context, p Page) error {
	var errs []error
	written := make(map[string]struct{}, len(p.Entities))

	for _, e := range p.Entities {
		if _, err := w.UpsertEntity(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		written[e.ID()] = struct{}{}
		if p.DocumentID == "" {
			continue
		}
		if err := w.LinkMention(ctx, e.ID(), p.DocumentID, p.URL); err != nil {
			errs = append(errs, err)
		}
	}

	for _, r := range p.Relationships {
		_, okSrc := written[r.SourceID]
		_, okTgt := written[r.TargetID]
		if !okSrc || !okTgt {
			continue
		}
		if r.DocumentID == "" {
			r.DocumentID = p.DocumentID
		}
		if _, err := w.UpsertRelationship(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		w.logger.Warn("Graph write incomplete",
			zap.String("document_id", p.DocumentID),
			zap.Int("failures", len(errs)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// FindConnected returns entities reachable from id within maxDepth hops, in
// both edge directions, ordered by depth then discovery.
func (w *Writer) FindConnected(
	ctx context.Context, id string, maxDepth int, types []string,
) ([]domgraph.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	conns, err := w.store.Traverse(ctx, id, ClampDepth(maxDepth), types)
	if err != nil {
		return nil, fmt.Errorf("find connected %s: %w", id, err)
	}
	return conns, nil
}

// Nodes loads entity nodes by id, skipping unknown ids.
func (w *Writer) Nodes(ctx context.Context, ids []string) ([]domgraph.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.store.Nodes(ctx, ids) //nolint:wrapcheck // store errors are already wrapped
}

// Mentions returns ids of documents mentioning any of the entities.
func (w *Writer) Mentions(ctx context.Context, entityIDs []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.store.Mentions(ctx, entityIDs) //nolint:wrapcheck // store errors are already wrapped
}

// SearchEntities finds entity nodes by name.
func (w *Writer) SearchEntities(
	ctx context.Context, query string, types []domgraph.EntityType, limit int,
) ([]domgraph.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.store.SearchNodes(ctx, query, types, limit) //nolint:wrapcheck // store errors are already wrapped
}

func (w *Writer) count(op string) {
	if w.errors != nil {
		w.errors.WithLabelValues(op).Inc()
	}
}
