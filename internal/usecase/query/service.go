// Package query answers natural-language queries by merging vector search with
// graph traversal from the entities named in the query.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
	"github.com/kailas-cloud/vecgraph/internal/domain/search/result"
	"github.com/kailas-cloud/vecgraph/internal/domain/search/strategy"
	"github.com/kailas-cloud/vecgraph/internal/metrics"
	"github.com/kailas-cloud/vecgraph/internal/usecase/graph"
)

// Request limits.
const (
	DefaultVectorLimit     = 10
	MaxVectorLimit         = 100
	DefaultMaxGraphResults = 50
	DefaultEntityLimit     = 20
	MaxEntityLimit         = 100
)

// Request is a hybrid query.
type Request struct {
	Query       string
	VectorLimit int
	GraphDepth  int
	Rerank      *bool // nil uses the service default
}

// Response is the merged result list and the strategy that produced it.
type Response struct {
	Results  []result.Hit
	Strategy strategy.Strategy
	Entities []string // ids of query entities found in the graph
}

// Options tunes the service.
type Options struct {
	Rerank          bool
	MaxGraphResults int
}

// Service is the hybrid query engine.
type Service struct {
	embed     Embedder
	vectors   VectorStore
	graph     Graph
	extractor EntityExtractor
	opts      Options
	logger    *zap.Logger
}

// New creates a query service.
func New(embed Embedder, vectors VectorStore, g Graph, extractor EntityExtractor, opts Options, logger *zap.Logger) *Service {
	if opts.MaxGraphResults <= 0 {
		opts.MaxGraphResults = DefaultMaxGraphResults
	}
	return &Service{
		embed:     embed,
		vectors:   vectors,
		graph:     g,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
}

// Search runs the vector and graph paths concurrently and merges their hits.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return Response{}, fmt.Errorf("query is required: %w", domain.ErrInvalidRequest)
	}
	limit := req.VectorLimit
	switch {
	case limit == 0:
		limit = DefaultVectorLimit
	case limit < 0 || limit > MaxVectorLimit:
		return Response{}, fmt.Errorf("vectorLimit must be between 1 and %d: %w", MaxVectorLimit, domain.ErrInvalidRequest)
	}
	depth := graph.ClampDepth(req.GraphDepth)
	rerank := s.opts.Rerank
	if req.Rerank != nil {
		rerank = *req.Rerank
	}

	entities := s.queryEntities(ctx, q)

	var vectorHits, graphHits []result.Hit
	var found []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorHits, err = s.vectorPath(gctx, q, limit)
		return err
	})
	g.Go(func() error {
		graphHits, found = s.graphPath(gctx, entities, depth)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Response{}, err
	}

	merged := merge(vectorHits, graphHits)
	if rerank {
		merged = rerankLexical(q, merged)
	} else {
		sortHits(merged)
	}

	strat := strategy.Of(len(vectorHits) > 0, len(graphHits) > 0)
	metrics.QueryStrategyTotal.WithLabelValues(string(strat)).Inc()
	s.logger.Info("Hybrid query",
		zap.String("strategy", string(strat)),
		zap.Int("entities", len(found)),
		zap.Int("vector_hits", len(vectorHits)),
		zap.Int("graph_hits", len(graphHits)),
		zap.Int("results", len(merged)),
		zap.Bool("rerank", rerank),
	)

	return Response{Results: merged, Strategy: strat, Entities: found}, nil
}

// queryEntities extracts entities from the query. Extraction problems only
// cost the graph path.
func (s *Service) queryEntities(ctx context.Context, q string) []domgraph.Entity {
	if s.extractor == nil {
		return nil
	}
	ents, err := s.extractor.ExtractEntities(ctx, q)
	if err != nil {
		s.logger.Warn("Query entity extraction failed", zap.Error(err))
		return nil
	}
	return ents
}

func (s *Service) vectorPath(ctx context.Context, q string, limit int) ([]result.Hit, error) {
	emb, err := s.embed.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.vectors.Search(ctx, emb.Embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]result.Hit, 0, len(matches))
	for i := range matches {
		d := &matches[i].Document
		src := d.Source()
		hits = append(hits, result.NewVectorHit(d.ID(), matches[i].Score, src.URL, src.Title, d.Content(), d.CreatedAt()))
	}
	return hits, nil
}

// graphPath expands every query entity present in the graph. Graph errors
// degrade the response to vector-only instead of failing it.
func (s *Service) graphPath(ctx context.Context, entities []domgraph.Entity, depth int) ([]result.Hit, []string) {
	var (
		hits    []result.Hit
		found   []string
		docs    = make(map[string]int) // document id -> shallowest depth
		docSeq  []string
		entSeen = make(map[string]struct{})
	)
	addDoc := func(id string, d int) {
		if prev, ok := docs[id]; ok {
			if d < prev {
				docs[id] = d
			}
			return
		}
		docs[id] = d
		docSeq = append(docSeq, id)
	}

	for _, e := range entities {
		id, ok := s.resolve(ctx, e)
		if !ok {
			continue
		}
		found = append(found, id)
		log := s.logger.With(zap.String("entity_id", id))

		mentions, err := s.graph.Mentions(ctx, []string{id})
		if err != nil {
			log.Warn("Loading entity mentions failed", zap.Error(err))
		}
		for _, doc := range mentions {
			addDoc(doc, 1)
		}

		conns, err := s.graph.FindConnected(ctx, id, depth, nil)
		if err != nil {
			log.Warn("Graph expansion failed", zap.Error(err))
			continue
		}
		for _, c := range conns {
			if _, dup := entSeen[c.Node.ID]; !dup {
				entSeen[c.Node.ID] = struct{}{}
				hits = append(hits, entityHit(c))
			}
			mentions, err := s.graph.Mentions(ctx, []string{c.Node.ID})
			if err != nil {
				log.Warn("Loading entity mentions failed", zap.String("connected_id", c.Node.ID), zap.Error(err))
				continue
			}
			for _, doc := range mentions {
				addDoc(doc, c.Depth+1)
			}
		}
	}

	return capGraphHits(hits, s.documentHits(ctx, docSeq, docs), s.opts.MaxGraphResults), found
}

// capGraphHits keeps at most limit graph hits. Entities and documents each get
// half of the budget, and a kind that needs less leaves its share to the other.
func capGraphHits(entities, docs []result.Hit, limit int) []result.Hit {
	docs = docs[:min(len(docs), limit-min(len(entities), limit/2))]
	entities = entities[:min(len(entities), limit-len(docs))]
	return append(entities, docs...)
}

// resolve maps an extracted entity to a graph node id. The derived id is tried
// first; otherwise an exact case-insensitive name match of the same type.
func (s *Service) resolve(ctx context.Context, e domgraph.Entity) (string, bool) {
	if !e.Valid() {
		return "", false
	}
	nodes, err := s.graph.Nodes(ctx, []string{e.ID()})
	if err != nil {
		s.logger.Warn("Entity lookup failed", zap.String("entity_id", e.ID()), zap.Error(err))
		return "", false
	}
	if len(nodes) > 0 {
		return nodes[0].ID, true
	}

	candidates, err := s.graph.SearchEntities(ctx, e.Text, nil, DefaultEntityLimit)
	if err != nil {
		s.logger.Warn("Entity search failed", zap.String("text", e.Text), zap.Error(err))
		return "", false
	}
	name := domgraph.NormalizeText(e.Text)
	for _, n := range candidates {
		if strings.EqualFold(domgraph.NormalizeText(n.Name), name) {
			return n.ID, true
		}
	}
	return "", false
}

// documentHits loads the payload of graph-reached documents. Documents without
// a stored vector record have no display text and are dropped.
func (s *Service) documentHits(ctx context.Context, ids []string, depths map[string]int) []result.Hit {
	if len(ids) == 0 {
		return nil
	}
	docs, err := s.vectors.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn("Loading graph documents failed", zap.Int("count", len(ids)), zap.Error(err))
		return nil
	}
	hits := make([]result.Hit, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		src := d.Source()
		h := result.NewGraphHit(d.ID(), result.KindDocument, depths[d.ID()])
		h.URL = src.URL
		h.Title = src.Title
		h.Text = d.Content()
		h.Timestamp = d.CreatedAt()
		hits = append(hits, h)
	}
	return hits
}

func entityHit(c domgraph.Connection) result.Hit {
	h := result.NewGraphHit(c.Node.ID, result.KindEntity, c.Depth)
	h.Text = c.Node.Name
	h.EntityType = string(c.Node.Type)
	if c.Node.Updated > 0 {
		h.Timestamp = timeFromMillis(c.Node.Updated)
	}
	return h
}

// EntityConnections lists entities connected to id. Unknown ids return
// domain.ErrEntityNotFound.
func (s *Service) EntityConnections(ctx context.Context, id string, depth int, types []string) ([]domgraph.Connection, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("entity id is required: %w", domain.ErrInvalidRequest)
	}
	conns, err := s.graph.FindConnected(ctx, id, depth, types)
	if err != nil {
		if errors.Is(err, domain.ErrEntityNotFound) {
			return nil, fmt.Errorf("entity %s: %w", id, domain.ErrEntityNotFound)
		}
		return nil, fmt.Errorf("entity connections: %w", err)
	}
	return conns, nil
}

// SearchEntities finds entity nodes by name, most mentioned first.
func (s *Service) SearchEntities(ctx context.Context, query string, types []string, limit int) ([]domgraph.Node, error) {
	switch {
	case limit == 0:
		limit = DefaultEntityLimit
	case limit < 0 || limit > MaxEntityLimit:
		return nil, fmt.Errorf("limit must be between 1 and %d: %w", MaxEntityLimit, domain.ErrInvalidRequest)
	}
	var ts []domgraph.EntityType
	for _, t := range types {
		if nt := domgraph.NormalizeType(domgraph.EntityType(t)); nt != "" {
			ts = append(ts, nt)
		}
	}
	nodes, err := s.graph.SearchEntities(ctx, query, ts, limit)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	return nodes, nil
}
