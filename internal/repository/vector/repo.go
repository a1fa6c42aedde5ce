package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecgraph/internal/db"
	"github.com/kailas-cloud/vecgraph/internal/domain"
	domdoc "github.com/kailas-cloud/vecgraph/internal/domain/document"
)

var (
	docPrefix = domain.KeyPrefix + "doc:"
	indexName = domain.KeyPrefix + "docs:idx"
)

// store is the consumer interface for the vector store (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Match is a document returned by similarity search with its cosine similarity.
type Match struct {
	Document domdoc.Document
	Score    float64
}

// Repo stores embedded documents as hashes under an HNSW FT index.
type Repo struct {
	store store
	hnsw  HNSWConfig
}

// New creates a vector repository.
func New(s store, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, hnsw: hnsw}
}

// EnsureIndex creates the document index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(dim, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", indexName, err)
	}
	return nil
}

// UpsertBatch writes all documents in one pipelined round-trip. Keys are content
// hashes, so writing the same content again overwrites.
func (r *Repo) UpsertBatch(ctx context.Context, docs []domdoc.Document) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		if len(docs[i].Vector()) == 0 {
			return fmt.Errorf("document %s has no vector", docs[i].ID())
		}
		items[i] = db.HashSetItem{Key: docKey(docs[i].ID()), Fields: buildHashFields(&docs[i])}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(docs), err)
	}
	return nil
}

// Search returns the topK most similar documents. Vectors are not loaded.
func (r *Repo) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vector,
		K:            topK,
		ReturnFields: payloadFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]Match, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, Match{
			Document: parseHashFields(strings.TrimPrefix(e.Key, docPrefix), e.Fields),
			Score:    e.Score,
		})
	}
	return out, nil
}

// GetMany loads documents by id. Missing ids are skipped; order follows ids.
func (r *Repo) GetMany(ctx context.Context, ids []string) ([]domdoc.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get %d documents: %w", len(ids), err)
	}

	out := make([]domdoc.Document, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out = append(out, parseHashFields(ids[i], m))
	}
	return out, nil
}

func docKey(id string) string {
	return docPrefix + id
}
