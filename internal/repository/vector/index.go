package vector

import (
	"github.com/kailas-cloud/vecgraph/internal/db"
)

// HNSWConfig holds HNSW index tuning parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// buildIndex creates the document index: TAG provenance fields, a NUMERIC timestamp
// for recency and an HNSW cosine vector for KNN queries.
func buildIndex(dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(indexName).
		Prefix(docPrefix).
		Tag(fieldCrawlID).
		Tag(fieldLang).
		Tag(fieldURL).
		Numeric(fieldTS).
		Vector(fieldVector, dim, hnsw.M, hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, err //nolint:wrapcheck // caller wraps
	}
	return def, nil
}
