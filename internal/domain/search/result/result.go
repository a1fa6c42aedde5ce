package result

import (
	"time"

	"github.com/kailas-cloud/vecgraph/internal/domain/search/strategy"
)

// Kind is the type of item a hit references.
type Kind string

// Hit kinds.
const (
	KindDocument Kind = "document"
	KindEntity   Kind = "entity"
)

// Hit is a single entry of a hybrid query result.
type Hit struct {
	ID          string
	Kind        Kind
	VectorScore *float64
	GraphDepth  *int
	Score       float64
	Path        strategy.Strategy
	URL         string
	Title       string
	Text        string
	EntityType  string
	Timestamp   time.Time
}

// Key is the identity used for de-duplication across retrieval paths.
func (h *Hit) Key() string { return string(h.Kind) + ":" + h.ID }

// HasVectorScore reports whether the vector path scored this hit.
func (h *Hit) HasVectorScore() bool { return h.VectorScore != nil }

// NewVectorHit creates a document hit from the vector path.
func NewVectorHit(id string, score float64, url, title, text string, ts time.Time) Hit {
	s := score
	return Hit{
		ID: id, Kind: KindDocument, VectorScore: &s, Score: score,
		Path: strategy.Vector, URL: url, Title: title, Text: text, Timestamp: ts,
	}
}

// NewGraphHit creates a hit from the graph path at the given hop distance.
func NewGraphHit(id string, kind Kind, depth int) Hit {
	d := depth
	return Hit{ID: id, Kind: kind, GraphDepth: &d, Path: strategy.Graph}
}

// Merge folds o into h, keeping the vector score and the shallowest depth.
// An item reached by both paths becomes hybrid.
func (h *Hit) Merge(o Hit) {
	h.Path = h.Path.Combine(o.Path)
	if h.VectorScore == nil && o.VectorScore != nil {
		s := *o.VectorScore
		h.VectorScore = &s
		h.Score = s
	}
	if o.GraphDepth != nil && (h.GraphDepth == nil || *o.GraphDepth < *h.GraphDepth) {
		d := *o.GraphDepth
		h.GraphDepth = &d
	}
	if h.URL == "" {
		h.URL = o.URL
	}
	if h.Title == "" {
		h.Title = o.Title
	}
	if h.Text == "" {
		h.Text = o.Text
	}
	if h.EntityType == "" {
		h.EntityType = o.EntityType
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = o.Timestamp
	}
}
