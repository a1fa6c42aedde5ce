// Package api holds the wire types of the HTTP and MCP surfaces.
package api

import (
	"time"

	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
	"github.com/kailas-cloud/vecgraph/internal/domain/search/result"
)

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeInvalidEvent           ErrorResponseCode = "invalid_event"
	ErrorResponseCodeValidationFailed       ErrorResponseCode = "validation_failed"
	ErrorResponseCodeEntityNotFound         ErrorResponseCode = "entity_not_found"
	ErrorResponseCodeCrawlNotFound          ErrorResponseCode = "crawl_not_found"
	ErrorResponseCodeOverloaded             ErrorResponseCode = "overloaded"
	ErrorResponseCodeStoreUnavailable       ErrorResponseCode = "store_unavailable"
	ErrorResponseCodeRateLimited            ErrorResponseCode = "rate_limited"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// AcceptedResponse acknowledges a crawl event.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query       string `json:"query"`
	VectorLimit *int   `json:"vectorLimit,omitempty"`
	GraphDepth  *int   `json:"graphDepth,omitempty"`
	Rerank      *bool  `json:"rerank,omitempty"`
}

// SearchResultItem is one merged hit.
type SearchResultItem struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Score      *float64 `json:"score,omitempty"`
	Depth      *int     `json:"depth,omitempty"`
	Path       string   `json:"path"`
	URL        string   `json:"url,omitempty"`
	Title      string   `json:"title,omitempty"`
	Text       string   `json:"text"`
	EntityType string   `json:"entityType,omitempty"`
	Timestamp  *int64   `json:"timestamp,omitempty"`
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Results  []SearchResultItem `json:"results"`
	Strategy string             `json:"strategy"`
	Entities []string           `json:"entities,omitempty"`
}

// Connection is an entity reached by traversal.
type Connection struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// ConnectionsResponse is the body of GET /entities/{id}/connections.
type ConnectionsResponse struct {
	Connections []Connection `json:"connections"`
}

// EntityItem is an entity search hit.
type EntityItem struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Mentions int    `json:"mentions"`
}

// EntitiesResponse is the body of GET /entities/search.
type EntitiesResponse struct {
	Entities []EntityItem `json:"entities"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SearchResultFromHit converts a domain hit. The score is the reranked score
// when present, otherwise the vector similarity.
func SearchResultFromHit(h *result.Hit) SearchResultItem {
	item := SearchResultItem{
		ID:         h.ID,
		Kind:       string(h.Kind),
		Depth:      h.GraphDepth,
		Path:       string(h.Path),
		URL:        h.URL,
		Title:      h.Title,
		Text:       h.Text,
		EntityType: h.EntityType,
	}
	if h.HasVectorScore() || h.Score != 0 {
		s := h.Score
		item.Score = &s
	}
	item.Timestamp = Millis(h.Timestamp)
	return item
}

// SearchResults converts a hit list, never returning nil.
func SearchResults(hits []result.Hit) []SearchResultItem {
	items := make([]SearchResultItem, len(hits))
	for i := range hits {
		items[i] = SearchResultFromHit(&hits[i])
	}
	return items
}

// Connections converts traversal results, never returning nil.
func Connections(conns []domgraph.Connection) []Connection {
	out := make([]Connection, len(conns))
	for i, c := range conns {
		out[i] = Connection{ID: c.Node.ID, Type: string(c.Node.Type), Name: c.Node.Name, Depth: c.Depth}
	}
	return out
}

// Entities converts entity nodes, never returning nil.
func Entities(nodes []domgraph.Node) []EntityItem {
	out := make([]EntityItem, len(nodes))
	for i, n := range nodes {
		out[i] = EntityItem{ID: n.ID, Type: string(n.Type), Name: n.Name, Mentions: n.Mentions}
	}
	return out
}

// Millis formats a time as unix milliseconds, or nil for the zero time.
func Millis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
