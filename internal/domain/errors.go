package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrCrawlNotFound signals an unknown crawl id.
	ErrCrawlNotFound = errors.New("crawl not found")
	// ErrEntityNotFound signals an entity id absent from the graph.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrInvalidEvent signals a malformed crawl event payload.
	ErrInvalidEvent = errors.New("invalid crawl event")
	// ErrInvalidRequest signals a malformed query request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrOverloaded signals that the ingestion task queue is full.
	ErrOverloaded = errors.New("ingestion overloaded")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStoreUnavailable signals that a backing store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
