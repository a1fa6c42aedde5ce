package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// Source is the crawl provenance of a document.
type Source struct {
	URL      string
	CrawlID  string
	Title    string
	Language string
}

// Document is an embedded unit of page content (immutable value object).
// Its ID is the content hash, so re-upserting the same content overwrites.
type Document struct {
	id        string
	content   string
	source    Source
	vector    []float32
	createdAt time.Time
}

// New validates content and derives the document ID from it.
func New(content string, src Source, now time.Time) (Document, error) {
	if content == "" {
		return Document{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}
	if src.URL == "" {
		return Document{}, fmt.Errorf("source url is required")
	}
	return Document{
		id:        ContentHash(content),
		content:   content,
		source:    src,
		createdAt: now.UTC(),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, content string, src Source, vector []float32, createdAt time.Time) Document {
	return Document{id: id, content: content, source: src, vector: vector, createdAt: createdAt}
}

// ContentHash returns the lowercase hex sha256 of content.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// ID returns the content hash.
func (d *Document) ID() string { return d.id }

// Content returns the document text.
func (d *Document) Content() string { return d.content }

// Source returns the crawl provenance.
func (d *Document) Source() Source { return d.source }

// Vector returns the embedding vector.
func (d *Document) Vector() []float32 { return d.vector }

// CreatedAt returns the ingestion timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// WithVector returns a copy with the given vector set.
func (d *Document) WithVector(v []float32) Document {
	c := *d
	c.vector = v
	return c
}
