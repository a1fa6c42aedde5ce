// Package crawl models crawl-lifecycle events and the per-crawl job state machine.
package crawl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kailas-cloud/vecgraph/internal/domain"
)

// EventType is the kind of a crawl-lifecycle event.
type EventType string

// Event types emitted by the crawler.
const (
	EventStarted   EventType = "crawl.started"
	EventPage      EventType = "crawl.page"
	EventCompleted EventType = "crawl.completed"
	EventFailed    EventType = "crawl.failed"
	EventCancelled EventType = "crawl.cancelled"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventStarted, EventPage, EventCompleted, EventFailed, EventCancelled:
		return true
	}
	return false
}

// PageMetadata is the crawler-provided metadata of a page.
type PageMetadata struct {
	SourceURL  string `json:"sourceURL"`
	Title      string `json:"title,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// Page is a crawled page. It only lives for the duration of one event.
type Page struct {
	Markdown string       `json:"markdown"`
	HTML     string       `json:"html,omitempty"`
	Metadata PageMetadata `json:"metadata"`
}

// URL returns the canonical source URL of the page.
func (p *Page) URL() string { return CanonicalURL(p.Metadata.SourceURL) }

// OK reports whether the crawler fetched the page successfully.
// A missing status code is treated as success.
func (p *Page) OK() bool {
	sc := p.Metadata.StatusCode
	return sc == 0 || (sc >= 200 && sc < 300)
}

// Event is the inbound crawl event envelope.
type Event struct {
	Type  EventType `json:"type"`
	ID    string    `json:"id"`
	Pages []Page    `json:"-"`
	Error string    `json:"-"`
}

type rawEvent struct {
	Type  EventType       `json:"type"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
}

// ParseEvent decodes and validates a crawl event. The data field may hold a single
// page, an array of pages or null.
func ParseEvent(data []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("decode event: %v: %w", err, domain.ErrInvalidEvent)
	}

	evt := Event{Type: raw.Type, ID: strings.TrimSpace(raw.ID)}
	if raw.Error != nil {
		evt.Error = *raw.Error
	}

	payload := bytes.TrimSpace(raw.Data)
	switch {
	case len(payload) == 0 || bytes.Equal(payload, []byte("null")):
	case payload[0] == '[':
		if err := json.Unmarshal(payload, &evt.Pages); err != nil {
			return Event{}, fmt.Errorf("decode pages: %v: %w", err, domain.ErrInvalidEvent)
		}
	default:
		var p Page
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("decode page: %v: %w", err, domain.ErrInvalidEvent)
		}
		evt.Pages = []Page{p}
	}

	if err := evt.Validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// Validate checks required fields for the event kind.
func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q: %w", e.Type, domain.ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("crawl id is required: %w", domain.ErrInvalidEvent)
	}
	switch e.Type {
	case EventPage:
		if len(e.Pages) != 1 {
			return fmt.Errorf("page event must carry exactly one page, got %d: %w",
				len(e.Pages), domain.ErrInvalidEvent)
		}
	case EventCompleted:
	default:
		return nil
	}
	for i := range e.Pages {
		if e.Pages[i].URL() == "" {
			return fmt.Errorf("page %d: metadata.sourceURL is required: %w", i, domain.ErrInvalidEvent)
		}
	}
	return nil
}

// CanonicalURL trims the URL and drops its fragment so that redeliveries of the same
// page map to one dedup key.
func CanonicalURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		if i := strings.IndexByte(s, '#'); i >= 0 {
			return s[:i]
		}
		return s
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
