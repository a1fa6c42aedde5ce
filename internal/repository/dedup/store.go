// Package dedup tracks which (crawl id, URL) pairs have been processed.
//
// Each crawl owns one Redis set. Every call fails open: when Redis cannot be
// reached the result carries Unavailable and callers process the page rather
// than drop it.
package dedup

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
)

// DefaultTTL bounds the lifetime of an abandoned crawl's set.
const DefaultTTL = time.Hour

var keyPrefix = domain.KeyPrefix + "dedup:"

// store is the consumer interface for the dedup set (ISP).
type store interface {
	SAdd(ctx context.Context, key, member string) (bool, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Check is the result of IsProcessed.
type Check struct {
	Processed   bool
	Unavailable bool
	Err         error
}

// Skip reports whether the page must be skipped. An unavailable store never skips.
func (c Check) Skip() bool { return c.Processed && !c.Unavailable }

// Mark is the result of MarkProcessed.
type Mark struct {
	Added       bool
	Unavailable bool
	Err         error
}

// Claimed reports whether this caller owns the page. An unavailable store always claims.
func (m Mark) Claimed() bool { return m.Added || m.Unavailable }

// Count is the result of Count.
type Count struct {
	N           int64
	Unavailable bool
	Err         error
}

// Store is the Redis-backed dedup store.
type Store struct {
	store       store
	ttl         time.Duration
	unavailable *prometheus.CounterVec
	logger      *zap.Logger
}

// New creates a dedup store. A non-positive ttl falls back to DefaultTTL.
// unavailable is a counter vec with label "op", passed explicitly.
func New(s store, ttl time.Duration, unavailable *prometheus.CounterVec, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{store: s, ttl: ttl, unavailable: unavailable, logger: logger}
}

// IsProcessed reports whether the URL was already marked for the crawl.
func (s *Store) IsProcessed(ctx context.Context, crawlID, url string) Check {
	ok, err := s.store.SIsMember(ctx, setKey(crawlID), crawl.CanonicalURL(url))
	if err != nil {
		s.failOpen("is_processed", crawlID, err)
		return Check{Unavailable: true, Err: err}
	}
	return Check{Processed: ok}
}

// MarkProcessed atomically claims the URL for the crawl. Exactly one of several
// concurrent callers observes Added. The first add arms the set TTL.
func (s *Store) MarkProcessed(ctx context.Context, crawlID, url string) Mark {
	key := setKey(crawlID)
	added, err := s.store.SAdd(ctx, key, crawl.CanonicalURL(url))
	if err != nil {
		s.failOpen("mark_processed", crawlID, err)
		return Mark{Unavailable: true, Err: err}
	}
	if added {
		if err := s.store.Expire(ctx, key, s.ttl, true); err != nil {
			// the claim stands; only self-cleanup is at risk
			s.logger.Warn("Failed to set dedup TTL", zap.String("crawl_id", crawlID), zap.Error(err))
		}
	}
	return Mark{Added: added}
}

// Count returns the number of URLs marked for the crawl.
func (s *Store) Count(ctx context.Context, crawlID string) Count {
	n, err := s.store.SCard(ctx, setKey(crawlID))
	if err != nil {
		s.failOpen("count", crawlID, err)
		return Count{Unavailable: true, Err: err}
	}
	return Count{N: n}
}

// Cleanup removes the crawl's set. Errors are returned; the TTL still bounds the set.
func (s *Store) Cleanup(ctx context.Context, crawlID string) error {
	if err := s.store.Del(ctx, setKey(crawlID)); err != nil {
		s.failOpen("cleanup", crawlID, err)
		return err
	}
	return nil
}

func (s *Store) failOpen(op, crawlID string, err error) {
	if s.unavailable != nil {
		s.unavailable.WithLabelValues(op).Inc()
	}
	s.logger.Warn("Dedup store unavailable, failing open",
		zap.String("op", op), zap.String("crawl_id", crawlID), zap.Error(err))
}

func setKey(crawlID string) string {
	return keyPrefix + crawlID
}
