package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestMarkProcessed_Idempotent(t *testing.T) {
	s, ms := newTestStore(t)
	ctx := context.Background()

	first := s.MarkProcessed(ctx, "c1", "https://a.test/x")
	second := s.MarkProcessed(ctx, "c1", "https://a.test/x#frag")

	if !first.Claimed() {
		t.Fatal("first mark must claim")
	}
	if second.Claimed() {
		t.Fatal("second mark of the same canonical URL must not claim")
	}
	if ms.expires[setKey("c1")] != DefaultTTL {
		t.Errorf("expected TTL %v, got %v", DefaultTTL, ms.expires[setKey("c1")])
	}
}

func TestIsProcessed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if s.IsProcessed(ctx, "c1", "https://a.test").Skip() {
		t.Fatal("unmarked URL must not be skipped")
	}
	s.MarkProcessed(ctx, "c1", "https://a.test")
	if !s.IsProcessed(ctx, "c1", "https://a.test").Skip() {
		t.Fatal("marked URL must be skipped")
	}
	if s.IsProcessed(ctx, "c2", "https://a.test").Skip() {
		t.Fatal("sets are per crawl")
	}
}

func TestMarkProcessed_ConcurrentSingleWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var claimed atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkProcessed(ctx, "c1", "https://a.test").Claimed() {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	if claimed.Load() != 1 {
		t.Fatalf("expected exactly one claim, got %d", claimed.Load())
	}
}

func TestFailOpen(t *testing.T) {
	ms := newMemSet()
	ms.err = errors.New("connection refused")
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_dedup_unavailable"}, []string{"op"})
	s := New(ms, 0, counter, zap.NewNop())
	ctx := context.Background()

	check := s.IsProcessed(ctx, "c1", "u")
	if check.Skip() || !check.Unavailable || check.Err == nil {
		t.Errorf("unexpected check: %+v", check)
	}

	mark := s.MarkProcessed(ctx, "c1", "u")
	if !mark.Claimed() || !mark.Unavailable {
		t.Errorf("unavailable mark must claim: %+v", mark)
	}

	count := s.Count(ctx, "c1")
	if !count.Unavailable || count.N != 0 {
		t.Errorf("unexpected count: %+v", count)
	}

	if err := s.Cleanup(ctx, "c1"); err == nil {
		t.Error("expected cleanup error")
	}

	if got := testutil.ToFloat64(counter.WithLabelValues("mark_processed")); got != 1 {
		t.Errorf("expected 1 unavailable mark, got %f", got)
	}
}

func TestCountAndCleanup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.MarkProcessed(ctx, "c1", "a")
	s.MarkProcessed(ctx, "c1", "b")
	s.MarkProcessed(ctx, "c1", "a")

	if c := s.Count(ctx, "c1"); c.N != 2 {
		t.Fatalf("expected 2, got %d", c.N)
	}
	if err := s.Cleanup(ctx, "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := s.Count(ctx, "c1"); c.N != 0 {
		t.Fatalf("expected 0 after cleanup, got %d", c.N)
	}
}
