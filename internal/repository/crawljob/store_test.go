package crawljob

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	j := crawl.NewJob("c1", now)
	j.SourceURL = "https://a.test"
	j.See("https://a.test/1")
	j.See("https://a.test/2")
	j.RecordProcessed()
	j.RecordLanguageSkip("https://a.test/2", "es")
	require.True(t, j.Transition(crawl.EventCompleted, now.Add(time.Second)))

	require.NoError(t, s.Save(ctx, j.Snapshot()))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, crawl.StateCompleted, got.State)
	assert.True(t, got.Finished)
	assert.Equal(t, "https://a.test", got.SourceURL)
	assert.Equal(t, now.UnixMilli(), got.CreatedAt.UnixMilli())
	assert.Equal(t, now.Add(time.Second).UnixMilli(), got.UpdatedAt.UnixMilli())

	sum := got.Summary()
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.SkippedLanguage)
	assert.Equal(t, map[string]int{"es": 1}, sum.Languages)
}

func TestSave_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	j := crawl.NewJob("c1", now)
	require.NoError(t, s.Save(ctx, j.Snapshot()))

	j.Transition(crawl.EventFailed, now)
	j.Error = "crawler timeout"
	j.RecordFailed("https://a.test/1")
	require.NoError(t, s.Save(ctx, j.Snapshot()))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, crawl.StateFailed, got.State)
	assert.Equal(t, "crawler timeout", got.Error)
	assert.Equal(t, 1, got.Summary().Failed)
}

func TestGet_Unknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrCrawlNotFound)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Save(context.Background(), crawl.NewJob("c1", time.Now()).Snapshot()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, crawl.StateStarted, got.State)
}
