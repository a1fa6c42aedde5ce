// Package crawljob persists crawl job state and summaries in SQLite.
package crawljob

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // driver

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
)

const schema = `
CREATE TABLE IF NOT EXISTS crawl_jobs (
	id                TEXT PRIMARY KEY,
	source_url        TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL,
	total             INTEGER NOT NULL DEFAULT 0,
	processed         INTEGER NOT NULL DEFAULT 0,
	skipped_duplicate INTEGER NOT NULL DEFAULT 0,
	skipped_language  INTEGER NOT NULL DEFAULT 0,
	languages         TEXT NOT NULL DEFAULT '{}',
	failed            INTEGER NOT NULL DEFAULT 0,
	error             TEXT NOT NULL DEFAULT '',
	created           INTEGER NOT NULL,
	updated           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crawl_jobs_state ON crawl_jobs(state);
`

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Store is the crawl job ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	s, err := initStore(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory ledger. Every connection to ":memory:" is a
// separate database, so the pool is pinned to one connection.
func OpenMemory() (*Store, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	conn.SetMaxOpenConns(1)
	s, err := initStore(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func initStore(conn *sql.DB) (*Store, error) {
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			return nil, fmt.Errorf("ledger %s: %w", p, err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &Store{db: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ledger ping: %w", err)
	}
	return nil
}

// Save upserts a job snapshot.
func (s *Store) Save(ctx context.Context, snap crawl.Snapshot) error {
	langs, err := json.Marshal(snap.Summary.Languages)
	if err != nil {
		return fmt.Errorf("encode languages: %w", err)
	}
	if snap.Summary.Languages == nil {
		langs = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crawl_jobs (id, source_url, state, total, processed, skipped_duplicate,
			skipped_language, languages, failed, error, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_url = excluded.source_url,
			state = excluded.state,
			total = excluded.total,
			processed = excluded.processed,
			skipped_duplicate = excluded.skipped_duplicate,
			skipped_language = excluded.skipped_language,
			languages = excluded.languages,
			failed = excluded.failed,
			error = excluded.error,
			updated = excluded.updated`,
		snap.ID, snap.SourceURL, string(snap.State),
		snap.Summary.Total, snap.Summary.Processed, snap.Summary.SkippedDuplicate,
		snap.Summary.SkippedLanguage, string(langs), snap.Summary.Failed, snap.Error,
		snap.CreatedAt.UnixMilli(), snap.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save crawl %s: %w", snap.ID, err)
	}
	return nil
}

// Get loads a job. Unknown ids return domain.ErrCrawlNotFound.
func (s *Store) Get(ctx context.Context, id string) (*crawl.Job, error) {
	var (
		sourceURL, state, langs, errMsg string
		sum                             crawl.Summary
		created, updated                int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT source_url, state, total, processed, skipped_duplicate, skipped_language,
			languages, failed, error, created, updated
		FROM crawl_jobs WHERE id = ?`, id,
	).Scan(&sourceURL, &state, &sum.Total, &sum.Processed, &sum.SkippedDuplicate,
		&sum.SkippedLanguage, &langs, &sum.Failed, &errMsg, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("crawl %s: %w", id, domain.ErrCrawlNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get crawl %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(langs), &sum.Languages); err != nil {
		return nil, fmt.Errorf("decode languages for crawl %s: %w", id, err)
	}

	return crawl.Restore(id, sourceURL, crawl.State(state), errMsg, sum,
		time.UnixMilli(created), time.UnixMilli(updated)), nil
}
