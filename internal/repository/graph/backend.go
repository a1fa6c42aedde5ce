// Package graph stores the knowledge graph in an embedded BadgerDB.
//
// Nodes and edges are JSON values keyed by derived identifiers. Every write is a
// merge inside a read-write transaction; conflicting transactions are retried so
// concurrent writers racing on the same node or edge converge.
package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

const (
	maxTxnAttempts   = 16
	conflictDelay    = time.Millisecond
	maxConflictDelay = 50 * time.Millisecond
)

// Options configures the Badger store.
type Options struct {
	Path     string
	InMemory bool
}

// Store is the Badger-backed graph store.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
	now    func() time.Time
}

// badgerLogger adapts zap to the badger.Logger interface.
type badgerLogger struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any)   { l.s.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...any) { l.s.Warnf(msg, args...) }
func (l *badgerLogger) Infof(msg string, args ...any)    { l.s.Debugf(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...any)   { l.s.Debugf(msg, args...) }

// Open opens the graph store, creating the directory when needed.
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("graph path is required")
		}
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create graph dir: %w", err)
		}
		bo = badger.DefaultOptions(opts.Path)
	}
	bo.Logger = &badgerLogger{s: logger.Named("badger").Sugar()}
	bo.Compression = options.None

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// OpenMemory opens an in-memory store (tests, replay).
func OpenMemory(logger *zap.Logger) (*Store, error) {
	return Open(Options{InMemory: true}, logger)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close() //nolint:wrapcheck // passthrough
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("graph store is closed")
	}
	return nil
}

// update runs fn in a read-write transaction and retries on conflict.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	delay := conflictDelay
	var err error
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context error
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err //nolint:wrapcheck // callers wrap
		}
		s.logger.Debug("Graph transaction conflict, retrying", zap.Int("attempt", attempt))

		timer := time.NewTimer(delay + rand.N(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err() //nolint:wrapcheck // context error
		case <-timer.C:
		}
		delay = min(delay*2, maxConflictDelay)
	}
	return fmt.Errorf("after %d attempts: %w", maxTxnAttempts, err)
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context error
	}
	return s.db.View(fn) //nolint:wrapcheck // callers wrap
}
