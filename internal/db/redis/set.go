package redis

import (
	"context"

	"github.com/kailas-cloud/vecgraph/internal/db"
)

// SAdd adds member to the set at key. It returns true when the member was not present,
// so concurrent callers racing on the same member see exactly one winner.
func (s *Store) SAdd(ctx context.Context, key, member string) (bool, error) {
	cmd := s.b().Sadd().Key(key).Member(member).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpSAdd, Err: err}
	}
	return n > 0, nil
}

// SIsMember checks set membership.
func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	cmd := s.b().Sismember().Key(key).Member(member).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpSIsMember, Err: err}
	}
	return n == 1, nil
}

// SCard returns the set cardinality. A missing key has cardinality 0.
func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Scard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSCard, Err: err}
	}
	return n, nil
}
