package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
)

// maxEdgeSources caps the provenance list kept per edge.
const maxEdgeSources = 32

// MergeNode creates the node if absent, otherwise merges attrs and refreshes the name.
func (s *Store) MergeNode(
	ctx context.Context, id string, typ domgraph.EntityType, name string, attrs map[string]string,
) (domgraph.Node, error) {
	if id == "" {
		return domgraph.Node{}, errors.New("node id is required")
	}
	var out domgraph.Node
	err := s.update(ctx, func(txn *badger.Txn) error {
		now := s.now().UnixMilli()
		n, found, err := readNode(txn, id)
		if err != nil {
			return err
		}
		if !found {
			n = domgraph.Node{ID: id, Type: typ, Name: name, Created: now}
		}
		if name != "" {
			n.Name = name
		}
		if len(attrs) > 0 {
			if n.Attrs == nil {
				n.Attrs = make(map[string]string, len(attrs))
			}
			maps.Copy(n.Attrs, attrs)
		}
		n.Updated = now
		out = n
		return writeJSON(txn, nodeKey(id), n)
	})
	if err != nil {
		return domgraph.Node{}, fmt.Errorf("merge node %s: %w", id, err)
	}
	return out, nil
}

// MergeEdge creates the (from, type, to) edge if absent. Repeated merges bump the
// weight and append the document to the provenance list. Both endpoints must exist.
func (s *Store) MergeEdge(ctx context.Context, rel domgraph.Relationship) (domgraph.Edge, error) {
	typ := domgraph.NormalizeRelType(rel.Type)
	if rel.SourceID == "" || rel.TargetID == "" || typ == "" {
		return domgraph.Edge{}, errors.New("edge requires source, target and type")
	}

	var out domgraph.Edge
	err := s.update(ctx, func(txn *badger.Txn) error {
		now := s.now().UnixMilli()
		from, ok, err := readNode(txn, rel.SourceID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("source %s: %w", rel.SourceID, domain.ErrEntityNotFound)
		}
		if _, ok, err = readNode(txn, rel.TargetID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("target %s: %w", rel.TargetID, domain.ErrEntityNotFound)
		}

		key := edgeKey(rel.SourceID, typ, rel.TargetID)
		var e domgraph.Edge
		found, err := readJSON(txn, key, &e)
		if err != nil {
			return err
		}
		if !found {
			e = domgraph.Edge{From: rel.SourceID, Type: typ, To: rel.TargetID}
			if err := txn.Set(reverseKey(rel.TargetID, typ, rel.SourceID), nil); err != nil {
				return err //nolint:wrapcheck // wrapped by caller
			}
			if typ == domgraph.RelMentionedIn {
				from.Mentions++
				from.Updated = now
				if err := writeJSON(txn, nodeKey(from.ID), from); err != nil {
					return err
				}
			}
		}
		e.Weight++
		if len(rel.Metadata) > 0 {
			if e.Attrs == nil {
				e.Attrs = make(map[string]string, len(rel.Metadata))
			}
			maps.Copy(e.Attrs, rel.Metadata)
		}
		if rel.DocumentID != "" && !slices.Contains(e.Sources, rel.DocumentID) {
			e.Sources = append(e.Sources, rel.DocumentID)
			if len(e.Sources) > maxEdgeSources {
				e.Sources = e.Sources[len(e.Sources)-maxEdgeSources:]
			}
		}
		e.Updated = now
		out = e
		return writeJSON(txn, key, e)
	})
	if err != nil {
		return domgraph.Edge{}, fmt.Errorf("merge edge %s: %w", rel.Key(), err)
	}
	return out, nil
}

// Node returns a node by id.
func (s *Store) Node(ctx context.Context, id string) (domgraph.Node, error) {
	var n domgraph.Node
	var found bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		n, found, err = readNode(txn, id)
		return err
	})
	if err != nil {
		return domgraph.Node{}, fmt.Errorf("get node %s: %w", id, err)
	}
	if !found {
		return domgraph.Node{}, domain.ErrEntityNotFound
	}
	return n, nil
}

// Nodes returns the nodes that exist among ids, in ids order.
func (s *Store) Nodes(ctx context.Context, ids []string) ([]domgraph.Node, error) {
	out := make([]domgraph.Node, 0, len(ids))
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, id := range ids {
			n, ok, err := readNode(txn, id)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	return out, nil
}

// Edge returns the edge for the triple.
func (s *Store) Edge(ctx context.Context, from, rel, to string) (domgraph.Edge, error) {
	var e domgraph.Edge
	var found bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		found, err = readJSON(txn, edgeKey(from, domgraph.NormalizeRelType(rel), to), &e)
		return err
	})
	if err != nil {
		return domgraph.Edge{}, fmt.Errorf("get edge: %w", err)
	}
	if !found {
		return domgraph.Edge{}, domain.ErrNotFound
	}
	return e, nil
}

// Traverse runs a breadth-first search from start over edges in both directions,
// up to maxDepth hops. Document nodes and MENTIONED_IN edges are not traversed.
// When types is non-empty only those relationship types are followed.
// Results are ordered by depth, then discovery order; start is excluded.
func (s *Store) Traverse(ctx context.Context, start string, maxDepth int, types []string) ([]domgraph.Connection, error) {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		if nt := domgraph.NormalizeRelType(t); nt != "" {
			allowed[nt] = struct{}{}
		}
	}

	var out []domgraph.Connection
	err := s.view(ctx, func(txn *badger.Txn) error {
		if _, ok, err := readNode(txn, start); err != nil {
			return err
		} else if !ok {
			return domain.ErrEntityNotFound
		}

		visited := map[string]struct{}{start: {}}
		frontier := []string{start}
		for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
			var next []string
			for _, id := range frontier {
				for _, nb := range adjacent(txn, id, allowed) {
					if _, seen := visited[nb]; seen {
						continue
					}
					visited[nb] = struct{}{}
					n, ok, err := readNode(txn, nb)
					if err != nil {
						return err
					}
					if !ok || n.Type == domgraph.TypeDocument {
						continue
					}
					out = append(out, domgraph.Connection{Node: n, Depth: depth})
					next = append(next, nb)
				}
			}
			frontier = next
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("traverse %s: %w", start, err)
	}
	return out, nil
}

// Mentions returns ids of documents linked by MENTIONED_IN from any of the
// entities, deduplicated, in entity order.
func (s *Store) Mentions(ctx context.Context, entityIDs []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, id := range entityIDs {
			prefix := []byte(edgePrefix + id + sep + domgraph.RelMentionedIn + sep)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				doc := string(it.Item().Key()[len(prefix):])
				if _, ok := seen[doc]; ok {
					continue
				}
				seen[doc] = struct{}{}
				out = append(out, doc)
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mentions: %w", err)
	}
	return out, nil
}

// SearchNodes returns entity nodes whose name or id contains query, case-insensitively,
// ordered by mention count then id. Empty types matches every entity type.
func (s *Store) SearchNodes(
	ctx context.Context, query string, types []domgraph.EntityType, limit int,
) ([]domgraph.Node, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	wanted := make(map[domgraph.EntityType]struct{}, len(types))
	for _, t := range types {
		wanted[domgraph.NormalizeType(t)] = struct{}{}
	}

	var out []domgraph.Node
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(nodePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var n domgraph.Node
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err //nolint:wrapcheck // wrapped below
			}
			if n.Type == domgraph.TypeDocument {
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[n.Type]; !ok {
					continue
				}
			}
			if q != "" && !strings.Contains(strings.ToLower(n.Name), q) &&
				!strings.Contains(strings.ToLower(n.ID), q) {
				continue
			}
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}

	slices.SortStableFunc(out, func(a, b domgraph.Node) int {
		if a.Mentions != b.Mentions {
			return b.Mentions - a.Mentions
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// adjacent lists neighbor ids of id over outgoing then incoming edges.
func adjacent(txn *badger.Txn, id string, allowed map[string]struct{}) []string {
	var out []string
	for _, prefix := range [][]byte{outPrefix(id), inPrefix(id)} {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			rel, other, ok := splitAdjacency(it.Item().Key(), prefix)
			if !ok || rel == domgraph.RelMentionedIn {
				continue
			}
			if len(allowed) > 0 {
				if _, ok := allowed[rel]; !ok {
					continue
				}
			}
			out = append(out, other)
		}
		it.Close()
	}
	return out
}

func readNode(txn *badger.Txn, id string) (domgraph.Node, bool, error) {
	var n domgraph.Node
	found, err := readJSON(txn, nodeKey(id), &n)
	return n, found, err
}

func readJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err //nolint:wrapcheck // wrapped by caller
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func writeJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data) //nolint:wrapcheck // wrapped by caller
}
