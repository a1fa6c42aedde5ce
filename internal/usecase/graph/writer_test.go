package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
	graphrepo "github.com/kailas-cloud/vecgraph/internal/repository/graph"
)

type mockStore struct {
	mergeNodeFn func(ctx context.Context, id string, typ domgraph.EntityType, name string, attrs map[string]string) (domgraph.Node, error)
	mergeEdgeFn func(ctx context.Context, rel domgraph.Relationship) (domgraph.Edge, error)
	traverseFn  func(ctx context.Context, start string, maxDepth int, types []string) ([]domgraph.Connection, error)
}

func (m *mockStore) MergeNode(
	ctx context.Context, id string, typ domgraph.EntityType, name string, attrs map[string]string,
) (domgraph.Node, error) {
	if m.mergeNodeFn != nil {
		return m.mergeNodeFn(ctx, id, typ, name, attrs)
	}
	return domgraph.Node{ID: id, Type: typ, Name: name}, nil
}

func (m *mockStore) MergeEdge(ctx context.Context, rel domgraph.Relationship) (domgraph.Edge, error) {
	if m.mergeEdgeFn != nil {
		return m.mergeEdgeFn(ctx, rel)
	}
	return domgraph.Edge{From: rel.SourceID, To: rel.TargetID, Type: rel.Type, Weight: 1}, nil
}

func (m *mockStore) Traverse(ctx context.Context, start string, maxDepth int, types []string) ([]domgraph.Connection, error) {
	if m.traverseFn != nil {
		return m.traverseFn(ctx, start, maxDepth, types)
	}
	return nil, nil
}

func (m *mockStore) Nodes(context.Context, []string) ([]domgraph.Node, error)  { return nil, nil }
func (m *mockStore) Mentions(context.Context, []string) ([]string, error)       { return nil, nil }
func (m *mockStore) SearchNodes(context.Context, string, []domgraph.EntityType, int) ([]domgraph.Node, error) {
	return nil, nil
}

func TestClampDepth(t *testing.T) {
	for in, want := range map[int]int{0: 2, -3: 1, 1: 1, 3: 3, 4: 4, 9: 4} {
		if got := ClampDepth(in); got != want {
			t.Errorf("ClampDepth(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestFindConnected_ClampsDepth(t *testing.T) {
	var got int
	s := &mockStore{traverseFn: func(_ context.Context, _ string, d int, _ []string) ([]domgraph.Connection, error) {
		got = d
		return nil, nil
	}}
	w := NewWriter(s, nil, zap.NewNop())

	if _, err := w.FindConnected(context.Background(), "PERSON_Jane", 10, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != MaxDepth {
		t.Errorf("expected depth %d, got %d", MaxDepth, got)
	}
}

func TestStoreCallsHaveDeadline(t *testing.T) {
	s := &mockStore{mergeNodeFn: func(ctx context.Context, id string, _ domgraph.EntityType, _ string, _ map[string]string) (domgraph.Node, error) {
		dl, ok := ctx.Deadline()
		if !ok || time.Until(dl) > StoreTimeout {
			t.Errorf("expected deadline within %s", StoreTimeout)
		}
		return domgraph.Node{ID: id}, nil
	}}
	w := NewWriter(s, nil, zap.NewNop())

	if _, err := w.UpsertEntity(context.Background(), domgraph.Entity{Type: "PERSON", Text: "Jane"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertEntity_Invalid(t *testing.T) {
	w := NewWriter(&mockStore{}, nil, zap.NewNop())

	_, err := w.UpsertEntity(context.Background(), domgraph.Entity{Type: "PERSON", Text: "??"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestUpsertEntity_UsesDerivedID(t *testing.T) {
	var gotID string
	var gotType domgraph.EntityType
	s := &mockStore{mergeNodeFn: func(_ context.Context, id string, typ domgraph.EntityType, _ string, attrs map[string]string) (domgraph.Node, error) {
		gotID, gotType = id, typ
		if attrs["confidence"] != "0.75" {
			t.Errorf("unexpected attrs: %v", attrs)
		}
		return domgraph.Node{ID: id}, nil
	}}
	w := NewWriter(s, nil, zap.NewNop())

	_, _ = w.UpsertEntity(context.Background(), domgraph.Entity{Type: "person", Text: " Jane  Doe ", Confidence: 0.75})
	if gotID != "PERSON_Jane_Doe" || gotType != domgraph.TypePerson {
		t.Errorf("unexpected merge: %s %s", gotID, gotType)
	}
}

func TestWritePage_BestEffort(t *testing.T) {
	var edges []domgraph.Relationship
	s := &mockStore{
		mergeNodeFn: func(_ context.Context, id string, typ domgraph.EntityType, name string, _ map[string]string) (domgraph.Node, error) {
			if id == "ORG_Broken" {
				return domgraph.Node{}, errors.New("disk full")
			}
			return domgraph.Node{ID: id, Type: typ, Name: name}, nil
		},
		mergeEdgeFn: func(_ context.Context, rel domgraph.Relationship) (domgraph.Edge, error) {
			edges = append(edges, rel)
			return domgraph.Edge{}, nil
		},
	}
	w := NewWriter(s, nil, zap.NewNop())

	err := w.WritePage(context.Background(), Page{
		DocumentID: "doc1",
		URL:        "https://a.test/1",
		Entities: []domgraph.Entity{
			{Type: "PERSON", Text: "Jane"},
			{Type: "ORG", Text: "Broken"},
			{Type: "ORG", Text: "Acme"},
		},
		Relationships: []domgraph.Relationship{
			{SourceID: "PERSON_Jane", TargetID: "ORG_Acme", Type: "WORKS_AT"},
			{SourceID: "PERSON_Jane", TargetID: "ORG_Broken", Type: "WORKS_AT"},
		},
	})
	if err == nil {
		t.Fatal("expected joined error")
	}

	var mentions, works int
	for _, e := range edges {
		switch e.Type {
		case domgraph.RelMentionedIn:
			mentions++
		case "WORKS_AT":
			works++
			if e.DocumentID != "doc1" {
				t.Errorf("expected provenance doc1, got %q", e.DocumentID)
			}
		}
	}
	if mentions != 2 || works != 1 {
		t.Errorf("expected 2 mentions and 1 relationship, got %d and %d", mentions, works)
	}
}

func TestWriter_JaneAcmeSpringfield(t *testing.T) {
	store, err := graphrepo.OpenMemory(zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	w := NewWriter(store, nil, zap.NewNop())
	ctx := context.Background()

	jane := domgraph.Entity{Type: domgraph.TypePerson, Text: "Jane Doe"}
	acme := domgraph.Entity{Type: domgraph.TypeOrg, Text: "Acme"}
	spring := domgraph.Entity{Type: domgraph.TypeLocation, Text: "Springfield"}
	err = w.WritePage(ctx, Page{
		DocumentID: "doc1",
		Entities:   []domgraph.Entity{jane, acme, spring},
		Relationships: []domgraph.Relationship{
			{SourceID: jane.ID(), TargetID: acme.ID(), Type: domgraph.RelWorksAt},
			{SourceID: acme.ID(), TargetID: spring.ID(), Type: domgraph.RelLocatedIn},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := func(depth int) []string {
		conns, err := w.FindConnected(ctx, "PERSON_Jane_Doe", depth, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := make([]string, len(conns))
		for i, c := range conns {
			out[i] = c.Node.Name
		}
		return out
	}

	if got := names(1); len(got) != 1 || got[0] != "Acme" {
		t.Errorf("depth 1: expected [Acme], got %v", got)
	}
	if got := names(2); len(got) != 2 || got[0] != "Acme" || got[1] != "Springfield" {
		t.Errorf("depth 2: expected [Acme Springfield], got %v", got)
	}

	_, err = w.FindConnected(ctx, "PERSON_Nobody", 2, nil)
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}
