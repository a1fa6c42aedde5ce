package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

func healthy() Components {
	return Components{
		Database:  &mockPinger{},
		Graph:     &mockPinger{},
		Ledger:    &mockPinger{},
		Embedding: &mockEmbeddingChecker{},
	}
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	r := New(healthy()).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{ComponentDatabase, ComponentGraph, ComponentLedger, ComponentEmbedding} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_ComponentErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Components)
		failed string
	}{
		{"database", func(c *Components) { c.Database = &mockPinger{err: errors.New("conn refused")} }, ComponentDatabase},
		{"graph", func(c *Components) { c.Graph = &mockPinger{err: errors.New("closed")} }, ComponentGraph},
		{"ledger", func(c *Components) { c.Ledger = &mockPinger{err: errors.New("locked")} }, ComponentLedger},
		{"embedding", func(c *Components) { c.Embedding = &mockEmbeddingChecker{err: errors.New("timeout")} }, ComponentEmbedding},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := healthy()
			tc.mutate(&c)
			r := New(c).Check(context.Background())

			if r.Status != Degraded {
				t.Errorf("expected %q, got %q", Degraded, r.Status)
			}
			for name, res := range r.Checks {
				want := CheckOK
				if name == tc.failed {
					want = CheckError
				}
				if res != want {
					t.Errorf("expected %s %q, got %q", name, want, res)
				}
			}
		})
	}
}

func TestCheck_NilComponentsSkipped(t *testing.T) {
	r := New(Components{Database: &mockPinger{}}).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 1 {
		t.Errorf("expected only the database check, got %v", r.Checks)
	}
}

type deadlinePinger struct {
	deadline time.Time
}

func (d *deadlinePinger) Ping(ctx context.Context) error {
	d.deadline, _ = ctx.Deadline()
	return nil
}

func TestCheck_Timeout(t *testing.T) {
	p := &deadlinePinger{}
	New(Components{Database: p}).Check(context.Background())

	if p.deadline.IsZero() {
		t.Fatal("expected a deadline on the check context")
	}
}
