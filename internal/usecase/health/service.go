// Package health aggregates component checks for the health endpoint.
package health

import (
	"context"
	"time"
)

// CheckTimeout bounds each component check.
const CheckTimeout = 3 * time.Second

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase  = "database"
	ComponentGraph     = "graph"
	ComponentLedger    = "ledger"
	ComponentEmbedding = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Components are the checked dependencies. Nil members are skipped.
type Components struct {
	Database  Pinger
	Graph     Pinger
	Ledger    Pinger
	Embedding EmbeddingChecker
}

// Service coordinates health checks.
type Service struct {
	checks map[string]func(ctx context.Context) error
}

// New creates a Service.
func New(c Components) *Service {
	checks := make(map[string]func(ctx context.Context) error)
	if c.Database != nil {
		checks[ComponentDatabase] = c.Database.Ping
	}
	if c.Graph != nil {
		checks[ComponentGraph] = c.Graph.Ping
	}
	if c.Ledger != nil {
		checks[ComponentLedger] = c.Ledger.Ping
	}
	if c.Embedding != nil {
		checks[ComponentEmbedding] = c.Embedding.HealthCheck
	}
	return &Service{checks: checks}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy

	for name, check := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
		err := check(cctx)
		cancel()
		if err != nil {
			checks[name] = CheckError
			status = Degraded
			continue
		}
		checks[name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
