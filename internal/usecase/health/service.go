// Package health aggregates component checks into one report.
package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in reports.
const (
	ComponentSearch        = "search"
	ComponentEmbedding     = "embedding"
	ComponentConversations = "conversations"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks []check
}

// New creates a Service. Nil components are skipped.
func New(search Pinger, embedding EmbeddingChecker, conversations Pinger) *Service {
	s := &Service{}
	if search != nil {
		s.add(ComponentSearch, search.Ping)
	}
	if embedding != nil {
		s.add(ComponentEmbedding, embedding.HealthCheck)
	}
	if conversations != nil {
		s.add(ComponentConversations, conversations.Ping)
	}
	return s
}

func (s *Service) add(name string, fn func(ctx context.Context) error) {
	s.checks = append(s.checks, check{name: name, fn: fn})
}

// Components lists the checked component names, sorted.
func (s *Service) Components() []string {
	out := make([]string, len(s.checks))
	for i, c := range s.checks {
		out[i] = c.name
	}
	sort.Strings(out)
	return out
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	failed := 0

	for _, c := range s.checks {
		if err := c.fn(ctx); err != nil {
			checks[c.name] = CheckError
			failed++
		} else {
			checks[c.name] = CheckOK
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(s.checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
