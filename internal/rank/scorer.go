// Package rank filters the stored corpus against a caller's search
// criteria through a pluggable relevance capability.
package rank

import (
	"context"

	"jobfinder-engine/internal/domain"
)

// Request is what a capability is asked to rank.
type Request struct {
	Jobs     []domain.Job
	Criteria domain.SearchCriteria
}

// Capability decides which jobs are relevant. It answers with a JSON
// document shaped {"relevant_jobs":[...]}; the Filter owns validation.
type Capability interface {
	Name() string
	Score(ctx context.Context, req Request) ([]byte, error)
}
