package ports

import "time"

// Node outcomes reported to Metrics.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeExecuted = "executed"
	OutcomeAborted  = "aborted"
)

// Metrics records run and store statistics.
//
//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// NodeFinished counts a node that reached a terminal state.
	NodeFinished(outcome string)
	// ExecutionObserved records one executor invocation.
	ExecutionObserved(status string, duration time.Duration)
	// StoreOperation counts one store call. result is "ok", "miss", "conflict" or "error".
	StoreOperation(op, result string)
}
