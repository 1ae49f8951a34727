package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for progress output.
// It decouples telemetry collection from presentation, so one event stream
// can drive either linear logs or a progrock tape.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Stop flushes buffered output and stops accepting events.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called once the run's nodes are ordered.
	// nodes: node names in topological order
	// deps: node -> names of the nodes it depends on
	OnPlanEmit(nodes []string, deps map[string][]string)

	// OnTaskStart is called when a node starts resolving.
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a node's command emits output.
	// data may contain partial lines.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a node reaches a terminal state.
	// cached is true when the node's record was already in the store.
	OnTaskComplete(spanID string, endTime time.Time, err error, cached bool)
}
