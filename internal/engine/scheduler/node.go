package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/orca/internal/adapters/cas"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/orca/internal/adapters/metrics" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/orca/internal/adapters/shell"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/orca/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			cas.NodeID,
			metrics.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.Store](ctx)
			if err != nil {
				return nil, err
			}

			recorder, err := graft.Dep[*metrics.Recorder](ctx)
			if err != nil {
				return nil, err
			}

			// The tracer is bound per run, see RunOptions.Tracer.
			return NewScheduler(executor, store, nil, WithMetrics(recorder)), nil
		},
	})
}
