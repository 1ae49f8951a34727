package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/orca/internal/adapters/cas"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/adapters/logger"
	"go.trai.ch/orca/internal/core/ports"
)

// NodeID is the graft node for the pod executor.
const NodeID graft.ID = "adapter.executor"

func init() {
	graft.Register(graft.Node[ports.Executor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.SettingsNodeID, cas.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Executor, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			store, err := graft.Dep[ports.Store](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(settings.Executor, store, log), nil
		},
	})
}

// New creates the executor selected by s.
func New(s config.ExecutorSettings, store ports.Store, log ports.Logger) *Executor {
	var runner Runner = ProcessRunner{}
	if s.Kind == config.ExecutorContainer {
		runner = ContainerRunner{Runtime: s.Runtime}
	}
	return NewExecutor(store,
		WithRunner(runner),
		WithWorkRoot(s.WorkDir),
		WithDefaultTimeout(s.DefaultTimeout),
		WithLogger(log),
	)
}
