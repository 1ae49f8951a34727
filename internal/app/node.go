package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/orca/internal/adapters/cas"     //nolint:depguard // Wired in app layer
	"go.trai.ch/orca/internal/adapters/config"  //nolint:depguard // Wired in app layer
	"go.trai.ch/orca/internal/adapters/logger"  //nolint:depguard // Wired in app layer
	"go.trai.ch/orca/internal/adapters/metrics" //nolint:depguard // Wired in app layer
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/orca/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains the initialized application components the CLI needs.
type Components struct {
	App      *App
	Logger   ports.Logger
	Settings *config.Settings
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			config.SettingsNodeID,
			cas.NodeID,
			scheduler.NodeID,
			logger.NodeID,
			metrics.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			config.SettingsNodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.DefinitionLoader](ctx)
	if err != nil {
		return nil, err
	}

	settings, err := graft.Dep[*config.Settings](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.Store](ctx)
	if err != nil {
		return nil, err
	}

	sched, err := graft.Dep[*scheduler.Scheduler](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	recorder, err := graft.Dep[*metrics.Recorder](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, store, sched, log).
		WithParallelism(settings.Scheduler.Parallelism).
		WithInstrumentation(recorder).
		WithIndex(cas.NewIndex(store)), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	a, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	settings, err := graft.Dep[*config.Settings](ctx)
	if err != nil {
		return nil, err
	}

	if l, ok := log.(*logger.Logger); ok {
		l.SetJSON(settings.Log.JSON)
	}

	return &Components{
		App:      a,
		Logger:   log,
		Settings: settings,
	}, nil
}
