package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/orca/internal/adapters/logger"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
)

const (
	// NodeID is the graft node for the definition loader.
	NodeID graft.ID = "adapter.definition_loader"

	// SettingsNodeID is the graft node for the workspace settings.
	SettingsNodeID graft.ID = "adapter.settings"
)

func init() {
	graft.Register(graft.Node[ports.DefinitionLoader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.DefinitionLoader, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewLoader(log), nil
		},
	})

	graft.Register(graft.Node[*Settings]{
		ID:        SettingsNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Settings, error) {
			s, err := LoadSettings(domain.DefaultSettingsPath())
			if err != nil {
				return nil, err
			}
			return &s, nil
		},
	})
}
