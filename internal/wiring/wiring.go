// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/orca/internal/adapters/cas"
	_ "go.trai.ch/orca/internal/adapters/config"
	_ "go.trai.ch/orca/internal/adapters/logger"
	_ "go.trai.ch/orca/internal/adapters/metrics"
	_ "go.trai.ch/orca/internal/adapters/shell"
	// Register app and engine nodes.
	_ "go.trai.ch/orca/internal/app"
	_ "go.trai.ch/orca/internal/engine/scheduler"
)
