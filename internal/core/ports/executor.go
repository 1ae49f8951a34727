// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/orca/internal/core/domain"
)

// Executor runs a single pod invocation.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the command in a fresh work directory with the resolved
	// inputs materialized at their slot paths, and collects every declared
	// output into the store.
	//
	// Command output is streamed to logs. A returned error is treated the same
	// as an outcome with status ExecutionFailed.
	Execute(
		ctx context.Context,
		spec domain.CommandSpec,
		inputs []domain.ResolvedInput,
		logs io.Writer,
	) (domain.ExecutionOutcome, error)
}
