package ports

import (
	"context"

	"go.trai.ch/orca/internal/core/domain"
)

// AnnotationIndex maps the name and version of pods and pipelines to their
// digests.
//
//go:generate mockgen -source=index.go -destination=mocks/mock_index.go -package=mocks
type AnnotationIndex interface {
	// Record stores e. Recording an entry for the same digest again is a
	// no-op; binding a name and version to a second digest fails with
	// domain.ErrAnnotationConflict.
	Record(ctx context.Context, e domain.AnnotationEntry) error

	// Lookup returns the entry for name@version of class kind.
	Lookup(ctx context.Context, kind, name, version string) (domain.AnnotationEntry, bool, error)

	// List returns every entry of class kind, sorted by name and version.
	List(ctx context.Context, kind string) ([]domain.AnnotationEntry, error)
}
