package cas

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// maxEntryBytes bounds the blobs List reads while looking for index entries.
const maxEntryBytes = 64 << 10

// Index implements ports.AnnotationIndex in a store. Each entry lives under
// domain.AnnotationKey, so the first definition recorded for a name and
// version keeps it.
type Index struct {
	store ports.Store
}

// NewIndex creates an index kept in store.
func NewIndex(store ports.Store) *Index {
	return &Index{store: store}
}

// Record stores e. An existing entry for the same digest is kept as is.
func (x *Index) Record(ctx context.Context, e domain.AnnotationEntry) error {
	blob, err := e.Encode()
	if err != nil {
		return err
	}

	err = x.store.Put(ctx, e.Key(), blob)
	if !errors.Is(err, domain.ErrIntegrityViolation) {
		return err
	}

	existing, ok, lookupErr := x.Lookup(ctx, e.Kind, e.Name, e.Version)
	if lookupErr != nil {
		return lookupErr
	}
	if ok && existing.Digest == e.Digest {
		return nil
	}
	return zerr.With(
		zerr.With(zerr.Wrap(domain.ErrAnnotationConflict, "name and version already recorded"), "label", e.Label()),
		"digest", existing.Digest.String(),
	)
}

// Lookup reads the entry for name@version of class kind.
func (x *Index) Lookup(ctx context.Context, kind, name, version string) (domain.AnnotationEntry, bool, error) {
	blob, ok, err := x.store.Get(ctx, domain.AnnotationKey(kind, name, version))
	if err != nil || !ok {
		return domain.AnnotationEntry{}, false, err
	}
	e, err := domain.DecodeAnnotationEntry(blob)
	if err != nil {
		return domain.AnnotationEntry{}, false, err
	}
	return e, true, nil
}

// List scans the store for entries of class kind. The store must implement
// ports.Enumerator.
func (x *Index) List(ctx context.Context, kind string) ([]domain.AnnotationEntry, error) {
	enum, ok := x.store.(ports.Enumerator)
	if !ok {
		return nil, zerr.Wrap(domain.ErrListUnsupported, "store cannot list entries")
	}
	entries, err := enum.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.AnnotationEntry
	for _, entry := range entries {
		if entry.Size > maxEntryBytes {
			continue
		}
		blob, ok, err := x.store.Get(ctx, entry.Digest)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if class, _ := domain.ClassOf(blob); class != domain.ClassAnnotation {
			continue
		}
		e, err := domain.DecodeAnnotationEntry(blob)
		if err != nil || e.Kind != kind || e.Key() != entry.Digest {
			continue
		}
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b domain.AnnotationEntry) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Version, b.Version))
	})
	return out, nil
}
