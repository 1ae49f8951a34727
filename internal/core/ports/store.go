package ports

import (
	"context"

	"go.trai.ch/orca/internal/core/domain"
)

// Store is the content-addressed store. Entries are never overwritten.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type Store interface {
	// Put writes blob under d if absent. Writing an equal blob again is a
	// no-op; a different blob under an existing digest fails with
	// domain.ErrIntegrityViolation.
	Put(ctx context.Context, d domain.Digest, blob []byte) error

	// PutContent stores blob under its own hash and returns the digest.
	PutContent(ctx context.Context, blob []byte) (domain.Digest, error)

	// Get returns the blob stored under d. Absence is reported as ok == false
	// with a nil error.
	Get(ctx context.Context, d domain.Digest) (blob []byte, ok bool, err error)

	// Contains reports whether d is present.
	Contains(ctx context.Context, d domain.Digest) (bool, error)
}

// Backend is the storage primitive a Store is built on.
type Backend interface {
	// PutIfAbsent atomically creates the entry if it does not exist.
	// When the entry already exists, created is false and existing holds the
	// stored bytes.
	PutIfAbsent(ctx context.Context, d domain.Digest, blob []byte) (existing []byte, created bool, err error)

	// Get returns the stored bytes, or ok == false when absent.
	Get(ctx context.Context, d domain.Digest) (blob []byte, ok bool, err error)

	// Contains reports whether d is present.
	Contains(ctx context.Context, d domain.Digest) (bool, error)

	// Close releases the backend's resources.
	Close() error
}

// Entry describes one stored blob.
type Entry struct {
	Digest domain.Digest
	Size   int64
}

// Enumerator is implemented by stores and backends that can list their
// entries.
type Enumerator interface {
	// Entries returns every stored digest with the size of its blob.
	Entries(ctx context.Context) ([]Entry, error)
}
