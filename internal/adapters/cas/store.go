// Package cas implements the content-addressed store: an integrity layer
// over pluggable backends, plus the in-memory and filesystem backends.
package cas

import (
	"bytes"
	"context"
	"errors"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.Store on top of a ports.Backend. It never
// overwrites an entry: re-writing equal bytes succeeds, different bytes under
// an existing digest fail with domain.ErrIntegrityViolation.
type Store struct {
	backend ports.Backend
	metrics ports.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records every store operation on m.
func WithMetrics(m ports.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a Store over backend.
func NewStore(backend ports.Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() ports.Backend {
	return s.backend
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Put writes blob under d if absent.
func (s *Store) Put(ctx context.Context, d domain.Digest, blob []byte) error {
	existing, created, err := s.backend.PutIfAbsent(ctx, d, blob)
	if err != nil {
		s.observe("put", "error")
		return zerr.With(ioError(err, "put"), "digest", d.String())
	}
	if created {
		s.observe("put", "ok")
		return nil
	}
	if !bytes.Equal(existing, blob) {
		s.observe("put", "conflict")
		return zerr.With(
			zerr.Wrap(domain.ErrIntegrityViolation, "different content already stored under digest"),
			"digest", d.String(),
		)
	}
	s.observe("put", "ok")
	return nil
}

// PutContent stores blob under its own hash.
func (s *Store) PutContent(ctx context.Context, blob []byte) (domain.Digest, error) {
	d := domain.Hash(blob)
	if err := s.Put(ctx, d, blob); err != nil {
		return domain.Digest{}, err
	}
	return d, nil
}

// Get returns the blob under d.
func (s *Store) Get(ctx context.Context, d domain.Digest) ([]byte, bool, error) {
	blob, ok, err := s.backend.Get(ctx, d)
	switch {
	case err != nil:
		s.observe("get", "error")
		return nil, false, zerr.With(ioError(err, "get"), "digest", d.String())
	case !ok:
		s.observe("get", "miss")
		return nil, false, nil
	}
	s.observe("get", "ok")
	return blob, true, nil
}

// Contains reports whether d is present.
func (s *Store) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	ok, err := s.backend.Contains(ctx, d)
	switch {
	case err != nil:
		s.observe("contains", "error")
		return false, zerr.With(ioError(err, "contains"), "digest", d.String())
	case !ok:
		s.observe("contains", "miss")
		return false, nil
	}
	s.observe("contains", "ok")
	return true, nil
}

// Entries lists the backend's entries. Backends that cannot list fail with
// domain.ErrListUnsupported.
func (s *Store) Entries(ctx context.Context) ([]ports.Entry, error) {
	enum, ok := s.backend.(ports.Enumerator)
	if !ok {
		return nil, zerr.Wrap(domain.ErrListUnsupported, "backend cannot list entries")
	}
	entries, err := enum.Entries(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrListUnsupported) {
			return nil, err
		}
		s.observe("list", "error")
		return nil, ioError(err, "list")
	}
	s.observe("list", "ok")
	return entries, nil
}

func (s *Store) observe(op, result string) {
	if s.metrics != nil {
		s.metrics.StoreOperation(op, result)
	}
}

// ioError classifies a backend failure as domain.ErrStoreIO unless the
// backend already classified it.
func ioError(err error, op string) error {
	if errors.Is(err, domain.ErrStoreIO) || errors.Is(err, domain.ErrIntegrityViolation) {
		return err
	}
	return zerr.With(zerr.Wrap(errors.Join(domain.ErrStoreIO, err), "store "+op+" failed"), "op", op)
}
