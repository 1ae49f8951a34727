// Package castest holds the behavior every ports.Backend must share, run
// against a fresh backend from each implementation's tests.
package castest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/cas"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
)

// RunBackendTests exercises newBackend through a cas.Store. Keys are
// namespaced per call so shared databases can be reused between runs.
func RunBackendTests(t *testing.T, newBackend func(t *testing.T) ports.Backend) {
	t.Helper()

	ns := uuid.NewString()
	key := func(s string) domain.Digest { return domain.Hash([]byte(ns + "/" + s)) }
	content := func(s string) []byte { return []byte(ns + "/" + s) }

	t.Run("absent", func(t *testing.T) {
		store := cas.NewStore(newBackend(t))
		d := key("nothing")

		blob, ok, err := store.Get(t.Context(), d)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, blob)

		ok, err = store.Contains(t.Context(), d)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put and get", func(t *testing.T) {
		store := cas.NewStore(newBackend(t))
		want := content(`{"class":"pod"}`)

		d, err := store.PutContent(t.Context(), want)
		require.NoError(t, err)
		assert.Equal(t, domain.Hash(want), d)

		blob, ok, err := store.Get(t.Context(), d)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, blob)

		ok, err = store.Contains(t.Context(), d)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("idempotent put", func(t *testing.T) {
		store := cas.NewStore(newBackend(t))
		d := key("idempotent")

		require.NoError(t, store.Put(t.Context(), d, []byte("value")))
		require.NoError(t, store.Put(t.Context(), d, []byte("value")))

		blob, ok, err := store.Get(t.Context(), d)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("value"), blob)
	})

	t.Run("integrity violation", func(t *testing.T) {
		store := cas.NewStore(newBackend(t))
		d := key("conflict")

		require.NoError(t, store.Put(t.Context(), d, []byte("first")))
		err := store.Put(t.Context(), d, []byte("second"))
		require.ErrorIs(t, err, domain.ErrIntegrityViolation)

		blob, ok, err := store.Get(t.Context(), d)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("first"), blob, "existing entry must not be overwritten")
	})

	t.Run("empty blob", func(t *testing.T) {
		store := cas.NewStore(newBackend(t))
		d := key("empty")

		require.NoError(t, store.Put(t.Context(), d, []byte{}))

		blob, ok, err := store.Get(t.Context(), d)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Empty(t, blob)
	})

	t.Run("concurrent writers of one digest", func(t *testing.T) {
		store := cas.NewStore(newBackend(t))
		shared := content("shared output")

		const writers = 8
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Go(func() {
				_, errs[i] = store.PutContent(t.Context(), shared)
			})
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("concurrent writers of conflicting content", func(t *testing.T) {
		store := cas.NewStore(newBackend(t))
		d := key("contested")

		const writers = 8
		blobs := make([][]byte, writers)
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := range writers {
			blobs[i] = content(fmt.Sprintf("writer %d", i))
			wg.Go(func() {
				errs[i] = store.Put(t.Context(), d, blobs[i])
			})
		}
		wg.Wait()

		var winners []int
		for i, err := range errs {
			if err == nil {
				winners = append(winners, i)
				continue
			}
			require.ErrorIs(t, err, domain.ErrIntegrityViolation, "writer %d", i)
		}
		require.Len(t, winners, 1, "exactly one write may win")

		blob, ok, err := store.Get(t.Context(), d)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, blobs[winners[0]], blob)
	})

	t.Run("entries", func(t *testing.T) {
		backend := newBackend(t)
		if _, ok := backend.(ports.Enumerator); !ok {
			t.Skip("backend cannot list entries")
		}
		store := cas.NewStore(backend)
		a := content("listed a")
		b := content("listed bb")

		da, err := store.PutContent(t.Context(), a)
		require.NoError(t, err)
		db, err := store.PutContent(t.Context(), b)
		require.NoError(t, err)

		entries, err := store.Entries(t.Context())
		require.NoError(t, err)
		assert.Contains(t, entries, ports.Entry{Digest: da, Size: int64(len(a))})
		assert.Contains(t, entries, ports.Entry{Digest: db, Size: int64(len(b))})
	})
}
