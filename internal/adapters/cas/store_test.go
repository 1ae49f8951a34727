package cas_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/cas"
	"go.trai.ch/orca/internal/adapters/cas/castest"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/orca/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestMemory_Backend(t *testing.T) {
	castest.RunBackendTests(t, func(*testing.T) ports.Backend {
		return cas.NewMemory()
	})
}

func TestFilesystem_Backend(t *testing.T) {
	castest.RunBackendTests(t, func(t *testing.T) ports.Backend {
		fs, err := cas.NewFilesystem(t.TempDir())
		require.NoError(t, err)
		return fs
	})
}

func TestMemory_CopiesBlobs(t *testing.T) {
	m := cas.NewMemory()
	d := domain.Hash([]byte("abc"))
	blob := []byte("abc")

	_, created, err := m.PutIfAbsent(t.Context(), d, blob)
	require.NoError(t, err)
	require.True(t, created)

	blob[0] = 'x'
	got, ok, err := m.Get(t.Context(), d)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
	assert.Equal(t, 1, m.Len())
}

func TestFilesystem_Layout(t *testing.T) {
	root := t.TempDir()
	fs, err := cas.NewFilesystem(root)
	require.NoError(t, err)

	d := domain.Hash([]byte("layout"))
	_, created, err := fs.PutIfAbsent(t.Context(), d, []byte("layout"))
	require.NoError(t, err)
	require.True(t, created)

	hex := d.String()
	assert.FileExists(t, root+"/"+hex[:2]+"/"+hex)

	existing, created, err := fs.PutIfAbsent(t.Context(), d, []byte("other"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []byte("layout"), existing)
}

func TestStore_BackendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	d := domain.Hash([]byte("x"))
	cause := errors.New("disk on fire")

	backend.EXPECT().PutIfAbsent(gomock.Any(), d, gomock.Any()).Return(nil, false, cause)
	backend.EXPECT().Get(gomock.Any(), d).Return(nil, false, cause)
	backend.EXPECT().Contains(gomock.Any(), d).Return(false, cause)

	store := cas.NewStore(backend)

	err := store.Put(t.Context(), d, []byte("x"))
	require.ErrorIs(t, err, domain.ErrStoreIO)
	require.ErrorIs(t, err, cause)

	_, _, err = store.Get(t.Context(), d)
	require.ErrorIs(t, err, domain.ErrStoreIO)

	_, err = store.Contains(t.Context(), d)
	require.ErrorIs(t, err, domain.ErrStoreIO)
}

func TestStore_Metrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockMetrics(ctrl)
	store := cas.NewStore(cas.NewMemory(), cas.WithMetrics(metrics))
	ctx := context.Background()
	d := domain.Hash([]byte("m"))

	gomock.InOrder(
		metrics.EXPECT().StoreOperation("contains", "miss"),
		metrics.EXPECT().StoreOperation("put", "ok"),
		metrics.EXPECT().StoreOperation("put", "conflict"),
		metrics.EXPECT().StoreOperation("get", "ok"),
	)

	_, err := store.Contains(ctx, d)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, d, []byte("m")))
	require.Error(t, store.Put(ctx, d, []byte("n")))
	_, _, err = store.Get(ctx, d)
	require.NoError(t, err)
}
