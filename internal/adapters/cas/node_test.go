package cas_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/cas"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/adapters/httpstore"
	"go.trai.ch/orca/internal/adapters/sqlstore"
	"go.trai.ch/orca/internal/core/domain"
)

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		settings config.StoreSettings
		check    func(t *testing.T, b any)
	}{
		{
			name:     "memory",
			settings: config.StoreSettings{Backend: config.BackendMemory},
			check:    func(t *testing.T, b any) { assert.IsType(t, &cas.Memory{}, b) },
		},
		{
			name:     "filesystem",
			settings: config.StoreSettings{Backend: config.BackendFilesystem, Path: filepath.Join(dir, "store")},
			check: func(t *testing.T, b any) {
				require.IsType(t, &cas.Filesystem{}, b)
				assert.Equal(t, filepath.Join(dir, "store"), b.(*cas.Filesystem).Root())
			},
		},
		{
			name:     "sqlite",
			settings: config.StoreSettings{Backend: config.BackendSQLite, Path: filepath.Join(dir, domain.DatabaseFileName)},
			check:    func(t *testing.T, b any) { assert.IsType(t, &sqlstore.Backend{}, b) },
		},
		{
			name:     "http",
			settings: config.StoreSettings{Backend: config.BackendHTTP, URL: "http://127.0.0.1:8080"},
			check:    func(t *testing.T, b any) { assert.IsType(t, &httpstore.Client{}, b) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := cas.OpenBackend(t.Context(), tt.settings)
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			tt.check(t, b)
		})
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := cas.OpenBackend(t.Context(), config.StoreSettings{Backend: "tape"})
	require.ErrorIs(t, err, domain.ErrUnknownBackend)
}
