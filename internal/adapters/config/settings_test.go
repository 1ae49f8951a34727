package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/core/domain"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := config.LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, config.BackendFilesystem, s.Store.Backend)
	assert.Equal(t, domain.DefaultStorePath(), s.Store.StorePath())
	assert.Equal(t, config.ExecutorProcess, s.Executor.Kind)
	assert.Equal(t, runtime.NumCPU(), s.Scheduler.Parallelism)
	assert.Equal(t, config.DefaultServerAddr, s.Server.Addr)
	assert.False(t, s.Log.JSON)
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.SettingsFileName)
	content := `
store:
  backend: sqlite
executor:
  kind: container
  runtime: podman
  default_timeout: 30s
scheduler:
  parallelism: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
	t.Setenv("ORCA_PARALLELISM", "4")
	t.Setenv("ORCA_LOG_JSON", "true")

	s, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, config.BackendSQLite, s.Store.Backend)
	assert.Equal(t, domain.DefaultDatabasePath(), s.Store.StorePath())
	assert.Equal(t, config.ExecutorContainer, s.Executor.Kind)
	assert.Equal(t, "podman", s.Executor.Runtime)
	assert.Equal(t, 30*time.Second, s.Executor.DefaultTimeout)
	assert.Equal(t, 4, s.Scheduler.Parallelism)
	assert.True(t, s.Log.JSON)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{name: "unknown backend", env: map[string]string{"ORCA_STORE_BACKEND": "tape"}, wantErr: domain.ErrUnknownBackend},
		{name: "unknown executor", env: map[string]string{"ORCA_EXECUTOR": "vm"}, wantErr: domain.ErrUnknownExecutor},
		{name: "postgres without dsn", env: map[string]string{"ORCA_STORE_BACKEND": "postgres"}, wantErr: domain.ErrConfigParseFailed},
		{name: "http without url", env: map[string]string{"ORCA_STORE_BACKEND": "http"}, wantErr: domain.ErrConfigParseFailed},
		{name: "s3 without bucket", env: map[string]string{"ORCA_STORE_BACKEND": "s3", "ORCA_S3_ENDPOINT": "localhost:9000"}, wantErr: domain.ErrConfigParseFailed},
		{name: "bad parallelism", env: map[string]string{"ORCA_PARALLELISM": "many"}, wantErr: domain.ErrConfigParseFailed},
		{name: "zero parallelism", env: map[string]string{"ORCA_PARALLELISM": "0"}, wantErr: domain.ErrConfigParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadSettings_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte("store: ["), domain.PrivateFilePerm))

	_, err := config.LoadSettings(path)
	require.ErrorIs(t, err, domain.ErrConfigParseFailed)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("ORCA_TEST_STRING", "x")
	t.Setenv("ORCA_TEST_DURATION", "bogus")

	assert.Equal(t, "x", config.String("ORCA_TEST_STRING", "d"))
	assert.Equal(t, "d", config.String("ORCA_TEST_UNSET", "d"))

	_, err := config.Duration("ORCA_TEST_DURATION", time.Second)
	require.ErrorContains(t, err, "parse ORCA_TEST_DURATION")

	d, err := config.Duration("ORCA_TEST_UNSET", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}
