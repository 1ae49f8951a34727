package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"
	BackendPostgres   = "postgres"
	BackendS3         = "s3"
	BackendHTTP       = "http"
)

// Executor kinds.
const (
	ExecutorProcess   = "process"
	ExecutorContainer = "container"
)

// DefaultServerAddr is the listen address of orca serve.
const DefaultServerAddr = ":8080"

// Settings is the content of .orca/config.yaml after environment overrides.
type Settings struct {
	Store     StoreSettings     `yaml:"store"`
	Executor  ExecutorSettings  `yaml:"executor"`
	Scheduler SchedulerSettings `yaml:"scheduler"`
	Log       LogSettings       `yaml:"log"`
	Server    ServerSettings    `yaml:"server"`
}

// StoreSettings selects and parameterizes the store backend.
type StoreSettings struct {
	Backend string     `yaml:"backend"`
	Path    string     `yaml:"path"`
	DSN     string     `yaml:"dsn"`
	URL     string     `yaml:"url"`
	S3      S3Settings `yaml:"s3"`
}

// S3Settings configures the object store backend.
type S3Settings struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	Secure    bool   `yaml:"secure"`
}

// ExecutorSettings selects how pods are run.
type ExecutorSettings struct {
	Kind    string `yaml:"kind"`
	Runtime string `yaml:"runtime"`
	WorkDir string `yaml:"work_dir"`

	// DefaultTimeout applies to pods that declare no timeout. Zero means none.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// SchedulerSettings tunes the scheduler.
type SchedulerSettings struct {
	Parallelism int `yaml:"parallelism"`
}

// LogSettings configures the logger.
type LogSettings struct {
	JSON bool `yaml:"json"`
}

// ServerSettings configures orca serve.
type ServerSettings struct {
	Addr string `yaml:"addr"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Store: StoreSettings{Backend: BackendFilesystem},
		Executor: ExecutorSettings{
			Kind:    ExecutorProcess,
			Runtime: "docker",
			WorkDir: domain.DefaultWorkPath(),
		},
		Scheduler: SchedulerSettings{Parallelism: runtime.NumCPU()},
		Server:    ServerSettings{Addr: DefaultServerAddr},
	}
}

// LoadSettings reads path on top of DefaultSettings, then applies ORCA_*
// environment overrides. A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	// #nosec G304 -- path is the workspace settings file
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Settings{}, zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", path)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "path", path)
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, zerr.Wrap(domain.ErrConfigParseFailed, err.Error())
	}
	if err := s.Validate(); err != nil {
		return Settings{}, zerr.With(err, "path", path)
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	s.Store.Backend = String("ORCA_STORE_BACKEND", s.Store.Backend)
	s.Store.Path = String("ORCA_STORE_PATH", s.Store.Path)
	s.Store.DSN = String("ORCA_STORE_DSN", s.Store.DSN)
	s.Store.URL = String("ORCA_STORE_URL", s.Store.URL)
	s.Store.S3.Endpoint = String("ORCA_S3_ENDPOINT", s.Store.S3.Endpoint)
	s.Store.S3.AccessKey = String("ORCA_S3_ACCESS_KEY", s.Store.S3.AccessKey)
	s.Store.S3.SecretKey = String("ORCA_S3_SECRET_KEY", s.Store.S3.SecretKey)
	s.Store.S3.Bucket = String("ORCA_S3_BUCKET", s.Store.S3.Bucket)
	s.Store.S3.Region = String("ORCA_S3_REGION", s.Store.S3.Region)
	s.Store.S3.Prefix = String("ORCA_S3_PREFIX", s.Store.S3.Prefix)
	s.Executor.Kind = String("ORCA_EXECUTOR", s.Executor.Kind)
	s.Executor.Runtime = String("ORCA_CONTAINER_RUNTIME", s.Executor.Runtime)
	s.Executor.WorkDir = String("ORCA_WORK_DIR", s.Executor.WorkDir)
	s.Server.Addr = String("ORCA_SERVER_ADDR", s.Server.Addr)

	var err error
	if s.Store.S3.Secure, err = Bool("ORCA_S3_SECURE", s.Store.S3.Secure); err != nil {
		return err
	}
	if s.Scheduler.Parallelism, err = Int("ORCA_PARALLELISM", s.Scheduler.Parallelism); err != nil {
		return err
	}
	if s.Log.JSON, err = Bool("ORCA_LOG_JSON", s.Log.JSON); err != nil {
		return err
	}
	if s.Executor.DefaultTimeout, err = Duration("ORCA_DEFAULT_TIMEOUT", s.Executor.DefaultTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks the backend and executor selections.
func (s *Settings) Validate() error {
	switch s.Store.Backend {
	case BackendMemory, BackendFilesystem, BackendSQLite:
	case BackendPostgres:
		if s.Store.DSN == "" {
			return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "postgres backend needs store.dsn"), "backend", s.Store.Backend)
		}
	case BackendHTTP:
		if !strings.HasPrefix(s.Store.URL, "http://") && !strings.HasPrefix(s.Store.URL, "https://") {
			return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "http backend needs an http(s) store.url"), "url", s.Store.URL)
		}
	case BackendS3:
		if s.Store.S3.Endpoint == "" || s.Store.S3.Bucket == "" {
			return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "s3 backend needs store.s3.endpoint and store.s3.bucket"), "backend", s.Store.Backend)
		}
	default:
		return zerr.With(zerr.Wrap(domain.ErrUnknownBackend, "unsupported store backend"), "backend", s.Store.Backend)
	}

	switch s.Executor.Kind {
	case ExecutorProcess, ExecutorContainer:
	default:
		return zerr.With(zerr.Wrap(domain.ErrUnknownExecutor, "unsupported executor"), "executor", s.Executor.Kind)
	}

	if s.Scheduler.Parallelism < 1 {
		return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "parallelism must be at least 1"), "parallelism", s.Scheduler.Parallelism)
	}
	return nil
}

// StorePath returns the filesystem directory or sqlite file of the store,
// falling back to the backend's default location under .orca.
func (s StoreSettings) StorePath() string {
	switch {
	case s.Path != "":
		return s.Path
	case s.Backend == BackendSQLite:
		return domain.DefaultDatabasePath()
	default:
		return domain.DefaultStorePath()
	}
}

// String describes the store selection for log lines.
func (s StoreSettings) String() string {
	switch s.Backend {
	case BackendHTTP:
		return fmt.Sprintf("%s %s", s.Backend, s.URL)
	case BackendS3:
		return fmt.Sprintf("%s %s/%s", s.Backend, s.S3.Endpoint, s.S3.Bucket)
	case BackendPostgres:
		return s.Backend
	default:
		return fmt.Sprintf("%s %s", s.Backend, s.StorePath())
	}
}
