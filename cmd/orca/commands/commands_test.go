package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/cmd/orca/commands"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/app"
	"go.trai.ch/orca/internal/build"
	"go.trai.ch/orca/internal/core/domain"
)

type mockApp struct {
	runFunc   func(ctx context.Context, path string, opts app.RunOptions) (*domain.RunReport, error)
	hashFunc  func(ctx context.Context, path string) error
	showFunc  func(ctx context.Context, digest string) error
	listFunc  func(ctx context.Context) error
	serveFunc func(ctx context.Context, addr string) error
}

func (m *mockApp) Run(ctx context.Context, path string, opts app.RunOptions) (*domain.RunReport, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, path, opts)
	}
	return &domain.RunReport{}, nil
}

func (m *mockApp) Hash(ctx context.Context, path string) error {
	if m.hashFunc != nil {
		return m.hashFunc(ctx, path)
	}
	return nil
}

func (m *mockApp) Show(ctx context.Context, digest string) error {
	if m.showFunc != nil {
		return m.showFunc(ctx, digest)
	}
	return nil
}

func (m *mockApp) List(ctx context.Context) error {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil
}

func (m *mockApp) Serve(ctx context.Context, addr string) error {
	if m.serveFunc != nil {
		return m.serveFunc(ctx, addr)
	}
	return nil
}

func TestCommands_Run(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedOpts app.RunOptions
		var capturedPath string

		mock := &mockApp{
			runFunc: func(_ context.Context, path string, opts app.RunOptions) (*domain.RunReport, error) {
				capturedOpts = opts
				capturedPath = path
				return &domain.RunReport{}, nil
			},
		}

		cli := commands.New(mock, nil)
		cli.SetArgs([]string{"run", "pipeline.yaml", "--no-cache", "-j", "3", "--json", "--progress", "progrock"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "pipeline.yaml", capturedPath)
		assert.Equal(t, app.RunOptions{
			NoCache:     true,
			Parallelism: 3,
			JSON:        true,
			Progress:    app.ProgressProgrock,
		}, capturedOpts)
	})

	t.Run("parallelism defaults to settings", func(t *testing.T) {
		var capturedOpts app.RunOptions
		mock := &mockApp{
			runFunc: func(_ context.Context, _ string, opts app.RunOptions) (*domain.RunReport, error) {
				capturedOpts = opts
				return &domain.RunReport{}, nil
			},
		}

		settings := config.DefaultSettings()
		settings.Scheduler.Parallelism = 7
		cli := commands.New(mock, &settings)
		cli.SetArgs([]string{"run", "pipeline.yaml"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, 7, capturedOpts.Parallelism)
		assert.Equal(t, app.ProgressLinear, capturedOpts.Progress)
		assert.False(t, capturedOpts.NoCache)
	})

	t.Run("returns error on run failure", func(t *testing.T) {
		mock := &mockApp{
			runFunc: func(_ context.Context, _ string, _ app.RunOptions) (*domain.RunReport, error) {
				return nil, errors.New("simulated error")
			},
		}

		cli := commands.New(mock, nil)
		cli.SetArgs([]string{"run", "pipeline.yaml"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})

	t.Run("defaults to pipeline.yaml", func(t *testing.T) {
		var capturedPath string
		mock := &mockApp{
			runFunc: func(_ context.Context, path string, _ app.RunOptions) (*domain.RunReport, error) {
				capturedPath = path
				return &domain.RunReport{}, nil
			},
		}

		cli := commands.New(mock, nil)
		cli.SetArgs([]string{"run"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, domain.DefaultPipelineFile, capturedPath)
	})

	t.Run("rejects extra arguments", func(t *testing.T) {
		cli := commands.New(&mockApp{}, nil)
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
		cli.SetArgs([]string{"run", "a.yaml", "b.yaml"})

		require.Error(t, cli.Execute(context.Background()))
	})
}

func TestCommands_HashAndShow(t *testing.T) {
	var hashed, shown string
	mock := &mockApp{
		hashFunc: func(_ context.Context, path string) error {
			hashed = path
			return nil
		},
		showFunc: func(_ context.Context, digest string) error {
			shown = digest
			return nil
		},
	}

	cli := commands.New(mock, nil)
	cli.SetArgs([]string{"hash", "p.yaml"})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "p.yaml", hashed)

	d := domain.Hash([]byte("x")).String()
	cli.SetArgs([]string{"show", d})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, d, shown)

	cli.SetArgs([]string{"show", "shout@0.1.0"})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "shout@0.1.0", shown)

	cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
	cli.SetArgs([]string{"show"})
	require.Error(t, cli.Execute(context.Background()))
}

func TestCommands_List(t *testing.T) {
	calls := 0
	mock := &mockApp{
		listFunc: func(context.Context) error {
			calls++
			return nil
		},
	}

	cli := commands.New(mock, nil)
	cli.SetArgs([]string{"list"})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, 1, calls)

	cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
	cli.SetArgs([]string{"list", "extra"})
	require.Error(t, cli.Execute(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestCommands_Serve(t *testing.T) {
	var addr string
	mock := &mockApp{
		serveFunc: func(_ context.Context, a string) error {
			addr = a
			return nil
		},
	}

	cli := commands.New(mock, nil)
	cli.SetArgs([]string{"serve"})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, config.DefaultServerAddr, addr)

	cli = commands.New(mock, nil)
	cli.SetArgs([]string{"serve", "--addr", "127.0.0.1:9999"})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "127.0.0.1:9999", addr)
}

func TestCommands_Version(t *testing.T) {
	cli := commands.New(&mockApp{}, nil)

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "orca version "+build.Version)
}
