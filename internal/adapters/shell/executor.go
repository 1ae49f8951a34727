// Package shell runs pods as local processes or in a container runtime.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// waitDelay bounds how long output pipes may stay open after a killed
// command exits.
const waitDelay = 5 * time.Second

// invocation is one prepared run of a command inside a work directory.
type invocation struct {
	spec   domain.CommandSpec
	dir    string
	env    map[string]string
	stdout io.Writer
	stderr io.Writer
}

// Runner starts a prepared command and waits for it.
type Runner interface {
	run(ctx context.Context, inv invocation) error
}

// Executor implements ports.Executor. Each invocation gets a fresh work
// directory under workRoot: inputs are materialized at their slot paths,
// the command runs with the work directory as its working directory, and
// outputs are collected relative to the pod's output directory.
type Executor struct {
	store          ports.Store
	runner         Runner
	workRoot       string
	defaultTimeout time.Duration
	logger         ports.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithRunner replaces the local process runner.
func WithRunner(r Runner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithWorkRoot sets the parent of the per-invocation work directories.
func WithWorkRoot(dir string) Option {
	return func(e *Executor) { e.workRoot = dir }
}

// WithDefaultTimeout bounds pods that declare no timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) { e.defaultTimeout = d }
}

// WithLogger receives command output line by line when Execute is called
// without a log writer: stdout at Info and stderr at Error.
func WithLogger(l ports.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor storing artifacts in store.
func NewExecutor(store ports.Store, opts ...Option) *Executor {
	e := &Executor{
		store:    store,
		runner:   ProcessRunner{},
		workRoot: os.TempDir(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs spec with inputs. Command failures, timeouts and missing
// outputs are reported as ExecutionFailed outcomes; the returned error is
// reserved for failures of the executor itself.
func (e *Executor) Execute(
	ctx context.Context,
	spec domain.CommandSpec,
	inputs []domain.ResolvedInput,
	logs io.Writer,
) (domain.ExecutionOutcome, error) {
	if len(spec.Command) == 0 {
		return failed(zerr.With(zerr.Wrap(domain.ErrExecutionFailed, "empty command"), "node", spec.Node), -1), nil
	}

	if err := os.MkdirAll(e.workRoot, domain.DirPerm); err != nil {
		return domain.ExecutionOutcome{}, zerr.With(zerr.Wrap(err, "failed to create work root"), "path", e.workRoot)
	}
	dir := filepath.Join(e.workRoot, sanitize(spec.Node)+"-"+uuid.NewString())
	if err := os.Mkdir(dir, domain.DirPerm); err != nil {
		return domain.ExecutionOutcome{}, zerr.With(zerr.Wrap(err, "failed to create work directory"), "path", dir)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	inputEnv, err := e.materialize(ctx, dir, inputs)
	if err != nil {
		return failed(zerr.With(err, "node", spec.Node), -1), nil
	}

	env := make(map[string]string, len(spec.Env)+len(inputEnv))
	for k, v := range inputEnv {
		env[k] = v
	}
	for k, v := range spec.Env {
		env[k] = v
	}

	stdout, stderr, flush := e.writers(logs)
	defer flush()

	runCtx := ctx
	timeout := spec.Resources.Timeout
	if timeout == 0 {
		timeout = e.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runErr := e.runner.run(runCtx, invocation{spec: spec, dir: dir, env: env, stdout: stdout, stderr: stderr})
	if runErr != nil {
		return runFailure(runCtx, spec, timeout, runErr), nil
	}

	outputs, err := e.collect(ctx, filepath.Join(dir, spec.OutputDir), spec.Outputs)
	if err != nil {
		return failed(zerr.With(err, "node", spec.Node), 0), nil
	}

	return domain.ExecutionOutcome{
		Outputs:  outputs,
		Status:   domain.ExecutionSucceeded,
		ExitCode: 0,
	}, nil
}

func (e *Executor) writers(logs io.Writer) (stdout, stderr io.Writer, flush func()) {
	if logs != nil {
		return logs, logs, func() {}
	}
	if e.logger == nil {
		return io.Discard, io.Discard, func() {}
	}
	out := &logWriter{logger: e.logger, level: "info"}
	errw := &logWriter{logger: e.logger, level: "error"}
	return out, errw, func() {
		_ = out.Close()
		_ = errw.Close()
	}
}

func runFailure(ctx context.Context, spec domain.CommandSpec, timeout time.Duration, err error) domain.ExecutionOutcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cause := zerr.With(zerr.With(zerr.Wrap(domain.ErrExecutionFailed, "command timed out"), "timeout", timeout.String()), "node", spec.Node)
		return failed(cause, -1)
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	cause := zerr.With(
		zerr.With(zerr.Wrap(errors.Join(domain.ErrExecutionFailed, err), "command failed"), "exit_code", exitCode),
		"node", spec.Node,
	)
	return failed(cause, exitCode)
}

func failed(cause error, exitCode int) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{
		Status:   domain.ExecutionFailed,
		Cause:    cause,
		ExitCode: exitCode,
	}
}

// sanitize keeps node names usable as directory and container name parts.
func sanitize(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "pod"
	}
	return string(out)
}
