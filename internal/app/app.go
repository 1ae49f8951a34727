// Package app implements the application layer for orca.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.trai.ch/orca/internal/adapters/httpstore"
	"go.trai.ch/orca/internal/adapters/linear"
	"go.trai.ch/orca/internal/adapters/telemetry"
	"go.trai.ch/orca/internal/adapters/telemetry/progrock"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/orca/internal/engine/scheduler"
	"go.trai.ch/orca/internal/ui/report"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Progress modes.
const (
	ProgressLinear   = "linear"
	ProgressProgrock = "progrock"
)

// tracerName is the instrumentation scope of run spans.
const tracerName = "orca"

// App represents the main application logic.
type App struct {
	loader    ports.DefinitionLoader
	store     ports.Store
	scheduler *scheduler.Scheduler
	logger    ports.Logger
	inst      httpstore.Instrumentation
	index     ports.AnnotationIndex

	parallelism int
	stdout      io.Writer
	stderr      io.Writer
}

// New creates a new App instance.
func New(
	loader ports.DefinitionLoader,
	store ports.Store,
	sched *scheduler.Scheduler,
	log ports.Logger,
) *App {
	return &App{
		loader:    loader,
		store:     store,
		scheduler: sched,
		logger:    log,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
}

// WithOutput redirects the report and progress output.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithInstrumentation serves metrics next to the store in Serve.
func (a *App) WithInstrumentation(inst httpstore.Instrumentation) *App {
	a.inst = inst
	return a
}

// WithIndex records annotated definitions in index when they are persisted
// and resolves name@version labels in Show.
func (a *App) WithIndex(index ports.AnnotationIndex) *App {
	a.index = index
	return a
}

// WithParallelism sets the parallelism used when a run does not request one.
func (a *App) WithParallelism(n int) *App {
	a.parallelism = n
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	NoCache     bool
	Parallelism int
	JSON        bool
	Progress    string
}

// Run loads the pipeline at path, persists its definitions, executes it and
// prints the report. The report is returned even when the run fails; a run
// that leaves aborted nodes returns domain.ErrPipelineFailed.
//
//nolint:cyclop // orchestration function
func (a *App) Run(ctx context.Context, path string, opts RunOptions) (*domain.RunReport, error) {
	// 1. Load and hash the definition
	pipeline, err := a.loader.Load(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load pipeline definition")
	}

	// 2. Persist pods and pipeline under their digests
	if err := a.persist(ctx, pipeline); err != nil {
		return nil, zerr.Wrap(err, "failed to persist definitions")
	}

	// 3. Build the graph; graph errors stop the run before anything executes
	graph, err := domain.BuildGraph(pipeline)
	if err != nil {
		return nil, zerr.Wrap(err, "invalid pipeline")
	}

	// 4. Initialize renderer and telemetry
	renderer, err := a.newRenderer(opts.Progress)
	if err != nil {
		return nil, err
	}
	provider := telemetry.NewProvider(renderer)
	defer func() {
		//nolint:contextcheck // spans must be flushed after the run context is done
		_ = provider.Shutdown(context.Background())
	}()
	tracer := telemetry.NewOTelTracerWithProvider(provider, tracerName).WithRenderer(renderer)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = a.parallelism
	}

	// 5. Run renderer and scheduler concurrently
	var (
		rep    *domain.RunReport
		runErr error
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()
		rep, runErr = a.scheduler.Run(gctx, graph, scheduler.RunOptions{
			Parallelism: parallelism,
			NoCache:     opts.NoCache,
			Tracer:      tracer,
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return rep, zerr.Wrap(err, "renderer failed")
	}

	// 6. Print the report
	printer := report.NewPrinter(a.stdout)
	if opts.JSON {
		err = printer.JSON(rep)
	} else {
		err = printer.Table(rep)
	}
	if err != nil {
		return rep, zerr.Wrap(err, "failed to print report")
	}

	if runErr != nil {
		return rep, zerr.Wrap(runErr, "run stopped")
	}
	if !rep.Complete() {
		return rep, zerr.With(
			zerr.Wrap(domain.ErrPipelineFailed, fmt.Sprintf("%d node(s) aborted", len(rep.Aborted()))),
			"pipeline", rep.Pipeline.String(),
		)
	}
	return rep, nil
}

func (a *App) newRenderer(mode string) (ports.Renderer, error) {
	switch mode {
	case "", ProgressLinear:
		return linear.NewRenderer(a.stderr, a.stderr), nil
	case ProgressProgrock:
		return progrock.New(), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownProgress, "unsupported progress mode"), "progress", mode)
	}
}

// persist stores the canonical bytes of every pod and of the pipeline, then
// records the annotated ones in the index.
func (a *App) persist(ctx context.Context, p *domain.Pipeline) error {
	seen := make(map[domain.Digest]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		d := n.Pod.Digest()
		if !seen[d] {
			seen[d] = true
			if err := a.store.Put(ctx, d, n.Pod.Canonical()); err != nil {
				return zerr.With(err, "node", n.Name)
			}
		}
		if err := a.record(ctx, domain.ClassPod, n.Pod.Annotation, d); err != nil {
			return zerr.With(err, "node", n.Name)
		}
	}
	if err := a.store.Put(ctx, p.Digest(), p.Canonical()); err != nil {
		return err
	}
	return a.record(ctx, domain.ClassPipeline, p.Annotation, p.Digest())
}

// record indexes an annotated definition. A name and version already bound
// to another definition keeps its binding and is reported as a warning.
func (a *App) record(ctx context.Context, kind string, ann *domain.Annotation, d domain.Digest) error {
	if a.index == nil {
		return nil
	}
	e, ok := domain.NewAnnotationEntry(kind, ann, d)
	if !ok {
		return nil
	}
	err := a.index.Record(ctx, e)
	if errors.Is(err, domain.ErrAnnotationConflict) {
		a.logger.Warn(fmt.Sprintf("%s %s already refers to another definition; %s is not indexed", kind, e.Label(), d.Short()))
		return nil
	}
	return err
}

// Hash prints the digest of the pipeline at path and of each of its pods,
// annotated with their names and versions.
func (a *App) Hash(_ context.Context, path string) error {
	pipeline, err := a.loader.Load(path)
	if err != nil {
		return zerr.Wrap(err, "failed to load pipeline definition")
	}

	if _, err := fmt.Fprintf(a.stdout, "%s  pipeline  %s\n", pipeline.Digest(), annotationLabel(pipeline.Annotation)); err != nil {
		return err
	}
	for _, n := range pipeline.Nodes {
		label := n.Name
		if n.Pod.Annotation != nil {
			label += " (" + annotationLabel(n.Pod.Annotation) + ")"
		}
		if _, err := fmt.Fprintf(a.stdout, "%s  pod       %s\n", n.Pod.Digest(), label); err != nil {
			return err
		}
	}
	return nil
}

func annotationLabel(a *domain.Annotation) string {
	switch {
	case a == nil || a.Name == "":
		return "-"
	case a.Version == "":
		return a.Name
	default:
		return a.Name + "@" + a.Version
	}
}

// List prints the indexed pipelines and pods with their labels.
func (a *App) List(ctx context.Context) error {
	if a.index == nil {
		return zerr.Wrap(domain.ErrListUnsupported, "no annotation index configured")
	}
	for _, kind := range []string{domain.ClassPipeline, domain.ClassPod} {
		entries, err := a.index.List(ctx, kind)
		if err != nil {
			return zerr.Wrap(err, "failed to list definitions")
		}
		for _, e := range entries {
			if _, err := fmt.Fprintf(a.stdout, "%s  %-8s  %s\n", e.Digest, kind, e.Label()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Show prints the blob stored under s, which is either a digest or the
// name@version of an indexed pod or pipeline. Canonical blobs are printed as
// indented JSON, anything else verbatim.
func (a *App) Show(ctx context.Context, s string) error {
	d, err := a.resolve(ctx, s)
	if err != nil {
		return err
	}

	blob, ok, err := a.store.Get(ctx, d)
	if err != nil {
		return err
	}
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrBlobNotFound, "nothing stored under digest"), "digest", d.String())
	}

	if json.Valid(blob) {
		var out bytes.Buffer
		if err := json.Indent(&out, blob, "", "  "); err == nil {
			out.WriteByte('\n')
			blob = out.Bytes()
		}
	}
	_, err = a.stdout.Write(blob)
	return err
}

// resolve reads s as a digest when it has a digest's length, and as a
// label otherwise. Pods are looked up before pipelines.
func (a *App) resolve(ctx context.Context, s string) (domain.Digest, error) {
	s = strings.TrimSpace(s)
	if a.index == nil || len(s) == 2*domain.DigestSize {
		return domain.ParseDigest(s)
	}

	name, version := domain.ParseLabel(s)
	for _, kind := range []string{domain.ClassPod, domain.ClassPipeline} {
		e, ok, err := a.index.Lookup(ctx, kind, name, version)
		if err != nil {
			return domain.Digest{}, zerr.Wrap(err, "failed to look up label")
		}
		if ok {
			return e.Digest, nil
		}
	}
	return domain.Digest{}, zerr.With(zerr.Wrap(domain.ErrAnnotationNotFound, "no pod or pipeline recorded under label"), "label", s)
}

// Serve exposes the store over HTTP on addr until ctx is done.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := httpstore.NewServer(a.store, a.logger, a.inst)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return zerr.With(zerr.Wrap(err, "store server failed"), "addr", addr)
	}
	return nil
}
