// Package scheduler runs a pipeline graph against the content-addressed store.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// RunOptions configures one run.
type RunOptions struct {
	// Parallelism caps the number of nodes in flight. Zero means runtime.NumCPU().
	Parallelism int
	// NoCache re-executes every node. The new record must reproduce any
	// record already stored, otherwise the run fails with an integrity violation.
	NoCache bool
	// Tracer replaces the scheduler's tracer for this run.
	Tracer ports.Tracer
}

// Scheduler executes pipeline graphs. A Scheduler may serve concurrent runs;
// work on the same resolved digest is shared between them.
type Scheduler struct {
	executor ports.Executor
	store    ports.Store
	tracer   ports.Tracer
	metrics  ports.Metrics
	now      func() time.Time

	flights singleflight.Group
	callers atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records node outcomes and execution durations.
func WithMetrics(m ports.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler. A nil tracer discards spans.
func NewScheduler(executor ports.Executor, store ports.Store, tracer ports.Tracer, opts ...Option) *Scheduler {
	s := &Scheduler{
		executor: executor,
		store:    store,
		tracer:   tracer,
		metrics:  noopMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = noopTracer{}
	}
	return s
}

// Run executes every node of graph and returns the run report. Node failures
// are recorded in the report and abort the node's dependents only. The
// returned error is reserved for conditions that stop the whole run: an
// integrity violation or cancellation of ctx. The report is complete in
// every case.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, opts RunOptions) (*domain.RunReport, error) {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tracer := s.tracer
	if opts.Tracer != nil {
		tracer = opts.Tracer
	}

	state := s.newRunState(ctx, graph, parallelism, opts.NoCache)
	state.cancel = cancel
	state.tracer = tracer
	emitPlan(ctx, tracer, graph)

	state.runLoop()
	return state.finish()
}

func emitPlan(ctx context.Context, tracer ports.Tracer, graph *domain.Graph) {
	names := make([]string, 0, graph.Len())
	deps := make(map[string][]string, graph.Len())
	for _, id := range graph.Order() {
		name := graph.Node(id).Name
		names = append(names, name)
		up := graph.Upstream(id)
		upNames := make([]string, len(up))
		for i, u := range up {
			upNames[i] = graph.Node(u).Name
		}
		deps[name] = upNames
	}
	tracer.EmitPlan(ctx, names, deps)
}

// nodeRun is the run loop's bookkeeping for one node.
type nodeRun struct {
	report   domain.NodeReport
	inDegree int
	outputs  map[string]domain.ArtifactRef
}

type runState struct {
	s           *Scheduler
	ctx         context.Context
	cancel      context.CancelCauseFunc
	tracer      ports.Tracer
	graph       *domain.Graph
	parallelism int
	noCache     bool

	nodes     []nodeRun
	ready     *readyQueue
	active    int
	resultsCh chan result
	report    *domain.RunReport
	fatal     error
	fatalNode string
}

func (s *Scheduler) newRunState(ctx context.Context, graph *domain.Graph, parallelism int, noCache bool) *runState {
	state := &runState{
		s:           s,
		ctx:         ctx,
		graph:       graph,
		parallelism: parallelism,
		noCache:     noCache,
		nodes:       make([]nodeRun, graph.Len()),
		ready:       &readyQueue{graph: graph},
		resultsCh:   make(chan result, parallelism),
		report: &domain.RunReport{
			RunID:     domain.NewRunID(),
			Pipeline:  graph.Pipeline().Digest(),
			Name:      graph.Pipeline().Name(),
			StartedAt: s.now(),
		},
	}

	for _, id := range graph.Order() {
		n := graph.Node(id)
		state.nodes[id] = nodeRun{
			report: domain.NodeReport{
				Name:  n.Name,
				Pod:   n.Pod.Digest(),
				State: domain.StatePending,
				Trail: []domain.NodeState{domain.StatePending},
			},
			inDegree: len(graph.Upstream(id)),
		}
		if state.nodes[id].inDegree == 0 {
			heap.Push(state.ready, id)
		}
	}
	return state
}

func (state *runState) isDone() bool {
	return state.active == 0 && (state.ready.Len() == 0 || state.ctx.Err() != nil)
}

func (state *runState) runLoop() {
	for !state.isDone() {
		state.schedule()
		if state.isDone() {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			if state.active > 0 {
				state.handleResult(<-state.resultsCh)
			}
		}
	}
}

func (state *runState) schedule() {
	for state.ready.Len() > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		id := heap.Pop(state.ready).(domain.NodeID)
		inputs, err := state.resolveInputs(id)

		state.active++
		state.transition(id, domain.StateResolvingInputs)
		go state.runNode(id, inputs, err)
	}
}

// resolveInputs substitutes every bound slot with its literal or with the
// upstream artifact it is wired to.
func (state *runState) resolveInputs(id domain.NodeID) ([]domain.ResolvedInput, error) {
	node := state.graph.Node(id)
	inputs := make([]domain.ResolvedInput, 0, len(node.Bindings))
	for _, b := range node.Bindings {
		in := domain.ResolvedInput{Slot: b.Slot.Name, Path: b.Slot.Path}
		if b.Kind == domain.BindingLiteral {
			in.Literal = b.Literal
			inputs = append(inputs, in)
			continue
		}

		ref, ok := state.nodes[b.Source].outputs[b.SourceSlot]
		if !ok {
			return nil, zerr.With(
				zerr.With(zerr.Wrap(domain.ErrMissingOutput, "upstream output not recorded"), "slot", b.Slot.Name),
				"from", state.graph.Node(b.Source).Name+"."+b.SourceSlot,
			)
		}
		in.Artifact = &ref
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// result is what a node worker reports back to the run loop.
type result struct {
	id       domain.NodeID
	trail    []domain.NodeState
	resolved *domain.Digest
	record   *domain.ExecutionRecord
	cacheHit bool
	executed bool
	exitCode int
	duration time.Duration
	err      error
	fatal    bool
}

func (state *runState) runNode(id domain.NodeID, inputs []domain.ResolvedInput, resolveErr error) {
	res := func() result {
		node := state.graph.Node(id)
		ctx, span := state.tracer.Start(state.ctx, node.Name, ports.WithAttribute(ports.AttrPod, node.Pod.Digest().String()))
		defer span.End()

		started := state.s.now()
		res := state.resolveNode(ctx, node, inputs, resolveErr, span)
		res.id = id
		res.duration = state.s.now().Sub(started)

		if res.err != nil {
			span.RecordError(res.err)
		}
		if res.cacheHit {
			span.SetAttribute(ports.AttrCached, true)
		}
		return res
	}()

	state.resultsCh <- res
}

func (state *runState) resolveNode(
	ctx context.Context,
	node domain.GraphNode,
	inputs []domain.ResolvedInput,
	resolveErr error,
	span ports.Span,
) result {
	if resolveErr != nil {
		return result{trail: []domain.NodeState{domain.StateFailed}, err: resolveErr}
	}

	resolved, err := domain.ResolvedDigest(node.Pod.Digest(), inputs)
	if err != nil {
		return result{trail: []domain.NodeState{domain.StateFailed}, err: zerr.With(err, "node", node.Name)}
	}
	span.SetAttribute(ports.AttrResolved, resolved.String())

	var (
		caller uint64
		f      flight
	)
	for {
		caller = state.s.callers.Add(1)
		v, _, _ := state.s.flights.Do(resolved.String(), func() (any, error) {
			out := state.s.produce(ctx, flightJob{
				caller:   caller,
				node:     node,
				resolved: resolved,
				inputs:   inputs,
				noCache:  state.noCache,
				logs:     span,
			})
			out.interrupted = out.err != nil && !out.fatal && ctx.Err() != nil
			return out, nil
		})
		f = v.(flight)
		// A flight whose leader's run was cancelled says nothing about this
		// run. Ask again while this run is live.
		if f.leader == caller || !f.interrupted || ctx.Err() != nil {
			break
		}
	}

	res := result{resolved: &resolved, record: f.record, exitCode: f.exitCode, err: f.err, fatal: f.fatal}
	switch {
	case f.leader != caller:
		// Another node or run produced this digest.
		res.cacheHit = f.err == nil
		res.trail = []domain.NodeState{domain.StateCacheHit}
		if f.err != nil {
			res.trail = []domain.NodeState{domain.StateFailed}
		}
	case f.hit:
		res.cacheHit = true
		res.trail = []domain.NodeState{domain.StateCacheHit}
	case f.err != nil && !f.executed:
		res.trail = []domain.NodeState{domain.StateFailed}
	case f.err != nil:
		res.executed = true
		res.trail = []domain.NodeState{domain.StateCacheMiss, domain.StateRunning, domain.StateFailed}
	default:
		res.executed = true
		res.trail = []domain.NodeState{domain.StateCacheMiss, domain.StateRunning, domain.StateSucceeded}
	}
	return res
}

func (state *runState) handleResult(res result) {
	state.active--

	n := &state.nodes[res.id]
	n.report.Trail = append(n.report.Trail, res.trail...)
	n.report.Resolved = res.resolved
	n.report.CacheHit = res.cacheHit
	n.report.Executed = res.executed
	n.report.ExitCode = res.exitCode
	n.report.Duration = res.duration

	if res.err != nil {
		state.abort(res.id, res.err)
		if res.fatal && state.fatal == nil {
			state.fatal = res.err
			state.fatalNode = n.report.Name
			state.cancel(res.err)
		}
		return
	}

	n.outputs = res.record.Outputs
	n.report.Outputs = res.record.Outputs
	n.report.State = domain.StateDone
	n.report.Trail = append(n.report.Trail, domain.StateDone)
	if res.cacheHit {
		state.s.metrics.NodeFinished(ports.OutcomeCacheHit)
	} else {
		state.s.metrics.NodeFinished(ports.OutcomeExecuted)
	}

	for _, down := range state.graph.Downstream(res.id) {
		d := &state.nodes[down]
		if d.report.State.Terminal() {
			continue
		}
		d.inDegree--
		if d.inDegree == 0 {
			heap.Push(state.ready, down)
		}
	}
}

// abort marks id as the root cause of its own failure and every transitive
// dependent as aborted because of it.
func (state *runState) abort(id domain.NodeID, cause error) {
	n := &state.nodes[id]
	n.report.State = domain.StateAborted
	n.report.Trail = append(n.report.Trail, domain.StateAborted)
	n.report.Err = cause
	n.report.Cause = cause.Error()
	n.report.RootCause = n.report.Name
	state.s.metrics.NodeFinished(ports.OutcomeAborted)

	for _, down := range state.graph.Descendants(id) {
		d := &state.nodes[down]
		if d.report.State.Terminal() {
			continue
		}
		err := zerr.With(zerr.Wrap(domain.ErrUpstreamAborted, "upstream pod aborted"), "upstream", n.report.Name)
		state.markAborted(down, err, n.report.Name)
	}
}

func (state *runState) markAborted(id domain.NodeID, cause error, rootCause string) {
	d := &state.nodes[id]
	d.report.State = domain.StateAborted
	d.report.Trail = append(d.report.Trail, domain.StateAborted)
	d.report.Err = cause
	d.report.Cause = cause.Error()
	d.report.RootCause = rootCause
	state.s.metrics.NodeFinished(ports.OutcomeAborted)
}

func (state *runState) transition(id domain.NodeID, to domain.NodeState) {
	n := &state.nodes[id]
	n.report.State = to
	n.report.Trail = append(n.report.Trail, to)
}

// finish aborts every node the run never reached and assembles the report.
func (state *runState) finish() (*domain.RunReport, error) {
	runErr := state.fatal
	if runErr == nil && state.ctx.Err() != nil {
		runErr = errors.Join(domain.ErrRunAborted, context.Cause(state.ctx))
	}

	for _, id := range state.graph.Order() {
		if state.nodes[id].report.State.Terminal() {
			continue
		}
		cause := zerr.Wrap(domain.ErrRunAborted, "run stopped before the node started")
		state.markAborted(id, cause, state.fatalNode)
	}

	state.report.FinishedAt = state.s.now()
	state.report.Nodes = make([]domain.NodeReport, 0, len(state.nodes))
	for _, id := range state.graph.Order() {
		state.report.Nodes = append(state.report.Nodes, state.nodes[id].report)
	}
	return state.report, runErr
}

// readyQueue pops ready nodes in topological rank order.
type readyQueue struct {
	graph *domain.Graph
	ids   []domain.NodeID
}

func (q *readyQueue) Len() int           { return len(q.ids) }
func (q *readyQueue) Less(i, j int) bool { return q.graph.Rank(q.ids[i]) < q.graph.Rank(q.ids[j]) }
func (q *readyQueue) Swap(i, j int)      { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *readyQueue) Push(x any)         { q.ids = append(q.ids, x.(domain.NodeID)) }

func (q *readyQueue) Pop() any {
	last := q.ids[len(q.ids)-1]
	q.ids = q.ids[:len(q.ids)-1]
	return last
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

func (noopTracer) EmitPlan(context.Context, []string, map[string][]string) {}

type noopSpan struct{}

func (noopSpan) Write(p []byte) (int, error) { return len(p), nil }
func (noopSpan) End()                        {}
func (noopSpan) RecordError(error)           {}
func (noopSpan) SetAttribute(string, any)    {}

type noopMetrics struct{}

func (noopMetrics) NodeFinished(string)                     {}
func (noopMetrics) ExecutionObserved(string, time.Duration) {}
func (noopMetrics) StoreOperation(string, string)           {}
