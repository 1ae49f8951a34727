package scheduler

import (
	"context"
	"errors"
	"io"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// flightJob is one request for the record of a resolved digest.
type flightJob struct {
	caller   uint64
	node     domain.GraphNode
	resolved domain.Digest
	inputs   []domain.ResolvedInput
	noCache  bool
	logs     io.Writer
}

// flight is the shared outcome of a job. Every caller deduplicated onto the
// same digest receives the same value; leader identifies the caller whose
// job ran.
type flight struct {
	leader   uint64
	record   *domain.ExecutionRecord
	hit      bool
	executed bool
	exitCode int
	err      error
	fatal    bool

	// interrupted is set when the job stopped because its leader's run
	// context was done.
	interrupted bool
}

// produce returns the record for job.resolved: the stored one on a cache
// hit, otherwise the record of a fresh execution once it is committed.
func (s *Scheduler) produce(ctx context.Context, job flightJob) flight {
	f := flight{leader: job.caller}

	if !job.noCache {
		rec, ok, err := s.lookup(ctx, job.resolved)
		if err != nil {
			f.err = zerr.With(err, "node", job.node.Name)
			return f
		}
		if ok {
			f.record = rec
			f.hit = true
			f.exitCode = rec.ExitCode
			return f
		}
	}

	spec := job.node.Pod.CommandSpec(job.node.Name)
	started := s.now()
	outcome, err := s.executor.Execute(ctx, spec, job.inputs, job.logs)
	finished := s.now()
	f.executed = true
	f.exitCode = outcome.ExitCode

	if err == nil && outcome.Status != domain.ExecutionSucceeded {
		err = outcome.Cause
		if err == nil {
			err = zerr.Wrap(domain.ErrExecutionFailed, "executor reported failure")
		}
	}
	if err != nil {
		s.metrics.ExecutionObserved(string(domain.ExecutionFailed), finished.Sub(started))
		if !errors.Is(err, domain.ErrExecutionFailed) {
			err = zerr.Wrap(errors.Join(domain.ErrExecutionFailed, err), "execution failed")
		}
		f.err = zerr.With(err, "node", job.node.Name)
		// Outputs are stored by content while the pod runs, so a store
		// conflict can surface as the execution's cause.
		f.fatal = errors.Is(err, domain.ErrIntegrityViolation)
		return f
	}
	s.metrics.ExecutionObserved(string(domain.ExecutionSucceeded), finished.Sub(started))

	for _, out := range spec.Outputs {
		if _, ok := outcome.Outputs[out.Name]; !ok {
			f.err = zerr.With(zerr.With(zerr.Wrap(domain.ErrMissingOutput, "executor did not report output"), "slot", out.Name), "node", job.node.Name)
			return f
		}
	}

	rec := &domain.ExecutionRecord{
		Pod:        spec.Pod,
		Resolved:   job.resolved,
		Outputs:    outcome.Outputs,
		ExitCode:   outcome.ExitCode,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
	}
	committed, err := s.commit(ctx, rec)
	if err != nil {
		f.err = zerr.With(err, "node", job.node.Name)
		f.fatal = errors.Is(err, domain.ErrIntegrityViolation)
		return f
	}
	f.record = committed
	return f
}

func (s *Scheduler) lookup(ctx context.Context, resolved domain.Digest) (*domain.ExecutionRecord, bool, error) {
	blob, ok, err := s.store.Get(ctx, resolved)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := domain.DecodeRecord(blob)
	if err != nil {
		return nil, false, zerr.With(err, "resolved", resolved.String())
	}
	return rec, true, nil
}

// commit writes rec under its resolved digest. When another writer got there
// first, its record is adopted if it describes the same result.
func (s *Scheduler) commit(ctx context.Context, rec *domain.ExecutionRecord) (*domain.ExecutionRecord, error) {
	blob, err := rec.Encode()
	if err != nil {
		return nil, err
	}

	err = s.store.Put(ctx, rec.Resolved, blob)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrIntegrityViolation) {
		return nil, err
	}

	existing, ok, lerr := s.lookup(ctx, rec.Resolved)
	if lerr != nil {
		return nil, lerr
	}
	if ok && existing.SameResult(rec) {
		return existing, nil
	}
	return nil, zerr.With(
		zerr.Wrap(domain.ErrIntegrityViolation, "stored record differs from this execution"),
		"resolved", rec.Resolved.String(),
	)
}

var _ ports.Metrics = noopMetrics{}
