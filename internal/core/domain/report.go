package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRunID returns a new sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// NodeReport is the outcome of one node in a run.
type NodeReport struct {
	Name     string                 `json:"name"`
	Pod      Digest                 `json:"pod"`
	Resolved *Digest                `json:"resolved,omitempty"`
	State    NodeState              `json:"state"`
	Trail    []NodeState            `json:"trail"`
	CacheHit bool                   `json:"cache_hit"`
	Executed bool                   `json:"executed"`
	Outputs  map[string]ArtifactRef `json:"outputs,omitempty"`
	ExitCode int                    `json:"exit_code"`
	Duration time.Duration          `json:"duration_ns"`
	// Cause describes why the node was aborted.
	Cause string `json:"cause,omitempty"`
	// RootCause names the node whose failure aborted this one; it is the node itself for direct failures.
	RootCause string `json:"root_cause,omitempty"`
	Err       error  `json:"-"`
}

// RunReport summarizes a pipeline run. Nodes are listed in topological order.
type RunReport struct {
	RunID      string       `json:"run_id"`
	Pipeline   Digest       `json:"pipeline"`
	Name       string       `json:"name"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Nodes      []NodeReport `json:"nodes"`
}

// Node returns the report of the named node.
func (r *RunReport) Node(name string) (NodeReport, bool) {
	for _, n := range r.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeReport{}, false
}

// CacheHits returns the names of nodes satisfied from the store.
func (r *RunReport) CacheHits() []string {
	return r.names(func(n NodeReport) bool { return n.CacheHit })
}

// Executions returns the names of nodes the executor ran in this run.
func (r *RunReport) Executions() []string {
	return r.names(func(n NodeReport) bool { return n.Executed })
}

// Aborted returns the names of aborted nodes.
func (r *RunReport) Aborted() []string {
	return r.names(func(n NodeReport) bool { return n.State == StateAborted })
}

// RootCauses returns the reports of nodes that failed on their own account.
func (r *RunReport) RootCauses() []NodeReport {
	var out []NodeReport
	for _, n := range r.Nodes {
		if n.State == StateAborted && n.RootCause == n.Name {
			out = append(out, n)
		}
	}
	return out
}

// Complete reports whether every node reached Done.
func (r *RunReport) Complete() bool {
	for _, n := range r.Nodes {
		if n.State != StateDone {
			return false
		}
	}
	return true
}

func (r *RunReport) names(keep func(NodeReport) bool) []string {
	var out []string
	for _, n := range r.Nodes {
		if keep(n) {
			out = append(out, n.Name)
		}
	}
	return out
}
