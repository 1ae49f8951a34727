package domain

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"time"
)

// ArtifactKind tells how an artifact blob is laid out.
type ArtifactKind string

const (
	// ArtifactFile is a single file stored as raw bytes.
	ArtifactFile ArtifactKind = "file"
	// ArtifactTree is a directory stored as a canonical TreeManifest.
	ArtifactTree ArtifactKind = "tree"
)

// ArtifactRef points at an output artifact in the store.
type ArtifactRef struct {
	Digest Digest       `json:"digest"`
	Size   int64        `json:"size"`
	Kind   ArtifactKind `json:"kind"`
}

// CommandSpec is what an executor needs to run one pod.
type CommandSpec struct {
	Pod       Digest
	Node      string
	Image     string
	Command   []string
	Env       map[string]string
	Outputs   []OutputSlot
	OutputDir string
	Resources Resources
}

// ResolvedInput is one input slot with its concrete value substituted.
// Exactly one of Literal and Artifact is meaningful; Artifact wins when set.
type ResolvedInput struct {
	Slot     string
	Path     string
	Literal  any
	Artifact *ArtifactRef
}

// ExecutionStatus is the completion status reported by an executor.
type ExecutionStatus string

const (
	// ExecutionSucceeded means the command exited successfully and outputs were collected.
	ExecutionSucceeded ExecutionStatus = "succeeded"
	// ExecutionFailed means the command failed, timed out, or could not be run.
	ExecutionFailed ExecutionStatus = "failed"
)

// ExecutionOutcome is the result of one executor invocation.
type ExecutionOutcome struct {
	Outputs  map[string]ArtifactRef
	Status   ExecutionStatus
	Cause    error
	ExitCode int
}

type resolvedDocument struct {
	Pod    Digest                   `json:"pod"`
	Inputs map[string]resolvedValue `json:"inputs"`
}

type resolvedValue struct {
	Kind     string  `json:"kind"`
	Value    any     `json:"value,omitempty"`
	Artifact *Digest `json:"artifact,omitempty"`
}

// ResolvedDigest returns the cache key of running pod with inputs.
// Input order does not matter.
func ResolvedDigest(pod Digest, inputs []ResolvedInput) (Digest, error) {
	doc := resolvedDocument{
		Pod:    pod,
		Inputs: make(map[string]resolvedValue, len(inputs)),
	}
	for _, in := range inputs {
		if in.Artifact != nil {
			d := in.Artifact.Digest
			doc.Inputs[in.Slot] = resolvedValue{Kind: "artifact", Artifact: &d}
			continue
		}
		doc.Inputs[in.Slot] = resolvedValue{Kind: "literal", Value: in.Literal}
	}

	b, err := encodeEnvelope(ClassResolvedPod, doc)
	if err != nil {
		return Digest{}, err
	}
	return Hash(b), nil
}

// ExecutionRecord is the persisted result of one pod under one resolved-input digest.
type ExecutionRecord struct {
	Pod        Digest                 `json:"pod"`
	Resolved   Digest                 `json:"resolved"`
	Outputs    map[string]ArtifactRef `json:"outputs"`
	ExitCode   int                    `json:"exit_code"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Encode returns the canonical bytes of the record.
func (r *ExecutionRecord) Encode() ([]byte, error) {
	return encodeEnvelope(ClassExecutionRecord, r)
}

// DecodeRecord parses a stored execution record.
func DecodeRecord(b []byte) (*ExecutionRecord, error) {
	rec, err := decodeEnvelope[ExecutionRecord](ClassExecutionRecord, b)
	if err != nil {
		return nil, errors.Join(ErrRecordDecodeFailed, err)
	}
	return &rec, nil
}

// SameResult reports whether two records describe the same outputs and exit
// code. Timing metadata is ignored.
func (r *ExecutionRecord) SameResult(o *ExecutionRecord) bool {
	return r.Pod == o.Pod &&
		r.Resolved == o.Resolved &&
		r.ExitCode == o.ExitCode &&
		maps.Equal(r.Outputs, o.Outputs)
}

// TreeEntry is one file inside a tree artifact.
type TreeEntry struct {
	Digest Digest `json:"digest"`
	Size   int64  `json:"size"`
	Mode   uint32 `json:"mode"`
}

// TreeManifest describes a directory output. Keys are slash-separated paths
// relative to the output directory.
type TreeManifest struct {
	Entries map[string]TreeEntry `json:"entries"`
}

// Encode returns the canonical bytes of the manifest.
func (t *TreeManifest) Encode() ([]byte, error) {
	return encodeEnvelope(ClassTree, t)
}

// Paths returns the entry paths in sorted order.
func (t *TreeManifest) Paths() []string {
	return slices.SortedFunc(maps.Keys(t.Entries), strings.Compare)
}

// DecodeTree parses a stored tree manifest.
func DecodeTree(b []byte) (*TreeManifest, error) {
	t, err := decodeEnvelope[TreeManifest](ClassTree, b)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
