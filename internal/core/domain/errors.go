package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

var (
	// ErrEncoding is returned when a definition contains a value with no canonical representation.
	ErrEncoding = zerr.New("value has no canonical encoding")

	// ErrInvalidDigest is returned when a digest string cannot be parsed.
	ErrInvalidDigest = zerr.New("invalid digest")

	// ErrInvalidPod is returned when a pod definition is structurally invalid.
	ErrInvalidPod = zerr.New("invalid pod definition")

	// ErrInvalidPipeline is returned when a pipeline definition is structurally invalid.
	ErrInvalidPipeline = zerr.New("invalid pipeline definition")

	// ErrInvalidSlotRef is returned when a "node.slot" reference cannot be parsed.
	ErrInvalidSlotRef = zerr.New("invalid slot reference, expected format: node.slot")

	// ErrDanglingReference is returned when an edge or binding references a node or slot that does not exist.
	ErrDanglingReference = zerr.New("dangling reference")

	// ErrUnboundInput is returned when a required input slot has no binding.
	ErrUnboundInput = zerr.New("unbound input")

	// ErrDuplicateBinding is returned when an input slot is bound more than once.
	ErrDuplicateBinding = zerr.New("duplicate binding")

	// ErrCyclicDependency is returned when the pipeline edges induce a cycle.
	ErrCyclicDependency = zerr.New("cyclic dependency")

	// ErrIntegrityViolation is returned when a different blob is written under an existing digest.
	ErrIntegrityViolation = zerr.New("integrity violation")

	// ErrStoreIO is returned when a store backend operation fails.
	ErrStoreIO = zerr.New("store backend failure")

	// ErrStoreCreateFailed is returned when a store backend cannot be initialized.
	ErrStoreCreateFailed = zerr.New("failed to create store")

	// ErrRecordDecodeFailed is returned when a stored execution record cannot be decoded.
	ErrRecordDecodeFailed = zerr.New("failed to decode execution record")

	// ErrDefinitionDecodeFailed is returned when a stored definition cannot be decoded.
	ErrDefinitionDecodeFailed = zerr.New("failed to decode definition")

	// ErrExecutionFailed is returned when a pod's command fails or the executor reports an abnormal status.
	ErrExecutionFailed = zerr.New("pod execution failed")

	// ErrMissingOutput is returned when an execution does not produce a declared output slot.
	ErrMissingOutput = zerr.New("declared output was not produced")

	// ErrUpstreamAborted is recorded on nodes that were aborted because a dependency was aborted.
	ErrUpstreamAborted = zerr.New("upstream pod aborted")

	// ErrRunAborted is recorded on nodes that never started because the run was stopped.
	ErrRunAborted = zerr.New("run aborted")

	// ErrPipelineFailed is returned when a run finishes with one or more aborted nodes.
	ErrPipelineFailed = zerr.New("pipeline run did not complete")

	// ErrInvalidInputPath is returned when an input or output path escapes the work directory.
	ErrInvalidInputPath = zerr.New("path must be relative and stay inside the work directory")

	// ErrConfigReadFailed is returned when a definition or settings file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when a definition or settings file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrUnknownPod is returned when a pipeline node references a pod that is not defined.
	ErrUnknownPod = zerr.New("unknown pod")

	// ErrUnknownBackend is returned when the configured store backend is not supported.
	ErrUnknownBackend = zerr.New("unknown store backend")

	// ErrUnknownExecutor is returned when the configured executor kind is not supported.
	ErrUnknownExecutor = zerr.New("unknown executor kind")

	// ErrUnknownProgress is returned when the requested progress mode is not supported.
	ErrUnknownProgress = zerr.New("unknown progress mode")

	// ErrBlobNotFound is returned when a requested digest is not present in the store.
	ErrBlobNotFound = zerr.New("blob not found")

	// ErrAnnotationNotFound is returned when no definition is indexed under a name and version.
	ErrAnnotationNotFound = zerr.New("no definition with that name and version")

	// ErrAnnotationConflict is returned when a name and version already refer to another definition.
	ErrAnnotationConflict = zerr.New("name and version already refer to another definition")

	// ErrListUnsupported is returned when the store backend cannot enumerate its entries.
	ErrListUnsupported = zerr.New("store backend cannot list entries")
)

// IsGraphError reports whether err is one of the structural graph errors
// raised before any pod is scheduled.
func IsGraphError(err error) bool {
	return errors.Is(err, ErrDanglingReference) ||
		errors.Is(err, ErrUnboundInput) ||
		errors.Is(err, ErrDuplicateBinding) ||
		errors.Is(err, ErrCyclicDependency)
}
