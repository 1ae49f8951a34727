package domain

// NodeState is the lifecycle state of a node within one pipeline run.
//
//	Pending -> ResolvingInputs -> CacheHit -> Done
//	                           -> CacheMiss -> Running -> Succeeded -> Done
//	                                                   -> Failed -> Aborted
type NodeState string

const (
	// StatePending means the node waits for its upstream nodes.
	StatePending NodeState = "Pending"
	// StateResolvingInputs means the node's inputs are substituted and its cache key computed.
	StateResolvingInputs NodeState = "ResolvingInputs"
	// StateCacheHit means a record for the resolved digest already exists.
	StateCacheHit NodeState = "CacheHit"
	// StateCacheMiss means the node has to be executed.
	StateCacheMiss NodeState = "CacheMiss"
	// StateRunning means the executor is running the node.
	StateRunning NodeState = "Running"
	// StateSucceeded means the executor reported success.
	StateSucceeded NodeState = "Succeeded"
	// StateFailed means the executor, the store or input resolution failed.
	StateFailed NodeState = "Failed"
	// StateDone is terminal: the node has a record.
	StateDone NodeState = "Done"
	// StateAborted is terminal: the node failed or an upstream node was aborted.
	StateAborted NodeState = "Aborted"
)

// Terminal reports whether s ends a node's lifecycle.
func (s NodeState) Terminal() bool {
	return s == StateDone || s == StateAborted
}
