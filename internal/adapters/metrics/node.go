package metrics

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the graft node for the metrics recorder.
const NodeID graft.ID = "adapter.metrics"

func init() {
	graft.Register(graft.Node[*Recorder]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Recorder, error) {
			return New(), nil
		},
	})
}
