// Package progrock records a run on a progrock tape: one vertex per span,
// linked to the vertices of the nodes it depends on.
package progrock

import (
	"context"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
)

// Renderer implements ports.Renderer on a progrock writer.
type Renderer struct {
	w   progrock.Writer
	rec *progrock.Recorder

	mu       sync.Mutex
	deps     map[string][]string
	vertices map[string]*progrock.VertexRecorder
}

// New creates a Renderer recording to a fresh tape.
func New() *Renderer {
	return NewRenderer(progrock.NewTape())
}

// NewRenderer creates a Renderer recording to w.
func NewRenderer(w progrock.Writer) *Renderer {
	return &Renderer{
		w:        w,
		rec:      progrock.NewRecorder(w),
		deps:     make(map[string][]string),
		vertices: make(map[string]*progrock.VertexRecorder),
	}
}

// VertexDigest is the vertex identity of a node name.
func VertexDigest(name string) digest.Digest {
	return digest.FromString(name)
}

// Start does nothing.
func (r *Renderer) Start(context.Context) error {
	return nil
}

// Stop closes the underlying writer.
func (r *Renderer) Stop() error {
	return r.w.Close()
}

// Wait does nothing.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit keeps the dependencies so vertices can name their inputs.
func (r *Renderer) OnPlanEmit(_ []string, deps map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range deps {
		r.deps[k] = v
	}
}

// OnTaskStart opens a vertex for the span.
func (r *Renderer) OnTaskStart(spanID, _, name string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var opts []progrock.VertexOpt
	if deps := r.deps[name]; len(deps) > 0 {
		inputs := make([]digest.Digest, len(deps))
		for i, d := range deps {
			inputs[i] = VertexDigest(d)
		}
		opts = append(opts, progrock.WithInputs(inputs...))
	}
	r.vertices[spanID] = r.rec.Vertex(VertexDigest(name), name, opts...)
}

// OnTaskLog writes data to the vertex's stdout stream.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	v, ok := r.vertices[spanID]
	r.mu.Unlock()
	if ok {
		_, _ = v.Stdout().Write(data)
	}
}

// OnTaskComplete closes the vertex, marking cache hits as cached.
func (r *Renderer) OnTaskComplete(spanID string, _ time.Time, err error, cached bool) {
	r.mu.Lock()
	v, ok := r.vertices[spanID]
	delete(r.vertices, spanID)
	r.mu.Unlock()
	if !ok {
		return
	}
	if cached {
		v.Cached()
	}
	v.Done(err)
}
