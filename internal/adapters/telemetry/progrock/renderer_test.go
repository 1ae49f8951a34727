package progrock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vito/progrock"
	orcaprogrock "go.trai.ch/orca/internal/adapters/telemetry/progrock"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Renderer = (*orcaprogrock.Renderer)(nil)

type captureWriter struct {
	mu       sync.Mutex
	vertices map[string]*progrock.Vertex
	logs     []byte
}

func (w *captureWriter) WriteStatus(u *progrock.StatusUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.vertices == nil {
		w.vertices = make(map[string]*progrock.Vertex)
	}
	for _, v := range u.Vertexes {
		w.vertices[v.Name] = v
	}
	for _, l := range u.Logs {
		w.logs = append(w.logs, l.Data...)
	}
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestRenderer_RecordsVertices(t *testing.T) {
	w := &captureWriter{}
	r := orcaprogrock.NewRenderer(w)
	require.NoError(t, r.Start(t.Context()))

	r.OnPlanEmit([]string{"a", "b", "c"}, map[string][]string{"b": {"a"}, "c": {"a"}})
	now := time.Now()

	r.OnTaskStart("s1", "", "a", now)
	r.OnTaskLog("s1", []byte("hello\n"))
	r.OnTaskComplete("s1", now, nil, true)

	r.OnTaskStart("s2", "", "b", now)
	r.OnTaskComplete("s2", now, zerr.New("boom"), false)

	r.OnTaskStart("s3", "", "c", now)
	r.OnTaskComplete("s3", now, nil, false)

	require.NoError(t, r.Stop())

	w.mu.Lock()
	defer w.mu.Unlock()

	require.Contains(t, w.vertices, "a")
	assert.True(t, w.vertices["a"].Cached)
	assert.Equal(t, []string{orcaprogrock.VertexDigest("a").String()}, w.vertices["b"].Inputs)
	require.NotNil(t, w.vertices["b"].Error)
	assert.Equal(t, "boom", *w.vertices["b"].Error)
	assert.Nil(t, w.vertices["c"].Error)
	assert.Contains(t, string(w.logs), "hello")
}

func TestRenderer_UnknownSpan(t *testing.T) {
	r := orcaprogrock.New()
	r.OnTaskLog("ghost", []byte("x"))
	r.OnTaskComplete("ghost", time.Now(), nil, false)
	require.NoError(t, r.Wait())
	require.NoError(t, r.Stop())
}
