package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestParseSlotRef(t *testing.T) {
	t.Parallel()

	ref, err := domain.ParseSlotRef(" extract.clean ")
	require.NoError(t, err)
	assert.Equal(t, domain.SlotRef{Node: "extract", Slot: "clean"}, ref)
	assert.Equal(t, "extract.clean", ref.String())

	for _, in := range []string{"", "extract", ".clean", "extract."} {
		_, err := domain.ParseSlotRef(in)
		require.ErrorIs(t, err, domain.ErrInvalidSlotRef, "input %q", in)
	}
}

func TestNewPipeline_OrderIndependent(t *testing.T) {
	t.Parallel()

	src := newPassPod(t, "src", nil)
	sink := newPassPod(t, "sink", []string{"in"})

	edges := []domain.Edge{
		{From: domain.SlotRef{Node: "a", Slot: "out"}, To: domain.SlotRef{Node: "b", Slot: "in"}},
		{From: domain.SlotRef{Node: "a", Slot: "out"}, To: domain.SlotRef{Node: "c", Slot: "in"}},
	}
	forward, err := domain.NewPipeline(nil, []domain.PipelineNode{
		{Name: "a", Pod: src},
		{Name: "b", Pod: sink},
		{Name: "c", Pod: sink},
	}, edges)
	require.NoError(t, err)

	backward, err := domain.NewPipeline(
		&domain.Annotation{Name: "fanout", Version: "1"},
		[]domain.PipelineNode{
			{Name: "c", Pod: sink},
			{Name: "b", Pod: sink},
			{Name: "a", Pod: src},
		},
		[]domain.Edge{edges[1], edges[0]},
	)
	require.NoError(t, err)

	assert.Equal(t, forward.Digest(), backward.Digest())
	assert.Equal(t, "fanout", backward.Name())
	assert.Equal(t, []string{"a", "b", "c"}, []string{forward.Nodes[0].Name, forward.Nodes[1].Name, forward.Nodes[2].Name})
	assert.Len(t, forward.PodDigests(), 2)
}

func TestNewPipeline_LiteralsChangeIdentity(t *testing.T) {
	t.Parallel()

	pod := newPassPod(t, "literal", []string{"in"})
	build := func(v any) *domain.Pipeline {
		p, err := domain.NewPipeline(nil, []domain.PipelineNode{
			{Name: "n", Pod: pod, Literals: map[string]any{"in": v}},
		}, nil)
		require.NoError(t, err)
		return p
	}

	assert.Equal(t, build(1).Digest(), build(1.0).Digest())
	assert.Equal(t, build(" x ").Digest(), build("x").Digest())
	assert.NotEqual(t, build(1).Digest(), build(2).Digest())
	assert.NotEqual(t, build("1").Digest(), build(1).Digest())
}

func TestNewPipeline_Rejects(t *testing.T) {
	t.Parallel()

	pod := newPassPod(t, "reject", []string{"in"})

	t.Run("dotted node name", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewPipeline(nil, []domain.PipelineNode{{Name: "a.b", Pod: pod}}, nil)
		require.ErrorIs(t, err, domain.ErrInvalidPipeline)
	})

	t.Run("missing pod", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewPipeline(nil, []domain.PipelineNode{{Name: "a"}}, nil)
		require.ErrorIs(t, err, domain.ErrInvalidPipeline)
	})

	t.Run("duplicate node", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewPipeline(nil, []domain.PipelineNode{{Name: "a", Pod: pod}, {Name: " a", Pod: pod}}, nil)
		require.ErrorIs(t, err, domain.ErrInvalidPipeline)
	})

	t.Run("NaN literal", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewPipeline(nil, []domain.PipelineNode{
			{Name: "a", Pod: pod, Literals: map[string]any{"in": math.NaN()}},
		}, nil)
		require.ErrorIs(t, err, domain.ErrEncoding)

		zErr, ok := err.(*zerr.Error)
		require.True(t, ok, "expected *zerr.Error, got %T", err)
		assert.Equal(t, "in", zErr.Metadata()["slot"])
	})
}

func TestDecodePipeline_RoundTrip(t *testing.T) {
	t.Parallel()

	src := newPassPod(t, "src", nil)
	sink := newPassPod(t, "sink", []string{"in", "scale"})
	original, err := domain.NewPipeline(nil, []domain.PipelineNode{
		{Name: "a", Pod: src},
		{Name: "b", Pod: sink, Literals: map[string]any{
			"scale": map[string]any{"factor": uint64(math.MaxUint64), "ratio": 0.25},
		}},
	}, []domain.Edge{
		{From: domain.SlotRef{Node: "a", Slot: "out"}, To: domain.SlotRef{Node: "b", Slot: "in"}},
	})
	require.NoError(t, err)

	pods := map[domain.Digest]*domain.Pod{src.Digest(): src, sink.Digest(): sink}
	decoded, err := domain.DecodePipeline(original.Canonical(), func(d domain.Digest) (*domain.Pod, error) {
		p, ok := pods[d]
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrBlobNotFound, "pod not found"), "digest", d.String())
		}
		return p, nil
	})
	require.NoError(t, err)

	assert.Equal(t, original.Digest(), decoded.Digest())
	assert.Equal(t, original.Canonical(), decoded.Canonical())
}

func TestDecodePipeline_MissingPod(t *testing.T) {
	t.Parallel()

	pod := newPassPod(t, "lonely", nil)
	p, err := domain.NewPipeline(nil, []domain.PipelineNode{{Name: "a", Pod: pod}}, nil)
	require.NoError(t, err)

	_, err = domain.DecodePipeline(p.Canonical(), func(domain.Digest) (*domain.Pod, error) {
		return nil, zerr.Wrap(domain.ErrBlobNotFound, "pod not found")
	})
	require.ErrorIs(t, err, domain.ErrBlobNotFound)
}

// newPassPod returns a pod with the given inputs and a single "out" output.
// The tag makes the command, and so the digest, unique.
func newPassPod(t *testing.T, tag string, inputs []string) *domain.Pod {
	t.Helper()

	def := domain.Pod{
		Command: []string{"sh", "-c", "echo " + tag + " > out"},
		Outputs: []domain.OutputSlot{{Name: "out", Path: "out"}},
	}
	for _, in := range inputs {
		def.Inputs = append(def.Inputs, domain.InputSlot{Name: in, Path: "in/" + in})
	}

	pod, err := domain.NewPod(def)
	require.NoError(t, err)
	return pod
}
