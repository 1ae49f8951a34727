package domain_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestEncodeCanonical_SortsKeysAndTrims(t *testing.T) {
	t.Parallel()

	got, err := domain.EncodeCanonical(map[string]any{
		"zeta":  []any{1, "  two ", true, nil},
		"alpha": map[string]any{"b": 2, "a": 1},
		" mid ": "x",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":1,"b":2},"mid":"x","zeta":[1,"two",true,null]}`, string(got))
}

func TestEncodeCanonical_StructTags(t *testing.T) {
	t.Parallel()

	type doc struct {
		Beta    int               `json:"beta"`
		Alpha   string            `json:"alpha"`
		Skipped string            `json:"-"`
		Empty   []string          `json:"empty,omitempty"`
		Labels  map[string]string `json:"labels,omitempty"`
		Plain   bool
		hidden  string
	}

	got, err := domain.EncodeCanonical(doc{Beta: 2, Alpha: "a", Skipped: "s", hidden: "h"})
	require.NoError(t, err)
	assert.Equal(t, `{"Plain":false,"alpha":"a","beta":2}`, string(got))
}

func TestEncodeCanonical_Numbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "integral float", value: 1.0, want: "1"},
		{name: "negative zero", value: math.Copysign(0, -1), want: "0"},
		{name: "fraction", value: 0.1, want: "0.1"},
		{name: "large float", value: 1e21, want: "1e+21"},
		{name: "negative int", value: int64(-42), want: "-42"},
		{name: "max uint64", value: uint64(math.MaxUint64), want: "18446744073709551615"},
		{name: "json number", value: json.Number("2.50"), want: "2.5"},
		{name: "json integer", value: json.Number("7"), want: "7"},
		{name: "duration", value: time.Second, want: "1000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := domain.EncodeCanonical(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEncodeCanonical_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() map[string]any {
		m := make(map[string]any)
		for _, k := range []string{"q", "w", "e", "r", "t", "y", "u", "i", "o", "p"} {
			m[k] = map[string]any{"v": k, "n": len(k)}
		}
		return m
	}

	first, err := domain.EncodeCanonical(build())
	require.NoError(t, err)
	for range 20 {
		again, err := domain.EncodeCanonical(build())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEncodeCanonical_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		path  string
	}{
		{name: "NaN", value: map[string]any{"x": math.NaN()}, path: "$.x"},
		{name: "infinity", value: []any{1, math.Inf(-1)}, path: "$[1]"},
		{name: "invalid utf8", value: map[string]any{"s": "\xff"}, path: "$.s"},
		{name: "int keys", value: map[int]string{1: "a"}, path: "$"},
		{name: "channel", value: map[string]any{"c": make(chan int)}, path: "$.c"},
		{name: "complex", value: complex(1, 2), path: "$"},
		{name: "malformed number", value: json.Number("1x"), path: "$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := domain.EncodeCanonical(tt.value)
			require.ErrorIs(t, err, domain.ErrEncoding)

			zErr, ok := err.(*zerr.Error)
			require.True(t, ok, "expected *zerr.Error, got %T", err)
			assert.Equal(t, tt.path, zErr.Metadata()["path"])
		})
	}
}

func TestEncodeCanonical_DuplicateKeysAfterTrim(t *testing.T) {
	t.Parallel()

	_, err := domain.EncodeCanonical(map[string]any{"a": 1, " a": 2})
	require.ErrorIs(t, err, domain.ErrEncoding)
}

func TestDecodeCanonical(t *testing.T) {
	t.Parallel()

	t.Run("round trip is byte identical", func(t *testing.T) {
		t.Parallel()
		in := []byte(`{"a":[1,2.5,"x"],"b":{"c":18446744073709551615}}`)
		v, err := domain.DecodeCanonical(in)
		require.NoError(t, err)

		out, err := domain.EncodeCanonical(v)
		require.NoError(t, err)
		assert.Equal(t, string(in), string(out))
	})

	t.Run("trailing data", func(t *testing.T) {
		t.Parallel()
		_, err := domain.DecodeCanonical([]byte(`{"a":1} {"b":2}`))
		require.ErrorIs(t, err, domain.ErrDefinitionDecodeFailed)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		_, err := domain.DecodeCanonical([]byte(`{"a":`))
		require.Error(t, err)
	})
}

func TestClassOf(t *testing.T) {
	t.Parallel()

	pod := newExtractPod(t)
	class, ok := domain.ClassOf(pod.Canonical())
	require.True(t, ok)
	assert.Equal(t, domain.ClassPod, class)

	_, ok = domain.ClassOf([]byte("raw artifact bytes"))
	assert.False(t, ok)
}

func TestCanonical_Golden(t *testing.T) {
	pod := newExtractPod(t)
	pipeline, err := domain.NewPipeline(nil, []domain.PipelineNode{
		{Name: "extract", Pod: pod, Literals: map[string]any{"raw": "hello"}},
	}, nil)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "pod_canonical", pod.Canonical())
	g.Assert(t, "pipeline_canonical", pipeline.Canonical())

	assert.Equal(t, "cc56f39d8333bcb3d4edc5e13b451173b2abb57921577da352b2140d135789ab", pod.Digest().String())
	assert.Equal(t, "a6376074ce0a1d4aae807a164d956366b834802cbfff48be4a190b60afbc9d87", pipeline.Digest().String())
}

func newExtractPod(t *testing.T) *domain.Pod {
	t.Helper()

	pod, err := domain.NewPod(domain.Pod{
		Annotation: &domain.Annotation{Name: "extract", Version: "1.0.0"},
		Image:      "alpine:3.20",
		Command:    []string{"sh", "-c", "cat in/raw.txt > out/clean.txt"},
		Env:        map[string]string{"LANG": "C"},
		Inputs:     []domain.InputSlot{{Name: "raw", Path: "in/raw.txt"}},
		Outputs:    []domain.OutputSlot{{Name: "clean", Path: "out/clean.txt"}},
		Resources: domain.Resources{
			CPUs:        0.5,
			MemoryBytes: 256 << 20,
			Timeout:     time.Minute,
		},
	})
	require.NoError(t, err)
	return pod
}
