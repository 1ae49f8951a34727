package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/core/domain"
)

func TestNewAnnotationEntry(t *testing.T) {
	t.Parallel()

	d := domain.Hash([]byte("pod"))

	_, ok := domain.NewAnnotationEntry(domain.ClassPod, nil, d)
	assert.False(t, ok)
	_, ok = domain.NewAnnotationEntry(domain.ClassPod, &domain.Annotation{Version: "1"}, d)
	assert.False(t, ok, "unnamed definitions are not indexed")

	e, ok := domain.NewAnnotationEntry(domain.ClassPod, &domain.Annotation{Name: " shout ", Version: "0.1.0 "}, d)
	require.True(t, ok)
	assert.Equal(t, domain.AnnotationEntry{Kind: domain.ClassPod, Name: "shout", Version: "0.1.0", Digest: d}, e)
	assert.Equal(t, "shout@0.1.0", e.Label())
	assert.Equal(t, domain.AnnotationKey(domain.ClassPod, "shout", "0.1.0"), e.Key())
}

func TestAnnotationKey_Distinct(t *testing.T) {
	t.Parallel()

	base := domain.AnnotationKey(domain.ClassPod, "a", "1")
	assert.NotEqual(t, base, domain.AnnotationKey(domain.ClassPipeline, "a", "1"))
	assert.NotEqual(t, base, domain.AnnotationKey(domain.ClassPod, "a", "2"))
	assert.NotEqual(t, domain.AnnotationKey(domain.ClassPod, "a\x001", ""), base)
}

func TestAnnotationEntry_EncodeDecode(t *testing.T) {
	t.Parallel()

	e := domain.AnnotationEntry{Kind: domain.ClassPipeline, Name: "letters", Version: "1.0.0", Digest: domain.Hash([]byte("p"))}
	blob, err := e.Encode()
	require.NoError(t, err)
	class, ok := domain.ClassOf(blob)
	require.True(t, ok)
	assert.Equal(t, domain.ClassAnnotation, class)

	got, err := domain.DecodeAnnotationEntry(blob)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = domain.DecodeAnnotationEntry([]byte(`{"class":"pod","spec":{}}`))
	require.ErrorIs(t, err, domain.ErrDefinitionDecodeFailed)
}

func TestParseLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, name, version string
	}{
		{in: "shout@0.1.0", name: "shout", version: "0.1.0"},
		{in: "shout", name: "shout"},
		{in: "@scope/tool@2", name: "@scope/tool", version: "2"},
		{in: " frame@ ", name: "frame"},
	}
	for _, tt := range tests {
		name, version := domain.ParseLabel(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.version, version, tt.in)
	}
}
