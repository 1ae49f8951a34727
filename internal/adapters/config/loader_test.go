package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const extractPipeline = `
name: clean-text
pods:
  extract:
    version: 1.0.0
    image: alpine:3.20
    command: ["sh", "-c", "cat in/raw.txt > out/clean.txt"]
    env:
      LANG: C
    inputs:
      - name: raw
        path: in/raw.txt
    outputs:
      - name: clean
        path: out/clean.txt
    resources:
      cpus: 0.5
      memory_bytes: 268435456
      timeout: 1m
nodes:
  extract:
    pod: extract
    inputs:
      raw: {value: hello}
`

const linearPipeline = `
pods:
  stage:
    command: ["sh", "-c", "cat in/src > out"]
    inputs:
      - {name: src, path: in/src}
    outputs:
      - {name: out, path: out}
nodes:
  a:
    pod: stage
    inputs:
      src: seed
  b:
    pod: stage
    inputs:
      src: {from: a.out}
  c:
    pod: stage
    inputs:
      src: {from: b.out}
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), domain.DefaultPipelineFile)
	require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
	return path
}

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	return config.NewLoader(log)
}

func TestLoader_Load_PinnedIdentity(t *testing.T) {
	p, err := newLoader(t).Load(writeFile(t, extractPipeline))
	require.NoError(t, err)

	require.Len(t, p.Nodes, 1)
	pod := p.Nodes[0].Pod
	assert.Equal(t, "extract", pod.Name())
	assert.Equal(t, "cc56f39d8333bcb3d4edc5e13b451173b2abb57921577da352b2140d135789ab", pod.Digest().String())
	assert.Equal(t, "a6376074ce0a1d4aae807a164d956366b834802cbfff48be4a190b60afbc9d87", p.Digest().String())
	assert.Equal(t, "clean-text", p.Name())
}

func TestLoader_Load_LayoutIndependent(t *testing.T) {
	reordered := `
nodes:
  extract:
    inputs:
      raw:
        value: "  hello  "
    pod: extract
pods:
  extract:
    resources: {timeout: 60s, memory_bytes: 268435456, cpus: 0.50}
    outputs: [{path: out/clean.txt, name: clean}]
    inputs: [{path: in/raw.txt, name: raw}]
    env: {LANG: C}
    command:
      - sh
      - -c
      - cat in/raw.txt > out/clean.txt
    image: "alpine:3.20 "
    name: renamed
    description: annotations never change identity
`
	loader := newLoader(t)
	want, err := loader.Load(writeFile(t, extractPipeline))
	require.NoError(t, err)
	got, err := loader.Load(writeFile(t, reordered))
	require.NoError(t, err)

	assert.Equal(t, want.Digest(), got.Digest())
	assert.Equal(t, want.Canonical(), got.Canonical())
}

func TestLoader_Load_Linear(t *testing.T) {
	p, err := newLoader(t).Load(writeFile(t, linearPipeline))
	require.NoError(t, err)

	require.Len(t, p.Nodes, 3)
	require.Len(t, p.Edges, 2)
	assert.Equal(t, "a.out -> b.src", p.Edges[0].String())
	assert.Equal(t, "b.out -> c.src", p.Edges[1].String())
	assert.Equal(t, map[string]any{"src": "seed"}, p.Nodes[0].Literals)

	g, err := domain.BuildGraph(p)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestLoader_Load_ExplicitEdgesMatchFromBindings(t *testing.T) {
	explicit := `
pods:
  stage:
    command: ["sh", "-c", "cat in/src > out"]
    inputs:
      - {name: src, path: in/src}
    outputs:
      - {name: out, path: out}
nodes:
  a: {pod: stage, inputs: {src: seed}}
  b: {pod: stage}
  c: {pod: stage, inputs: {src: {from: b.out}}}
edges:
  - {from: a.out, to: b.src}
  - {from: b.out, to: c.src}
`
	loader := newLoader(t)
	want, err := loader.Load(writeFile(t, linearPipeline))
	require.NoError(t, err)
	got, err := loader.Load(writeFile(t, explicit))
	require.NoError(t, err)

	assert.Equal(t, want.Digest(), got.Digest())
}

func TestLoader_Load_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "malformed yaml",
			content: "pods: [",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "unknown pod",
			content: `
nodes:
  a: {pod: missing}
`,
			wantErr: domain.ErrUnknownPod,
		},
		{
			name: "value and from",
			content: `
pods:
  p: {command: ["true"], inputs: [{name: x}]}
nodes:
  a: {pod: p, inputs: {x: {value: 1, from: b.out}}}
`,
			wantErr: domain.ErrDuplicateBinding,
		},
		{
			name: "empty binding",
			content: `
pods:
  p: {command: ["true"], inputs: [{name: x}]}
nodes:
  a: {pod: p, inputs: {x: {}}}
`,
			wantErr: domain.ErrInvalidPipeline,
		},
		{
			name: "unknown binding key",
			content: `
pods:
  p: {command: ["true"], inputs: [{name: x}]}
nodes:
  a: {pod: p, inputs: {x: {literal: 1}}}
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "bad slot reference",
			content: `
pods:
  p: {command: ["true"], inputs: [{name: x}]}
nodes:
  a: {pod: p, inputs: {x: {from: nodot}}}
`,
			wantErr: domain.ErrInvalidSlotRef,
		},
		{
			name: "bad timeout",
			content: `
pods:
  p: {command: ["true"], resources: {timeout: soon}}
nodes:
  a: {pod: p}
`,
			wantErr: domain.ErrInvalidPod,
		},
		{
			name: "empty command",
			content: `
pods:
  p: {image: alpine}
nodes:
  a: {pod: p}
`,
			wantErr: domain.ErrInvalidPod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(t).Load(writeFile(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := newLoader(t).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, domain.ErrConfigReadFailed)
}

func TestLoader_Load_WarnsOnUnusedPod(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(`pod "spare" is defined but no node uses it`)

	content := `
pods:
  spare:
    command: ["true"]
  stage:
    command: ["sh", "-c", "cat in/src > out"]
    inputs:
      - {name: src, path: in/src}
    outputs:
      - {name: out, path: out}
nodes:
  a: {pod: stage, inputs: {src: seed}}
`
	_, err := config.NewLoader(log).Load(writeFile(t, content))
	require.NoError(t, err)
}
