package shell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/cas"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/core/domain"
)

func TestContainerArgs(t *testing.T) {
	inv := invocation{
		spec: domain.CommandSpec{
			Node:    "train",
			Image:   "python:3.12",
			Command: []string{"python", "train.py"},
			Resources: domain.Resources{
				CPUs:        1.5,
				MemoryBytes: 1 << 30,
				GPU:         &domain.GPURequirement{Model: "a100", Count: 2},
			},
		},
		dir: "/tmp/work",
		env: map[string]string{"B": "2", "A": "1"},
	}

	assert.Equal(t, []string{
		"run", "--rm",
		"--name", "orca-train-x",
		"-v", "/tmp/work:/work",
		"-w", "/work",
		"--cpus", "1.5",
		"--memory", "1073741824",
		"--gpus", "2",
		"-e", "A=1",
		"-e", "B=2",
		"python:3.12", "python", "train.py",
	}, containerArgs("orca-train-x", inv))
}

func TestContainerArgs_NoResources(t *testing.T) {
	inv := invocation{
		spec: domain.CommandSpec{Node: "n", Image: "alpine", Command: []string{"true"}},
		dir:  "/w",
	}
	assert.Equal(t, []string{
		"run", "--rm", "--name", "c", "-v", "/w:/work", "-w", "/work", "alpine", "true",
	}, containerArgs("c", inv))
}

func TestContainerRunner_RequiresImage(t *testing.T) {
	err := ContainerRunner{}.run(t.Context(), invocation{spec: domain.CommandSpec{Node: "n", Command: []string{"true"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image")
}

func TestResolveEnvironment(t *testing.T) {
	got := resolveEnvironment(
		[]string{"PATH=/bin", "SECRET=x", "HOME=/root", "broken"},
		map[string]string{"PATH": "/usr/bin", "ORCA_INPUT_X": "1"},
	)
	assert.Equal(t, []string{"HOME=/root", "ORCA_INPUT_X=1", "PATH=/usr/bin"}, got)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b-c", sanitize("a.b-c"))
	assert.Equal(t, "pod", sanitize(""))
}

func TestNew_SelectsRunner(t *testing.T) {
	store := cas.NewStore(cas.NewMemory())

	e := New(config.ExecutorSettings{Kind: config.ExecutorContainer, Runtime: "podman", DefaultTimeout: time.Minute}, store, nil)
	assert.Equal(t, ContainerRunner{Runtime: "podman"}, e.runner)
	assert.Equal(t, time.Minute, e.defaultTimeout)

	e = New(config.ExecutorSettings{Kind: config.ExecutorProcess, WorkDir: "/tmp/orca"}, store, nil)
	assert.Equal(t, ProcessRunner{}, e.runner)
	assert.Equal(t, "/tmp/orca", e.workRoot)
}
