package shell

import (
	"context"
	"maps"
	"os/exec"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"go.trai.ch/zerr"
)

// ContainerWorkDir is where the work directory is mounted inside the container.
const ContainerWorkDir = "/work"

// ContainerRunner runs commands in the pod's image through a docker
// compatible CLI.
type ContainerRunner struct {
	// Runtime is the CLI binary, e.g. "docker" or "podman".
	Runtime string
}

func (r ContainerRunner) run(ctx context.Context, inv invocation) error {
	if inv.spec.Image == "" {
		return zerr.With(zerr.New("pod declares no image"), "node", inv.spec.Node)
	}

	name := "orca-" + sanitize(inv.spec.Node) + "-" + uuid.NewString()[:8]
	runtime := r.runtime()

	cmd := exec.CommandContext(ctx, runtime, containerArgs(name, inv)...) //nolint:gosec // arguments come from the pod definition
	cmd.Stdout = inv.stdout
	cmd.Stderr = inv.stderr
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		// Killing the CLI leaves the container running.
		_ = exec.Command(runtime, "kill", name).Run() //nolint:gosec // name is generated
		return cmd.Process.Kill()
	}

	if err := cmd.Run(); err != nil {
		return zerr.With(zerr.Wrap(err, "container run failed"), "container", name)
	}
	return nil
}

func (r ContainerRunner) runtime() string {
	if r.Runtime == "" {
		return "docker"
	}
	return r.Runtime
}

// containerArgs builds the run arguments. Environment variables are sorted.
func containerArgs(name string, inv invocation) []string {
	args := []string{
		"run", "--rm",
		"--name", name,
		"-v", inv.dir + ":" + ContainerWorkDir,
		"-w", ContainerWorkDir,
	}

	res := inv.spec.Resources
	if res.CPUs > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(res.CPUs, 'f', -1, 64))
	}
	if res.MemoryBytes > 0 {
		args = append(args, "--memory", strconv.FormatUint(res.MemoryBytes, 10))
	}
	if res.GPU != nil && res.GPU.Count > 0 {
		args = append(args, "--gpus", strconv.Itoa(int(res.GPU.Count)))
	}

	for _, k := range slices.Sorted(maps.Keys(inv.env)) {
		args = append(args, "-e", k+"="+inv.env[k])
	}

	args = append(args, inv.spec.Image)
	return append(args, inv.spec.Command...)
}
