package shell

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// ProcessRunner runs commands directly on the host.
type ProcessRunner struct{}

func (ProcessRunner) run(ctx context.Context, inv invocation) error {
	name := inv.spec.Command[0]
	env := resolveEnvironment(os.Environ(), inv.env)

	executable := name
	if !filepath.IsAbs(name) && !strings.Contains(name, string(filepath.Separator)) {
		lp, err := lookPath(name, env)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "executable not found"), "command", name)
		}
		executable = lp
	}

	cmd := exec.CommandContext(ctx, executable, inv.spec.Command[1:]...) //nolint:gosec // command comes from the pod definition
	cmd.Args[0] = name
	cmd.Dir = inv.dir
	cmd.Env = env
	cmd.Stdout = inv.stdout
	cmd.Stderr = inv.stderr
	cmd.WaitDelay = waitDelay

	return cmd.Run()
}

// allowListedEnvVars are the host variables a process inherits. Everything
// else comes from the pod definition or the resolved inputs.
var allowListedEnvVars = map[string]struct{}{
	"HOME": {},
	"TERM": {},
	"USER": {},
	"PATH": {},
}

// resolveEnvironment filters sysEnv to the allow-list and applies overrides.
// The result is sorted so the command sees a stable environment.
func resolveEnvironment(sysEnv []string, overrides map[string]string) []string {
	envMap := filterSystemEnv(sysEnv)
	for k, v := range overrides {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

func filterSystemEnv(sysEnv []string) map[string]string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}
	return envMap
}

// lookPath searches the PATH of env, not of the current process.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if p, ok := strings.CutPrefix(e, "PATH="); ok {
			path = p
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
