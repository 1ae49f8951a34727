package shell_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/cas"
	"go.trai.ch/orca/internal/adapters/shell"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/orca/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newStore() *cas.Store {
	return cas.NewStore(cas.NewMemory())
}

func shellSpec(node, script string, outputs ...domain.OutputSlot) domain.CommandSpec {
	return domain.CommandSpec{
		Node:    node,
		Command: []string{"sh", "-c", script},
		Outputs: outputs,
	}
}

func blob(t *testing.T, store ports.Store, d domain.Digest) string {
	t.Helper()
	b, ok, err := store.Get(t.Context(), d)
	require.NoError(t, err)
	require.True(t, ok)
	return string(b)
}

func TestExecute_LiteralInputs(t *testing.T) {
	store := newStore()
	exec := shell.NewExecutor(store, shell.WithWorkRoot(t.TempDir()))

	spec := shellSpec("greet",
		`mkdir -p out && printf '%s|' "$ORCA_INPUT_NAME" > out/result.txt && cat cfg/n.json >> out/result.txt && printf '|%s' "$ORCA_INPUT_LIST_ITEMS" >> out/result.txt`,
		domain.OutputSlot{Name: "result", Path: "result.txt"},
	)
	spec.OutputDir = "out"

	inputs := []domain.ResolvedInput{
		{Slot: "name", Literal: "ada"},
		{Slot: "list-items", Path: "cfg/n.json", Literal: []any{int64(1), "x"}},
	}

	var logs bytes.Buffer
	outcome, err := exec.Execute(t.Context(), spec, inputs, &logs)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionSucceeded, outcome.Status, logs.String())

	ref := outcome.Outputs["result"]
	assert.Equal(t, domain.ArtifactFile, ref.Kind)
	assert.Equal(t, `ada|[1,"x"]|[1,"x"]`, blob(t, store, ref.Digest))
	assert.Equal(t, int64(len(`ada|[1,"x"]|[1,"x"]`)), ref.Size)
}

func TestExecute_TreeOutput(t *testing.T) {
	store := newStore()
	exec := shell.NewExecutor(store, shell.WithWorkRoot(t.TempDir()))

	spec := shellSpec("build",
		`mkdir -p dist/sub && printf a > dist/a.txt && printf bc > dist/sub/b.txt`,
		domain.OutputSlot{Name: "dist", Path: "dist"},
	)

	outcome, err := exec.Execute(t.Context(), spec, nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionSucceeded, outcome.Status)

	ref := outcome.Outputs["dist"]
	assert.Equal(t, domain.ArtifactTree, ref.Kind)
	assert.Equal(t, int64(3), ref.Size)

	tree, err := domain.DecodeTree([]byte(blob(t, store, ref.Digest)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, tree.Paths())
	assert.Equal(t, "bc", blob(t, store, tree.Entries["sub/b.txt"].Digest))
}

func TestExecute_ArtifactInputs(t *testing.T) {
	ctx := t.Context()
	store := newStore()

	doc, err := store.PutContent(ctx, []byte("hello "))
	require.NoError(t, err)
	part, err := store.PutContent(ctx, []byte("world"))
	require.NoError(t, err)
	manifest := domain.TreeManifest{Entries: map[string]domain.TreeEntry{
		"nested/x.txt": {Digest: part, Size: 5, Mode: 0o644},
	}}
	encoded, err := manifest.Encode()
	require.NoError(t, err)
	tree, err := store.PutContent(ctx, encoded)
	require.NoError(t, err)

	inputs := []domain.ResolvedInput{
		{Slot: "doc", Artifact: &domain.ArtifactRef{Digest: doc, Size: 6, Kind: domain.ArtifactFile}},
		{Slot: "data", Path: "data", Artifact: &domain.ArtifactRef{Digest: tree, Size: 5, Kind: domain.ArtifactTree}},
	}
	spec := shellSpec("join",
		`test "$ORCA_INPUT_DOC" = inputs/doc && cat "$ORCA_INPUT_DOC" "$ORCA_INPUT_DATA/nested/x.txt" > joined.txt`,
		domain.OutputSlot{Name: "joined", Path: "joined.txt"},
	)

	exec := shell.NewExecutor(store, shell.WithWorkRoot(t.TempDir()))
	var logs bytes.Buffer
	outcome, err := exec.Execute(ctx, spec, inputs, &logs)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionSucceeded, outcome.Status, logs.String())
	assert.Equal(t, "hello world", blob(t, store, outcome.Outputs["joined"].Digest))
}

func TestExecute_MissingArtifact(t *testing.T) {
	exec := shell.NewExecutor(newStore(), shell.WithWorkRoot(t.TempDir()))
	inputs := []domain.ResolvedInput{
		{Slot: "doc", Artifact: &domain.ArtifactRef{Digest: domain.Hash([]byte("gone")), Kind: domain.ArtifactFile}},
	}

	outcome, err := exec.Execute(t.Context(), shellSpec("n", "true"), inputs, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionFailed, outcome.Status)
	require.ErrorIs(t, outcome.Cause, domain.ErrBlobNotFound)
}

func TestExecute_Failures(t *testing.T) {
	tests := []struct {
		name     string
		spec     domain.CommandSpec
		inputs   []domain.ResolvedInput
		exitCode int
		wantErr  error
	}{
		{
			name:     "non-zero exit",
			spec:     shellSpec("fail", "exit 3"),
			exitCode: 3,
			wantErr:  domain.ErrExecutionFailed,
		},
		{
			name: "timeout",
			spec: func() domain.CommandSpec {
				s := shellSpec("slow", "exec sleep 5")
				s.Resources.Timeout = 50 * time.Millisecond
				return s
			}(),
			exitCode: -1,
			wantErr:  domain.ErrExecutionFailed,
		},
		{
			name:     "missing output",
			spec:     shellSpec("lazy", "true", domain.OutputSlot{Name: "out", Path: "out.txt"}),
			exitCode: 0,
			wantErr:  domain.ErrMissingOutput,
		},
		{
			name:     "empty command",
			spec:     domain.CommandSpec{Node: "empty"},
			exitCode: -1,
			wantErr:  domain.ErrExecutionFailed,
		},
		{
			name:     "input path escapes work directory",
			spec:     shellSpec("escape", "true"),
			inputs:   []domain.ResolvedInput{{Slot: "x", Path: "../x", Literal: "v"}},
			exitCode: -1,
			wantErr:  domain.ErrInvalidInputPath,
		},
		{
			name:     "unknown executable",
			spec:     domain.CommandSpec{Node: "ghost", Command: []string{"orca-no-such-binary"}},
			exitCode: -1,
			wantErr:  domain.ErrExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := shell.NewExecutor(newStore(), shell.WithWorkRoot(t.TempDir()))

			outcome, err := exec.Execute(t.Context(), tt.spec, tt.inputs, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, domain.ExecutionFailed, outcome.Status)
			assert.Equal(t, tt.exitCode, outcome.ExitCode)
			require.ErrorIs(t, outcome.Cause, tt.wantErr)
		})
	}
}

func TestExecute_DefaultTimeout(t *testing.T) {
	exec := shell.NewExecutor(newStore(),
		shell.WithWorkRoot(t.TempDir()),
		shell.WithDefaultTimeout(50*time.Millisecond),
	)

	outcome, err := exec.Execute(t.Context(), shellSpec("slow", "exec sleep 5"), nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionFailed, outcome.Status)
	assert.Contains(t, outcome.Cause.Error(), "timed out")
}

func TestExecute_EnvironmentAllowList(t *testing.T) {
	t.Setenv("ORCA_TEST_SECRET", "leaked")
	store := newStore()
	exec := shell.NewExecutor(store, shell.WithWorkRoot(t.TempDir()))

	spec := shellSpec("env",
		`printf '%s-%s' "${ORCA_TEST_SECRET:-unset}" "$FOO" > env.txt`,
		domain.OutputSlot{Name: "env", Path: "env.txt"},
	)
	spec.Env = map[string]string{"FOO": "bar"}

	outcome, err := exec.Execute(t.Context(), spec, nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionSucceeded, outcome.Status)
	assert.Equal(t, "unset-bar", blob(t, store, outcome.Outputs["env"].Digest))
}

func TestExecute_StreamsToLogger(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info("hello")
	log.EXPECT().Info("partial")
	log.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.Contains(t, err.Error(), "oops")
	})

	exec := shell.NewExecutor(newStore(), shell.WithWorkRoot(t.TempDir()), shell.WithLogger(log))
	outcome, err := exec.Execute(t.Context(), shellSpec("chatty", `echo hello; echo oops >&2; printf partial`), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionSucceeded, outcome.Status)
}

func TestExecute_RemovesWorkDirectory(t *testing.T) {
	root := t.TempDir()
	exec := shell.NewExecutor(newStore(), shell.WithWorkRoot(root))

	_, err := exec.Execute(t.Context(), shellSpec("tidy", "touch scratch"), nil, nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInputEnvName(t *testing.T) {
	assert.Equal(t, "ORCA_INPUT_RAW_TEXT", shell.InputEnvName("raw-text"))
	assert.Equal(t, "ORCA_INPUT_DOC", shell.InputEnvName("doc"))
}
