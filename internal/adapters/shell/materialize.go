package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/zerr"
)

// InputEnvPrefix prefixes the environment variable set for every input slot.
const InputEnvPrefix = "ORCA_INPUT_"

// InputEnvName returns the variable exposing slot, e.g. ORCA_INPUT_RAW_TEXT
// for "raw-text".
func InputEnvName(slot string) string {
	return InputEnvPrefix + strings.ToUpper(strings.ReplaceAll(slot, "-", "_"))
}

// materialize places each input in dir and returns the input variables.
// Literals are exposed by value and, when the slot has a path, also written
// there. Artifacts are written to the slot path, or to inputs/<slot> when the
// slot has none, and exposed by that relative path.
func (e *Executor) materialize(ctx context.Context, dir string, inputs []domain.ResolvedInput) (map[string]string, error) {
	env := make(map[string]string, len(inputs))

	for _, in := range inputs {
		if in.Artifact == nil {
			text, err := literalText(in.Literal)
			if err != nil {
				return nil, zerr.With(err, "slot", in.Slot)
			}
			env[InputEnvName(in.Slot)] = text
			if in.Path != "" {
				if err := writeFile(dir, in.Path, []byte(text), domain.FilePerm); err != nil {
					return nil, zerr.With(err, "slot", in.Slot)
				}
			}
			continue
		}

		rel := in.Path
		if rel == "" {
			rel = filepath.Join("inputs", in.Slot)
		}
		if err := e.placeArtifact(ctx, dir, rel, *in.Artifact); err != nil {
			return nil, zerr.With(err, "slot", in.Slot)
		}
		env[InputEnvName(in.Slot)] = filepath.ToSlash(rel)
	}

	return env, nil
}

func literalText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := domain.EncodeCanonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *Executor) placeArtifact(ctx context.Context, dir, rel string, ref domain.ArtifactRef) error {
	blob, err := e.fetch(ctx, ref.Digest)
	if err != nil {
		return err
	}

	if ref.Kind != domain.ArtifactTree {
		return writeFile(dir, rel, blob, domain.FilePerm)
	}

	tree, err := domain.DecodeTree(blob)
	if err != nil {
		return err
	}
	if err := mkdirIn(dir, rel); err != nil {
		return err
	}
	for _, p := range tree.Paths() {
		entry := tree.Entries[p]
		content, err := e.fetch(ctx, entry.Digest)
		if err != nil {
			return zerr.With(err, "entry", p)
		}
		mode := os.FileMode(entry.Mode).Perm()
		if mode == 0 {
			mode = domain.FilePerm
		}
		if err := writeFile(dir, filepath.Join(rel, filepath.FromSlash(p)), content, mode); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) fetch(ctx context.Context, d domain.Digest) ([]byte, error) {
	blob, ok, err := e.store.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrBlobNotFound, "input artifact missing from store"), "digest", d.String())
	}
	return blob, nil
}

// safeJoin joins rel onto dir, refusing paths that leave dir.
func safeJoin(dir, rel string) (string, error) {
	if !filepath.IsLocal(rel) {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidInputPath, "path escapes the work directory"), "path", rel)
	}
	return filepath.Join(dir, rel), nil
}

func mkdirIn(dir, rel string) error {
	p, err := safeJoin(dir, rel)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, domain.DirPerm)
}

func writeFile(dir, rel string, content []byte, perm os.FileMode) error {
	p, err := safeJoin(dir, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), domain.DirPerm); err != nil {
		return err
	}
	return os.WriteFile(p, content, perm)
}
