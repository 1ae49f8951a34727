package shell

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/zerr"
)

// collect stores every declared output found under base. A regular file
// becomes a file artifact; a directory becomes a tree artifact whose
// manifest and files are all stored by content.
func (e *Executor) collect(ctx context.Context, base string, outputs []domain.OutputSlot) (map[string]domain.ArtifactRef, error) {
	refs := make(map[string]domain.ArtifactRef, len(outputs))

	for _, out := range outputs {
		p, err := safeJoin(base, out.Path)
		if err != nil {
			return nil, zerr.With(err, "slot", out.Name)
		}

		info, err := os.Lstat(p)
		if err != nil {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrMissingOutput, "output path not found"), "path", out.Path), "slot", out.Name)
		}

		var ref domain.ArtifactRef
		switch {
		case info.Mode().IsRegular():
			ref, err = e.storeFile(ctx, p)
		case info.IsDir():
			ref, err = e.storeTree(ctx, p)
		default:
			err = zerr.With(zerr.Wrap(domain.ErrMissingOutput, "output is neither a file nor a directory"), "path", out.Path)
		}
		if err != nil {
			return nil, zerr.With(err, "slot", out.Name)
		}
		refs[out.Name] = ref
	}

	return refs, nil
}

func (e *Executor) storeFile(ctx context.Context, p string) (domain.ArtifactRef, error) {
	//nolint:gosec // p is inside the work directory
	content, err := os.ReadFile(p)
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	d, err := e.store.PutContent(ctx, content)
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	return domain.ArtifactRef{Digest: d, Size: int64(len(content)), Kind: domain.ArtifactFile}, nil
}

func (e *Executor) storeTree(ctx context.Context, root string) (domain.ArtifactRef, error) {
	tree := domain.TreeManifest{Entries: make(map[string]domain.TreeEntry)}
	var total int64

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return zerr.With(zerr.Wrap(domain.ErrMissingOutput, "tree output contains a non-regular file"), "path", p)
		}

		ref, err := e.storeFile(ctx, p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		tree.Entries[filepath.ToSlash(rel)] = domain.TreeEntry{
			Digest: ref.Digest,
			Size:   ref.Size,
			Mode:   uint32(info.Mode().Perm()),
		}
		total += ref.Size
		return nil
	})
	if err != nil {
		return domain.ArtifactRef{}, err
	}

	manifest, err := tree.Encode()
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	d, err := e.store.PutContent(ctx, manifest)
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	return domain.ArtifactRef{Digest: d, Size: total, Kind: domain.ArtifactTree}, nil
}
