package cas

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// Filesystem stores each entry as a file under root, fanned out by the
// first two hex characters of the digest. Entries are written to a temp file
// and hard-linked into place, so a concurrent writer of the same digest
// either wins the link or observes the winner's bytes.
type Filesystem struct {
	root string
}

// NewFilesystem creates the store directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrStoreCreateFailed, err), "failed to create store directory"), "path", root)
	}
	return &Filesystem{root: root}, nil
}

// Root returns the store directory.
func (f *Filesystem) Root() string {
	return f.root
}

func (f *Filesystem) path(d domain.Digest) string {
	hex := d.String()
	return filepath.Join(f.root, hex[:2], hex)
}

// PutIfAbsent links a fully written temp file into place.
func (f *Filesystem) PutIfAbsent(_ context.Context, d domain.Digest, blob []byte) ([]byte, bool, error) {
	final := f.path(d)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, false, err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, false, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return nil, false, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, false, err
	}
	if err := tmp.Close(); err != nil {
		return nil, false, err
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		return nil, false, err
	}

	err = os.Link(tmpName, final)
	if err == nil {
		return nil, true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, false, err
	}

	//nolint:gosec // path is derived from a parsed digest
	existing, err := os.ReadFile(final)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get reads the entry under d.
func (f *Filesystem) Get(_ context.Context, d domain.Digest) ([]byte, bool, error) {
	//nolint:gosec // path is derived from a parsed digest
	blob, err := os.ReadFile(f.path(d))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return blob, true, nil
}

// Contains reports whether d is present.
func (f *Filesystem) Contains(_ context.Context, d domain.Digest) (bool, error) {
	_, err := os.Stat(f.path(d))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Entries walks the fan-out directories. Temp files and names that are not
// digests are skipped.
func (f *Filesystem) Entries(ctx context.Context) ([]ports.Entry, error) {
	var out []ports.Entry
	err := filepath.WalkDir(f.root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			return nil
		}
		d, err := domain.ParseDigest(e.Name())
		if err != nil || filepath.Base(filepath.Dir(path)) != e.Name()[:2] {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		out = append(out, ports.Entry{Digest: d, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close is a no-op.
func (f *Filesystem) Close() error {
	return nil
}
