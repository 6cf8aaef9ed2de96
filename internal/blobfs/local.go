package blobfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

// Local is a BlobFS rooted at a directory on the local filesystem.
// Engine paths are joined under the root with filepath.Join, so
// callers never deal with OS-specific separators.
type Local struct {
	root string
}

// NewLocal returns a Local BlobFS rooted at root. The root is created
// on first write if missing.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *Local) Get(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(l.resolve(path))
	if os.IsNotExist(err) {
		return nil, kberrors.New(kberrors.NotFound, "blob not found: "+path)
	}
	if err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "open blob", err)
	}
	return f, nil
}

func (l *Local) Put(_ context.Context, path string, r io.Reader) error {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "mkdir for blob", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "create blob", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "write blob", err)
	}
	return nil
}

func (l *Local) WriteChunk(_ context.Context, path string, chunkNumber int, chunkSize int64, r io.Reader) error {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "mkdir for blob", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "open blob for chunk write", err)
	}
	defer f.Close()

	offset := int64(chunkNumber) * chunkSize
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "seek blob for chunk write", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "write chunk", err)
	}
	return nil
}

func (l *Local) Finalize(_ context.Context, _ string) error {
	return nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	err := os.Remove(l.resolve(path))
	if err != nil && !os.IsNotExist(err) {
		return kberrors.Wrap(kberrors.StorageError, "delete blob", err)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, kberrors.Wrap(kberrors.StorageError, "stat blob", err)
	}
	return true, nil
}

func (l *Local) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(l.resolve(path))
	if os.IsNotExist(err) {
		return 0, kberrors.New(kberrors.NotFound, "blob not found: "+path)
	}
	if err != nil {
		return 0, kberrors.Wrap(kberrors.StorageError, "stat blob", err)
	}
	return info.Size(), nil
}

func (l *Local) Move(_ context.Context, src, dst string) error {
	fullDst := l.resolve(dst)
	if err := os.MkdirAll(filepath.Dir(fullDst), 0o755); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "mkdir for blob move", err)
	}
	if err := os.Rename(l.resolve(src), fullDst); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "move blob", err)
	}
	return nil
}

var _ BlobFS = (*Local)(nil)
