package blobfs

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

// Memory is an in-memory BlobFS, grounded on the teacher's
// map-backed ObjectStore adapter. Useful for tests and embedded
// deployments without a filesystem or S3 bucket.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory BlobFS.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[path]
	if !ok {
		return nil, kberrors.New(kberrors.NotFound, "blob not found: "+path)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return io.NopCloser(bytes.NewReader(cp)), nil
}

func (m *Memory) Put(_ context.Context, path string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "read blob payload", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = b
	return nil
}

func (m *Memory) WriteChunk(_ context.Context, path string, chunkNumber int, chunkSize int64, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "read chunk payload", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(chunkNumber) * chunkSize
	existing := m.data[path]
	end := offset + int64(len(b))
	if int64(len(existing)) < end {
		grown := make([]byte, end)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:end], b)
	m.data[path] = existing
	return nil
}

func (m *Memory) Finalize(_ context.Context, _ string) error {
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, path)
	return nil
}

func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[path]
	return ok, nil
}

func (m *Memory) Size(_ context.Context, path string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[path]
	if !ok {
		return 0, kberrors.New(kberrors.NotFound, "blob not found: "+path)
	}
	return int64(len(b)), nil
}

func (m *Memory) Move(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[src]
	if !ok {
		return kberrors.New(kberrors.NotFound, "blob not found: "+src)
	}
	m.data[dst] = b
	delete(m.data, src)
	return nil
}

var _ BlobFS = (*Memory)(nil)
