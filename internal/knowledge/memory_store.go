package knowledge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

// MemoryStore is an in-memory Store adapter, useful for tests and for
// running the engine without Postgres. Mirrors the teacher's
// map-backed, mutex-guarded ObjectStore adapter shape.
type MemoryStore struct {
	mu       sync.RWMutex
	files    map[ids.ID]File
	sections map[ids.ID]Section
	chunks   map[ids.ID]Chunk
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:    make(map[ids.ID]File),
		sections: make(map[ids.ID]Section),
		chunks:   make(map[ids.ID]Chunk),
	}
}

func (m *MemoryStore) UpsertFile(_ context.Context, f File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = f
	return nil
}

func (m *MemoryStore) GetFileByID(_ context.Context, id ids.ID) (File, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	return f, ok, nil
}

func (m *MemoryStore) UpdateFileStatus(_ context.Context, id ids.ID, status FileStatus, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return kberrors.New(kberrors.NotFound, "knowledge file not found")
	}
	f.Status = status
	f.ProcessedAt = processedAt
	m.files[id] = f
	return nil
}

func (m *MemoryStore) FileExists(_ context.Context, id ids.ID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[id]
	return ok, nil
}

func (m *MemoryStore) DeleteByFile(_ context.Context, fileID ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for cid, c := range m.chunks {
		if c.FileID == fileID {
			delete(m.chunks, cid)
		}
	}
	for sid, s := range m.sections {
		if s.FileID == fileID {
			delete(m.sections, sid)
		}
	}
	return nil
}

func (m *MemoryStore) GetSectionByID(_ context.Context, id ids.ID) (Section, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sections[id]
	return s, ok, nil
}

func (m *MemoryStore) GetSectionByIndex(_ context.Context, fileID ids.ID, index int) (Section, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sections {
		if s.FileID == fileID && s.SectionIndex == index {
			return s, true, nil
		}
	}
	return Section{}, false, nil
}

func (m *MemoryStore) GetAllSectionsByFile(_ context.Context, fileID ids.ID) ([]Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Section
	for _, s := range m.sections {
		if s.FileID == fileID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionIndex < out[j].SectionIndex })
	return out, nil
}

func (m *MemoryStore) GetChunkByID(_ context.Context, id ids.ID) (Chunk, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	return c, ok, nil
}

func (m *MemoryStore) GetChunkByIndex(_ context.Context, sectionID ids.ID, index int) (Chunk, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chunks {
		if c.SectionID == sectionID && c.ChunkIndex == index {
			return c, true, nil
		}
	}
	return Chunk{}, false, nil
}

func (m *MemoryStore) GetAllChunksBySection(_ context.Context, sectionID ids.ID) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Chunk
	for _, c := range m.chunks {
		if c.SectionID == sectionID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (m *MemoryStore) GetChunksByIDs(_ context.Context, chunkIDs []ids.ID) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) PersistSection(_ context.Context, sc SectionWithChunks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections[sc.Section.ID] = sc.Section
	for _, c := range sc.Chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
