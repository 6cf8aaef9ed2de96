// Package vectorstore implements the C9 chunk vector store: a derived
// index over unit-normalised chunk embeddings, supporting add, remove,
// and cosine top-k search. The source of truth is the knowledge
// store; this package has no routine that rebuilds the index from it.
package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/vectormath"
)

// Hit is one search result: a chunk id and its cosine similarity to
// the query vector.
type Hit struct {
	ChunkID ids.ID
	Score   float64
}

// Store is the C9 port. Implementations must be safe for concurrent
// use and store vectors unit-normalised.
type Store interface {
	// Add inserts or replaces the vector for chunkID, recording fileID
	// so a later RemoveByFile can purge it. v is normalised by the
	// adapter before storage.
	Add(ctx context.Context, chunkID, fileID ids.ID, v []float32) error

	// Remove deletes chunkID's vector, if present. Not an error if
	// absent.
	Remove(ctx context.Context, chunkID ids.ID) error

	// RemoveByFile deletes every vector belonging to fileID, the
	// purge half of the indexer's purge-then-rebuild cycle.
	RemoveByFile(ctx context.Context, fileID ids.ID) error

	// Search returns at most k hits in descending cosine similarity,
	// ties broken by ascending chunk id.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
}

// Memory is an in-memory Store: a linear scan over unit-normalised
// float32 vectors, grounded on the teacher's map-backed, mutex-guarded
// adapter shape.
type Memory struct {
	mu      sync.RWMutex
	vectors map[ids.ID][]float32
	fileOf  map[ids.ID]ids.ID
	dim     int
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		vectors: make(map[ids.ID][]float32),
		fileOf:  make(map[ids.ID]ids.ID),
	}
}

func (m *Memory) Add(_ context.Context, chunkID, fileID ids.ID, v []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = len(v)
	} else if len(v) != m.dim {
		return kberrors.New(kberrors.Integrity, "embedding dimension mismatch")
	}
	m.vectors[chunkID] = vectormath.Normalize(v)
	m.fileOf[chunkID] = fileID
	return nil
}

func (m *Memory) Remove(_ context.Context, chunkID ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, chunkID)
	delete(m.fileOf, chunkID)
	return nil
}

func (m *Memory) RemoveByFile(_ context.Context, fileID ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for chunkID, f := range m.fileOf {
		if f == fileID {
			delete(m.vectors, chunkID)
			delete(m.fileOf, chunkID)
		}
	}
	return nil
}

func (m *Memory) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	if k < 0 {
		return nil, kberrors.New(kberrors.InputInvalid, "search k must be non-negative")
	}
	normQuery := vectormath.Normalize(query)

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.vectors))
	for chunkID, v := range m.vectors {
		if len(v) != len(normQuery) {
			m.mu.RUnlock()
			return nil, kberrors.New(kberrors.Integrity, "embedding dimension mismatch")
		}
		hits = append(hits, Hit{ChunkID: chunkID, Score: vectormath.Cosine(normQuery, v)})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return idLess(hits[i].ChunkID, hits[j].ChunkID)
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func idLess(a, b ids.ID) bool {
	return a.String() < b.String()
}

var _ Store = (*Memory)(nil)
