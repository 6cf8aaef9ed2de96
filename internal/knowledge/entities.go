// Package knowledge defines the entities the indexer and searcher
// persist (files, sections, chunks) and the Store port that owns them,
// plus an in-memory adapter used for tests and embedded deployments.
package knowledge

import (
	"time"

	"github.com/kbasehq/knowledge-engine/internal/hashing"
	"github.com/kbasehq/knowledge-engine/internal/ids"
)

// FileStatus is the lifecycle state of a KnowledgeFile (spec §3).
type FileStatus int

const (
	StatusPending FileStatus = iota
	StatusIndexing
	StatusIndexed
	StatusFailed
)

func (s FileStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusIndexing:
		return "indexing"
	case StatusIndexed:
		return "indexed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// File is a KnowledgeFile: the indexed counterpart of a LibraryFile.
type File struct {
	ID          ids.ID
	Name        string
	Hash        hashing.Sum
	ProcessedAt time.Time
	Status      FileStatus
}

// Section is a KnowledgeFileSection: an ordered, semantically coherent
// group of contiguous chunks.
type Section struct {
	ID                ids.ID
	FileID            ids.ID
	SectionIndex      int
	Summary           string
	AdditionalContext string
}

// Chunk is a KnowledgeFileChunk: a token-bounded contiguous substring
// of the source text, carrying its embedding once computed.
type Chunk struct {
	ID         ids.ID
	SectionID  ids.ID
	FileID     ids.ID // denormalised for fast purge, per spec §3
	ChunkIndex int
	Content    string
	Embedding  []float32 // nil until embedded
}

// SectionWithChunks bundles a section with its chunks in chunk-index
// order, the unit the section reader emits and the indexer persists in
// a single transaction.
type SectionWithChunks struct {
	Section Section
	Chunks  []Chunk
}
