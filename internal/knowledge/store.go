package knowledge

import (
	"context"
	"time"

	"github.com/kbasehq/knowledge-engine/internal/ids"
)

// Store is the C8 knowledge store port: file/section/chunk
// persistence with the uniqueness invariants from spec §3 —
// (file_id, section_index) and (section_id, chunk_index) are both
// unique and contiguous from 0.
//
// Implementations must be safe for concurrent use. PersistSection is
// the unit of transactional scope the indexer relies on: either the
// whole section and its chunks become visible, or none of them do.
type Store interface {
	// Files

	UpsertFile(ctx context.Context, f File) error
	GetFileByID(ctx context.Context, id ids.ID) (File, bool, error)
	UpdateFileStatus(ctx context.Context, id ids.ID, status FileStatus, processedAt time.Time) error
	FileExists(ctx context.Context, id ids.ID) (bool, error)

	// DeleteByFile removes every section, chunk, and (via the caller's
	// coordination with the vector store) derived vector-index entry
	// for the given file, per the spec's invariant that deleting a file
	// leaves no orphans.
	DeleteByFile(ctx context.Context, fileID ids.ID) error

	// Sections

	GetSectionByID(ctx context.Context, id ids.ID) (Section, bool, error)
	GetSectionByIndex(ctx context.Context, fileID ids.ID, index int) (Section, bool, error)
	GetAllSectionsByFile(ctx context.Context, fileID ids.ID) ([]Section, error)

	// Chunks

	GetChunkByID(ctx context.Context, id ids.ID) (Chunk, bool, error)
	GetChunkByIndex(ctx context.Context, sectionID ids.ID, index int) (Chunk, bool, error)
	GetAllChunksBySection(ctx context.Context, sectionID ids.ID) ([]Chunk, error)
	GetChunksByIDs(ctx context.Context, chunkIDs []ids.ID) ([]Chunk, error)

	// PersistSection atomically inserts a new section and its chunks.
	// section.SectionIndex and each chunk's ChunkIndex must already be
	// assigned by the caller (the indexer), contiguous from 0.
	PersistSection(ctx context.Context, sc SectionWithChunks) error
}
