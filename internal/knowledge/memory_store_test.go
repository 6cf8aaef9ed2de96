package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePersistAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	fileID := ids.New()
	require.NoError(t, store.UpsertFile(ctx, File{ID: fileID, Name: "doc.md", Status: StatusIndexing}))

	sectionID := ids.New()
	chunkA := Chunk{ID: ids.New(), SectionID: sectionID, FileID: fileID, ChunkIndex: 0, Content: "a"}
	chunkB := Chunk{ID: ids.New(), SectionID: sectionID, FileID: fileID, ChunkIndex: 1, Content: "b"}
	section := Section{ID: sectionID, FileID: fileID, SectionIndex: 0}

	require.NoError(t, store.PersistSection(ctx, SectionWithChunks{Section: section, Chunks: []Chunk{chunkA, chunkB}}))

	chunks, err := store.GetAllChunksBySection(ctx, sectionID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.Equal(t, 1, chunks[1].ChunkIndex)

	require.NoError(t, store.UpdateFileStatus(ctx, fileID, StatusIndexed, time.Now()))
	f, ok, err := store.GetFileByID(ctx, fileID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusIndexed, f.Status)

	require.NoError(t, store.DeleteByFile(ctx, fileID))
	secs, err := store.GetAllSectionsByFile(ctx, fileID)
	require.NoError(t, err)
	require.Empty(t, secs)
	remaining, err := store.GetAllChunksBySection(ctx, sectionID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestMemoryStoreUpdateStatusNotFound(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpdateFileStatus(context.Background(), ids.New(), StatusIndexed, time.Now())
	require.Error(t, err)
}
