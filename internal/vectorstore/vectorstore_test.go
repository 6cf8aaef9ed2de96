package vectorstore

import (
	"context"
	"testing"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/stretchr/testify/require"
)

func TestSearchOrdersByDescendingCosine(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	fileID := ids.New()
	near := ids.New()
	far := ids.New()
	require.NoError(t, m.Add(ctx, near, fileID, []float32{1, 0}))
	require.NoError(t, m.Add(ctx, far, fileID, []float32{0, 1}))

	hits, err := m.Search(ctx, []float32{1, 0.01}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, near, hits[0].ChunkID)
	require.Equal(t, far, hits[1].ChunkID)
	require.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchRespectsK(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	fileID := ids.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Add(ctx, ids.New(), fileID, []float32{float32(i), 1}))
	}
	hits, err := m.Search(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
}

func TestRemoveByFilePurgesOnlyThatFilesVectors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	fileA, fileB := ids.New(), ids.New()
	chunkA, chunkB := ids.New(), ids.New()
	require.NoError(t, m.Add(ctx, chunkA, fileA, []float32{1, 0}))
	require.NoError(t, m.Add(ctx, chunkB, fileB, []float32{0, 1}))

	require.NoError(t, m.RemoveByFile(ctx, fileA))

	hits, err := m.Search(ctx, []float32{1, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, chunkB, hits[0].ChunkID)
}

func TestSearchDimensionalityMismatchFails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Add(ctx, ids.New(), ids.New(), []float32{1, 0, 0}))

	_, err := m.Search(ctx, []float32{1, 0}, 1)
	require.Error(t, err)
	require.Equal(t, kberrors.Integrity, kberrors.KindOf(err))
}

func TestAddDimensionalityMismatchIsIntegrityError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Add(ctx, ids.New(), ids.New(), []float32{1, 0, 0}))

	err := m.Add(ctx, ids.New(), ids.New(), []float32{1, 0})
	require.Error(t, err)
	require.Equal(t, kberrors.Integrity, kberrors.KindOf(err))
}
