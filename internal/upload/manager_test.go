package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/kbasehq/knowledge-engine/internal/blobfs"
	"github.com/kbasehq/knowledge-engine/internal/embedding"
	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/indexer"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/knowledge"
	"github.com/kbasehq/knowledge-engine/internal/library"
	"github.com/kbasehq/knowledge-engine/internal/section"
	"github.com/kbasehq/knowledge-engine/internal/segment"
	"github.com/kbasehq/knowledge-engine/internal/tokenizer"
	"github.com/kbasehq/knowledge-engine/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) ModelName() string { return "fake" }
func (fakeEmbedder) Dimensions() int   { return 2 }
func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newTestManager(t *testing.T) (*Manager, library.Store, ids.ID, ids.ID) {
	t.Helper()
	blobs := blobfs.NewMemory()
	libraries := library.NewMemoryStore()
	ownerID := ids.New()
	libraryID := ids.New()
	require.NoError(t, libraries.CreateLibrary(context.Background(), library.Library{ID: libraryID, OwnerID: ownerID}))

	ix := indexer.New(blobs, knowledge.NewMemoryStore(), vectorstore.NewMemory(), embedding.Embedder(fakeEmbedder{}), tokenizer.WordTokenizer{}, indexer.Config{
		SegmentMarkers:   segment.DefaultMarkdownMarkers,
		ChunkMaxTokens:   100,
		ChunkStopSignals: nil,
		Section: section.Config{
			MaxTokensPerSection:        1000,
			LookaheadBufferSize:        5,
			StdDevMultiplier:           1,
			MinimumSimilarityThreshold: 0,
			TokenStrictnessThreshold:   0.75,
			MinimumChunksPerSection:    1,
		},
	})

	mgr := New(NewMemoryCache(), blobs, libraries, ix, Config{MaxFileSizeBytes: 1 << 20, SessionTTL: 0})
	return mgr, libraries, ownerID, libraryID
}

func TestInitiateRejectsWriterWithoutPermission(t *testing.T) {
	ctx := context.Background()
	mgr, _, _, libraryID := newTestManager(t)
	_, err := mgr.Initiate(ctx, libraryID, ids.New(), "doc.md", "text/markdown", 10, 5)
	require.Error(t, err)
	require.Equal(t, kberrors.Unauthorized, kberrors.KindOf(err))
}

func TestFullUploadLifecycleFinalisesAndIndexes(t *testing.T) {
	ctx := context.Background()
	mgr, libraries, ownerID, libraryID := newTestManager(t)
	content := []byte("hello there. this is a short document about cats.")

	session, err := mgr.Initiate(ctx, libraryID, ownerID, "doc.md", "text/markdown", int64(len(content)), 10)
	require.NoError(t, err)
	require.Equal(t, StateOpen, session.State)

	for i := 0; i < session.TotalChunks; i++ {
		start := i * 10
		end := start + 10
		if end > len(content) {
			end = len(content)
		}
		session, err = mgr.UploadChunk(ctx, session.ID, i, bytes.NewReader(content[start:end]))
		require.NoError(t, err)
	}
	require.Equal(t, StateComplete, session.State)

	finalSession, file, err := mgr.Complete(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, StateFinalised, finalSession.State)
	require.Equal(t, int64(len(content)), file.SizeInBytes)

	stored, ok, err := libraries.GetFile(ctx, file.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, file.RelativePath, stored.RelativePath)
}

func TestUploadChunkRejectsDuplicateChunkNumber(t *testing.T) {
	ctx := context.Background()
	mgr, _, ownerID, libraryID := newTestManager(t)
	session, err := mgr.Initiate(ctx, libraryID, ownerID, "doc.md", "text/markdown", 20, 10)
	require.NoError(t, err)

	_, err = mgr.UploadChunk(ctx, session.ID, 0, bytes.NewReader(make([]byte, 10)))
	require.NoError(t, err)
	_, err = mgr.UploadChunk(ctx, session.ID, 0, bytes.NewReader(make([]byte, 10)))
	require.Error(t, err)
	require.Equal(t, kberrors.Conflict, kberrors.KindOf(err))
}

func TestCancelPurgesBlobAndDropsSession(t *testing.T) {
	ctx := context.Background()
	mgr, _, ownerID, libraryID := newTestManager(t)
	session, err := mgr.Initiate(ctx, libraryID, ownerID, "doc.md", "text/markdown", 20, 10)
	require.NoError(t, err)

	require.NoError(t, mgr.Cancel(ctx, session.ID))
	_, err = mgr.GetStatus(ctx, session.ID)
	require.Error(t, err)
	require.Equal(t, kberrors.NotFound, kberrors.KindOf(err))
}

func TestInitiateRejectsOversizedChunkSize(t *testing.T) {
	ctx := context.Background()
	mgr, _, ownerID, libraryID := newTestManager(t)
	_, err := mgr.Initiate(ctx, libraryID, ownerID, "doc.md", "text/markdown", 1000, MaxChunkSizeBytes+1)
	require.Error(t, err)
	require.Equal(t, kberrors.InputInvalid, kberrors.KindOf(err))
}
