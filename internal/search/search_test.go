package search

import (
	"context"
	"strings"
	"testing"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/knowledge"
	"github.com/kbasehq/knowledge-engine/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	vec []float32
}

func (f fixedEmbedder) ModelName() string { return "fixed" }
func (f fixedEmbedder) Dimensions() int   { return len(f.vec) }
func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func seedSection(t *testing.T, store knowledge.Store, vectors vectorstore.Store, fileID ids.ID, sectionIndex int, texts []string, vecs [][]float32) knowledge.Section {
	t.Helper()
	ctx := context.Background()
	sectionID := ids.New()
	chunks := make([]knowledge.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = knowledge.Chunk{
			ID:         ids.New(),
			SectionID:  sectionID,
			FileID:     fileID,
			ChunkIndex: i,
			Content:    text,
			Embedding:  vecs[i],
		}
	}
	section := knowledge.Section{ID: sectionID, FileID: fileID, SectionIndex: sectionIndex}
	require.NoError(t, store.PersistSection(ctx, knowledge.SectionWithChunks{Section: section, Chunks: chunks}))
	for _, c := range chunks {
		require.NoError(t, vectors.Add(ctx, c.ID, fileID, c.Embedding))
	}
	return section
}

func TestSearchRanksMoreSimilarSectionFirst(t *testing.T) {
	ctx := context.Background()
	store := knowledge.NewMemoryStore()
	vectors := vectorstore.NewMemory()
	fileID := ids.New()

	catSection := seedSection(t, store, vectors, fileID, 0,
		[]string{"cats are great pets"},
		[][]float32{{1, 0}},
	)
	weatherSection := seedSection(t, store, vectors, fileID, 1,
		[]string{"the weather today is sunny"},
		[][]float32{{0, 1}},
	)

	searcher := New(fixedEmbedder{vec: []float32{1, 0}}, vectors, store)
	res := searcher.Search(ctx, "tell me about cats", 10)
	require.True(t, res.Success)
	require.NotEmpty(t, res.Entries)
	require.Equal(t, catSection.ID, res.Entries[0].Section.ID)
	if len(res.Entries) > 1 {
		require.Equal(t, weatherSection.ID, res.Entries[1].Section.ID)
		require.GreaterOrEqual(t, res.Entries[0].Metrics.Composite, res.Entries[1].Metrics.Composite)
	}
}

func TestSearchContextIsDelimitedByFixedMarkers(t *testing.T) {
	ctx := context.Background()
	store := knowledge.NewMemoryStore()
	vectors := vectorstore.NewMemory()
	fileID := ids.New()
	seedSection(t, store, vectors, fileID, 0, []string{"hello world"}, [][]float32{{1, 0}})

	searcher := New(fixedEmbedder{vec: []float32{1, 0}}, vectors, store)
	res := searcher.Search(ctx, "hello", 5)
	require.True(t, res.Success)
	require.True(t, strings.Contains(res.Context, "--- START OF NEW CONTEXT SECTION ---"))
	require.True(t, strings.Contains(res.Context, "--- END OF CONTEXT SEARCH RESULT ---"))
}

func TestSearchEmptyIndexSucceedsWithNoEntries(t *testing.T) {
	ctx := context.Background()
	store := knowledge.NewMemoryStore()
	vectors := vectorstore.NewMemory()

	searcher := New(fixedEmbedder{vec: []float32{1, 0}}, vectors, store)
	res := searcher.Search(ctx, "anything", 5)
	require.True(t, res.Success)
	require.Empty(t, res.Entries)
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	ctx := context.Background()
	store := knowledge.NewMemoryStore()
	vectors := vectorstore.NewMemory()
	searcher := New(fixedEmbedder{vec: []float32{1, 0}}, vectors, store)

	res := searcher.Search(ctx, "x", 0)
	require.False(t, res.Success)
	require.Error(t, res.Error)
}
