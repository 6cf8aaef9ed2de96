// Package search implements the C13 searcher: embed a query, retrieve
// the nearest chunks from the vector store, aggregate them back into
// their sections, and rank sections by a composite relevance score.
package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kbasehq/knowledge-engine/internal/embedding"
	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/knowledge"
	"github.com/kbasehq/knowledge-engine/internal/vectormath"
	"github.com/kbasehq/knowledge-engine/internal/vectorstore"
)

// maxConcurrentSectionLoads bounds how many sections are fetched from
// the knowledge store at once when a search hits many distinct
// sections.
const maxConcurrentSectionLoads = 8

const (
	startMarker = "--- START OF NEW CONTEXT SECTION ---"
	endMarker   = "--- END OF CONTEXT SEARCH RESULT ---"

	weightMaxSim   = 0.55
	weightMeanTopK = 0.35
	weightCoverage = 0.10

	topKForMean = 3
)

// Metrics carries the per-section relevance computation.
type Metrics struct {
	MaxSim          float64
	MeanTopK        float64
	Coverage        float64
	NormalizedScore float64
	Composite       float64
	RelevanceScore  int
}

// Entry pairs a ranked section with its metrics and chunks, in the
// order the section's chunks appear in the document.
type Entry struct {
	Section knowledge.Section
	Chunks  []knowledge.Chunk
	Metrics Metrics
}

// Result is the outcome of a Search call.
type Result struct {
	Entries []Entry
	Context string

	Success   bool
	Retryable bool
	Error     error
}

// Searcher is the C13 port.
type Searcher struct {
	embedder embedding.Embedder
	vectors  vectorstore.Store
	store    knowledge.Store
}

// New builds a Searcher.
func New(embedder embedding.Embedder, vectors vectorstore.Store, store knowledge.Store) *Searcher {
	return &Searcher{embedder: embedder, vectors: vectors, store: store}
}

// Search implements spec §4.6. Embedding or store failures produce a
// Result with Success=false and Retryable=true rather than an error
// return, since the caller is expected to inspect and possibly retry a
// whole search rather than unwrap a Go error chain.
func (s *Searcher) Search(ctx context.Context, query string, k int) Result {
	if k <= 0 {
		return failure(kberrors.New(kberrors.InputInvalid, "search k must be positive"), false)
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return failure(kberrors.Wrap(kberrors.EmbeddingError, "embed search query", err), true)
	}
	queryVec := vecs[0]

	hits, err := s.vectors.Search(ctx, queryVec, k)
	if err != nil {
		return failure(kberrors.Wrap(kberrors.StorageError, "vector search", err), true)
	}
	if len(hits) == 0 {
		return Result{Success: true}
	}

	chunkIDs := make([]ids.ID, len(hits))
	scoreByChunk := make(map[ids.ID]float64, len(hits))
	for i, h := range hits {
		chunkIDs[i] = h.ChunkID
		scoreByChunk[h.ChunkID] = vectormath.Clamp01(h.Score)
	}

	chunks, err := s.store.GetChunksByIDs(ctx, chunkIDs)
	if err != nil {
		return failure(kberrors.Wrap(kberrors.StorageError, "load hit chunks", err), true)
	}

	bySection := make(map[ids.ID][]float64)
	var allHitScores []float64
	for _, c := range chunks {
		score, ok := scoreByChunk[c.ID]
		if !ok {
			continue
		}
		bySection[c.SectionID] = append(bySection[c.SectionID], score)
		allHitScores = append(allHitScores, score)
	}
	if len(allHitScores) == 0 {
		return Result{Success: true}
	}

	muG := vectormath.Mean(allHitScores)
	sigmaG := vectormath.StdDev(allHitScores)
	if sigmaG < 1e-12 {
		sigmaG = 1e-12
	}

	sectionIDs := make([]ids.ID, 0, len(bySection))
	for sectionID := range bySection {
		sectionIDs = append(sectionIDs, sectionID)
	}

	loaded := make([]*Entry, len(sectionIDs))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentSectionLoads)
	for i, sectionID := range sectionIDs {
		i, sectionID := i, sectionID
		group.Go(func() error {
			section, ok, err := s.store.GetSectionByID(gctx, sectionID)
			if err != nil {
				return kberrors.Wrap(kberrors.StorageError, "load section", err)
			}
			if !ok {
				return nil
			}
			sectionChunks, err := s.store.GetAllChunksBySection(gctx, sectionID)
			if err != nil {
				return kberrors.Wrap(kberrors.StorageError, "load section chunks", err)
			}
			metrics := computeMetrics(bySection[sectionID], len(sectionChunks), muG, sigmaG)
			loaded[i] = &Entry{Section: section, Chunks: sectionChunks, Metrics: metrics}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return failure(err, true)
	}

	var entries []Entry
	for _, e := range loaded {
		if e != nil {
			entries = append(entries, *e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Metrics.Composite != b.Metrics.Composite {
			return a.Metrics.Composite > b.Metrics.Composite
		}
		if a.Metrics.NormalizedScore != b.Metrics.NormalizedScore {
			return a.Metrics.NormalizedScore > b.Metrics.NormalizedScore
		}
		if a.Section.FileID != b.Section.FileID {
			return a.Section.FileID.String() < b.Section.FileID.String()
		}
		return a.Section.SectionIndex < b.Section.SectionIndex
	})

	return Result{
		Entries: entries,
		Context: renderContext(entries),
		Success: true,
	}
}

func computeMetrics(hitScores []float64, totalChunks int, muG, sigmaG float64) Metrics {
	clamped := make([]float64, len(hitScores))
	for i, h := range hitScores {
		clamped[i] = vectormath.Clamp01(h)
	}

	sorted := append([]float64(nil), clamped...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	maxSim := sorted[0]
	topK := sorted
	if len(topK) > topKForMean {
		topK = topK[:topKForMean]
	}
	meanTopK := vectormath.Mean(topK)

	var sum float64
	for _, h := range clamped {
		sum += h
	}
	coverage := 0.0
	if totalChunks > 0 {
		coverage = math.Sqrt(sum / float64(totalChunks))
	}

	zs := make([]float64, len(clamped))
	for i, h := range clamped {
		zs[i] = (h - muG) / sigmaG
	}
	meanZ := vectormath.Mean(zs)
	normalizedScore := 100 * vectormath.Sigmoid(meanZ)

	composite := weightMaxSim*maxSim + weightMeanTopK*meanTopK + weightCoverage*coverage

	return Metrics{
		MaxSim:          maxSim,
		MeanTopK:        meanTopK,
		Coverage:        coverage,
		NormalizedScore: normalizedScore,
		Composite:       composite,
		RelevanceScore:  int(math.Round(100 * composite)),
	}
}

func renderContext(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(startMarker)
		b.WriteString("\n")
		for _, c := range e.Chunks {
			b.WriteString(c.Content)
			b.WriteString("\n")
		}
		b.WriteString(endMarker)
		b.WriteString("\n")
	}
	return b.String()
}

func failure(err error, retryable bool) Result {
	return Result{Success: false, Retryable: retryable, Error: err}
}
