// Package section implements the C6 section reader, the engine's
// analytical core: it groups chunks into semantically coherent
// sections using a lookahead buffer of embeddings and an adaptive
// similarity threshold (spec §4.3).
package section

import (
	"context"
	"strings"

	"github.com/kbasehq/knowledge-engine/internal/chunk"
	"github.com/kbasehq/knowledge-engine/internal/embedding"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/vectormath"
)

// Chunk is a chunk.Chunk carrying its unit-normalised embedding.
type Chunk struct {
	Text       string
	TokenCount int
	Embedding  []float32
}

// Section is a batch of chunks the reader has decided belong together.
type Section struct {
	Index  int
	Chunks []Chunk
}

// Config holds the tuning knobs from spec §4.3.
type Config struct {
	MaxTokensPerSection        int
	LookaheadBufferSize        int
	StdDevMultiplier           float64
	MinimumSimilarityThreshold float64
	TokenStrictnessThreshold   float64
	MinimumChunksPerSection    int
	MinimumTokensPerSection    int
}

// Source is anything that yields chunks in order; satisfied by
// *chunk.Reader.
type Source interface {
	Next(ctx context.Context) (chunk.Chunk, bool, error)
}

// Reader groups chunks from a Source into Sections.
type Reader struct {
	src         Source
	embedder    embedding.Embedder
	cfg         Config
	stopSignals []string

	buffer     []Chunk
	srcDone    bool
	current    []Chunk
	currentTok int
	sectionIdx int
	done       bool
}

// NewReader builds a section Reader.
func NewReader(src Source, embedder embedding.Embedder, cfg Config, stopSignals []string) *Reader {
	return &Reader{
		src:         src,
		embedder:    embedder,
		cfg:         cfg,
		stopSignals: stopSignals,
	}
}

// Next returns the next Section in document order, or ok=false once
// the source and any pending chunks are exhausted.
func (r *Reader) Next(ctx context.Context) (Section, bool, error) {
	if r.done {
		return Section{}, false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Section{}, false, kberrors.Wrap(kberrors.Cancelled, "section reader cancelled", ctx.Err())
		default:
		}

		if err := r.refill(ctx); err != nil {
			r.done = true
			return Section{}, false, err
		}

		if len(r.current) == 0 {
			if len(r.buffer) == 0 {
				r.done = true
				return Section{}, false, nil
			}
			r.current = append(r.current, r.buffer[0])
			r.currentTok = r.buffer[0].TokenCount
			r.buffer = r.buffer[1:]
			continue
		}

		if len(r.buffer) == 0 {
			return r.emit(), true, nil
		}

		candidate := r.buffer[0]
		if r.shouldSplit(candidate) {
			return r.emit(), true, nil
		}

		r.current = append(r.current, candidate)
		r.currentTok += candidate.TokenCount
		r.buffer = r.buffer[1:]
	}
}

// shouldSplit decides whether to cut the section before appending
// candidate, per spec §4.3 steps 2-4.
func (r *Reader) shouldSplit(candidate Chunk) bool {
	if len(r.current) < r.cfg.MinimumChunksPerSection || r.currentTok < r.cfg.MinimumTokensPerSection {
		return false
	}

	last := r.current[len(r.current)-1]
	similarity := vectormath.Cosine(last.Embedding, candidate.Embedding)
	effectiveThreshold := r.effectiveThreshold()

	if r.currentTok >= r.cfg.MaxTokensPerSection {
		return true
	}
	if similarity < effectiveThreshold {
		return true
	}
	if r.startsWithStopSignal(candidate.Text) {
		return true
	}
	return false
}

// effectiveThreshold computes τ from the buffer's consecutive-pair
// similarity statistics, then applies the token-strictness quadratic
// ramp.
func (r *Reader) effectiveThreshold() float64 {
	tau := r.cfg.MinimumSimilarityThreshold
	if len(r.buffer) >= 2 {
		pairs := make([]float64, 0, len(r.buffer)-1)
		for j := 0; j < len(r.buffer)-1; j++ {
			pairs = append(pairs, vectormath.Cosine(r.buffer[j].Embedding, r.buffer[j+1].Embedding))
		}
		mu := vectormath.Mean(pairs)
		sigma := vectormath.StdDev(pairs)
		candidate := mu - r.cfg.StdDevMultiplier*sigma
		if candidate > tau {
			tau = candidate
		}
	}

	f := float64(r.currentTok) / float64(r.cfg.MaxTokensPerSection)
	t := r.cfg.TokenStrictnessThreshold
	if f >= t && f < 1 && t < 1 {
		ramp := (f - t) / (1 - t)
		tau = tau + (1-tau)*ramp*ramp
	}
	return tau
}

func (r *Reader) startsWithStopSignal(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\n")
	for _, s := range r.stopSignals {
		if strings.HasPrefix(trimmed, strings.TrimLeft(s, " \t\n")) {
			return true
		}
	}
	return false
}

func (r *Reader) emit() Section {
	out := Section{Index: r.sectionIdx, Chunks: r.current}
	r.sectionIdx++
	r.current = nil
	r.currentTok = 0
	return out
}

// refill tops the lookahead buffer up to LookaheadBufferSize,
// embedding newly pulled chunks in a single batched call and
// unit-normalising each embedding at insertion.
func (r *Reader) refill(ctx context.Context) error {
	if r.srcDone || len(r.buffer) >= r.cfg.LookaheadBufferSize {
		return nil
	}

	var pulled []chunk.Chunk
	for len(r.buffer)+len(pulled) < r.cfg.LookaheadBufferSize {
		c, ok, err := r.src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			r.srcDone = true
			break
		}
		pulled = append(pulled, c)
	}
	if len(pulled) == 0 {
		return nil
	}

	texts := make([]string, len(pulled))
	for i, c := range pulled {
		texts[i] = c.Text
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return kberrors.Wrap(kberrors.EmbeddingError, "section reader embedding failed", err)
	}
	if len(vectors) != len(pulled) {
		return kberrors.New(kberrors.EmbeddingError, "section reader got mismatched embedding count")
	}

	for i, c := range pulled {
		r.buffer = append(r.buffer, Chunk{
			Text:       c.Text,
			TokenCount: c.TokenCount,
			Embedding:  vectormath.Normalize(vectors[i]),
		})
	}
	return nil
}
