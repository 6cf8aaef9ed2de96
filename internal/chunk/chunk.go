// Package chunk implements the C5 chunk reader: it packs segments from
// a segment.Reader into token-bounded Chunks, honouring stop signals
// that force an early cut and the oversized-segment-as-single-chunk
// rule from spec §4.2.
package chunk

import (
	"context"
	"strings"

	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/segment"
	"github.com/kbasehq/knowledge-engine/internal/tokenizer"
)

// Chunk is a token-bounded, contiguous piece of text assembled from one
// or more segments.
type Chunk struct {
	Text       string
	TokenCount int
}

// Source is anything that yields segments in order; satisfied by
// *segment.Reader.
type Source interface {
	Next(ctx context.Context) (segment.Segment, bool, error)
}

// Reader packs segments pulled from a Source into Chunks.
type Reader struct {
	src         Source
	tok         tokenizer.Tokenizer
	maxTokens   int
	stopSignals []string

	pending    strings.Builder
	pendingTok int
	lookahead  *segment.Segment
	done       bool
}

// NewReader builds a chunk Reader. maxTokens bounds every emitted
// chunk except when a single segment alone already exceeds it, in
// which case that segment becomes its own chunk (spec §4.2). An empty
// stopSignals forgoes forced early cuts.
func NewReader(src Source, tok tokenizer.Tokenizer, maxTokens int, stopSignals []string) *Reader {
	return &Reader{
		src:         src,
		tok:         tok,
		maxTokens:   maxTokens,
		stopSignals: stopSignals,
	}
}

// Next returns the next Chunk, or ok=false once the source and any
// pending text are exhausted.
func (r *Reader) Next(ctx context.Context) (Chunk, bool, error) {
	if r.done {
		return Chunk{}, false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Chunk{}, false, kberrors.Wrap(kberrors.Cancelled, "chunk reader cancelled", ctx.Err())
		default:
		}

		seg, ok, err := r.nextSegment(ctx)
		if err != nil {
			r.done = true
			return Chunk{}, false, err
		}
		if !ok {
			if r.pendingTok == 0 && r.pending.Len() == 0 {
				r.done = true
				return Chunk{}, false, nil
			}
			return r.flush(), true, nil
		}

		segTokens, err := r.countTokens(seg.Text)
		if err != nil {
			r.done = true
			return Chunk{}, false, err
		}

		if r.pending.Len() == 0 && segTokens >= r.maxTokens {
			return Chunk{Text: seg.Text, TokenCount: segTokens}, true, nil
		}

		if r.pending.Len() > 0 && r.hasStopSignal(seg.Text) {
			r.lookahead = &seg
			return r.flush(), true, nil
		}

		if r.pendingTok+segTokens > r.maxTokens {
			r.lookahead = &seg
			out := r.flush()
			return out, true, nil
		}

		r.pending.WriteString(seg.Text)
		r.pendingTok += segTokens
	}
}

func (r *Reader) nextSegment(ctx context.Context) (segment.Segment, bool, error) {
	if r.lookahead != nil {
		seg := *r.lookahead
		r.lookahead = nil
		return seg, true, nil
	}
	return r.src.Next(ctx)
}

func (r *Reader) hasStopSignal(text string) bool {
	for _, s := range r.stopSignals {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func (r *Reader) flush() Chunk {
	text := r.pending.String()
	tokens := r.pendingTok
	r.pending.Reset()
	r.pendingTok = 0
	return Chunk{Text: text, TokenCount: tokens}
}

func (r *Reader) countTokens(text string) (int, error) {
	if r.tok == nil {
		return 0, kberrors.New(kberrors.InputInvalid, "chunk reader requires a tokenizer")
	}
	return r.tok.CountTokens(text), nil
}
