package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/kbasehq/knowledge-engine/internal/segment"
	"github.com/kbasehq/knowledge-engine/internal/tokenizer"
)

func drain(t *testing.T, r *Reader) []Chunk {
	t.Helper()
	ctx := context.Background()
	var out []Chunk
	for {
		c, ok, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}

func TestReaderPacksUnderBudget(t *testing.T) {
	src := segment.NewReader(strings.NewReader("one two. three four. five six."), []string{". "})
	r := NewReader(src, tokenizer.WordTokenizer{}, 10, nil)

	chunks := drain(t, r)
	if len(chunks) != 1 {
		t.Fatalf("expected everything to pack into one chunk, got %d: %+v", len(chunks), chunks)
	}
}

func TestReaderSplitsWhenOverBudget(t *testing.T) {
	src := segment.NewReader(strings.NewReader("one two three. four five six. seven eight nine."), []string{". "})
	r := NewReader(src, tokenizer.WordTokenizer{}, 4, nil)

	chunks := drain(t, r)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %+v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if c.TokenCount > 4 {
			t.Fatalf("chunk exceeds budget: %+v", c)
		}
	}
}

func TestOversizedSegmentBecomesOwnChunk(t *testing.T) {
	src := segment.NewReader(strings.NewReader("one two three four five six seven."), []string{". "})
	r := NewReader(src, tokenizer.WordTokenizer{}, 3, nil)

	chunks := drain(t, r)
	if len(chunks) != 1 {
		t.Fatalf("expected the oversized segment alone, got %+v", chunks)
	}
	if chunks[0].TokenCount <= 3 {
		t.Fatalf("expected an over-budget chunk when a single segment exceeds it, got %+v", chunks[0])
	}
}

func TestStopSignalForcesEarlyCut(t *testing.T) {
	src := segment.NewReader(strings.NewReader("alpha beta\n# gamma delta epsilon"), []string{"\n# "})
	r := NewReader(src, tokenizer.WordTokenizer{}, 100, []string{"\n# "})

	chunks := drain(t, r)
	if len(chunks) != 2 {
		t.Fatalf("expected a forced cut at the stop signal, got %d: %+v", len(chunks), chunks)
	}
	if strings.Contains(chunks[0].Text, "\n# ") {
		t.Fatalf("expected the stop signal to open the next chunk, not the prior one, got %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, "\n# ") {
		t.Fatalf("expected second chunk to start with the stop signal, got %q", chunks[1].Text)
	}
}

func TestReaderReconstructsTextLosslessly(t *testing.T) {
	text := "first part. second part. third part with more words to push past budget."
	src := segment.NewReader(strings.NewReader(text), []string{". "})
	r := NewReader(src, tokenizer.WordTokenizer{}, 3, nil)

	var rebuilt strings.Builder
	for _, c := range drain(t, r) {
		rebuilt.WriteString(c.Text)
	}
	if rebuilt.String() != text {
		t.Fatalf("lossless reconstruction failed:\nwant %q\ngot  %q", text, rebuilt.String())
	}
}
