package segment

import (
	"context"
	"strings"
	"testing"
)

func drain(t *testing.T, r *Reader) []string {
	t.Helper()
	var out []string
	ctx := context.Background()
	for {
		seg, ok, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		out = append(out, seg.Text)
	}
	return out
}

func TestReaderSplitsOnSentenceTerminators(t *testing.T) {
	src := strings.NewReader("First sentence. Second sentence. Third")
	r := NewReader(src, []string{". "})

	segs := drain(t, r)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %v", len(segs), segs)
	}
	if segs[0] != "First sentence. " || segs[1] != "Second sentence. " || segs[2] != "Third" {
		t.Fatalf("unexpected segments: %v", segs)
	}
}

func TestReaderReconstructsSourceLosslessly(t *testing.T) {
	text := "# Heading\n\nSome paragraph text. More text here! A question? Done.\n- item one\n- item two\n"
	src := strings.NewReader(text)
	r := NewReader(src, DefaultMarkdownMarkers)

	segs := drain(t, r)
	if joined := strings.Join(segs, ""); joined != text {
		t.Fatalf("lossless reconstruction failed:\nwant %q\ngot  %q", text, joined)
	}
}

func TestReaderEmptyInputYieldsNoSegments(t *testing.T) {
	r := NewReader(strings.NewReader(""), nil)
	segs := drain(t, r)
	if len(segs) != 0 {
		t.Fatalf("expected no segments, got %v", segs)
	}
}

func TestReaderNoMarkerYieldsSingleFinalSegment(t *testing.T) {
	r := NewReader(strings.NewReader("no markers here at all"), []string{". "})
	segs := drain(t, r)
	if len(segs) != 1 || segs[0] != "no markers here at all" {
		t.Fatalf("unexpected segments: %v", segs)
	}
}

func TestReaderIsNonRestartable(t *testing.T) {
	r := NewReader(strings.NewReader("a. b."), []string{". "})
	_ = drain(t, r)
	seg, ok, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected exhausted reader to keep returning ok=false, got %+v", seg)
	}
}
