// Package segment implements the C4 text segment reader: a lazy,
// finite, non-restartable sequence of "segments" cut from a character
// stream on an ordered list of break markers.
package segment

import (
	"context"
	"io"
	"sort"

	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

// Segment is one lazily-produced piece of the source text. Segments
// preserve original whitespace, so concatenating every Segment from a
// Reader reproduces the input losslessly.
type Segment struct {
	Text string
}

// DefaultMarkdownMarkers is the markdown break-marker preset from spec
// §4.1: heading levels 1-6, blank lines, list bullets, fenced code
// fences, hard line breaks, and sentence terminators, in priority
// order (earlier entries win ties at the same buffer position).
var DefaultMarkdownMarkers = []string{
	"\n###### ",
	"\n##### ",
	"\n#### ",
	"\n### ",
	"\n## ",
	"\n# ",
	"\n\n",
	"\n- ",
	"\n* ",
	"\n```",
	"  \n",
	". ",
	"? ",
	"! ",
}

const readChunkSize = 4096

// Reader pulls from an underlying io.Reader and yields Segments on
// demand via Next. A Reader is not safe for concurrent use and cannot
// be restarted once exhausted.
type Reader struct {
	src     io.Reader
	markers []string
	buf     []byte
	eof     bool
	done    bool
	readBuf []byte
}

// NewReader builds a segment Reader over src using the given ordered
// break markers. An empty markers slice falls back to
// DefaultMarkdownMarkers.
func NewReader(src io.Reader, markers []string) *Reader {
	if len(markers) == 0 {
		markers = DefaultMarkdownMarkers
	}
	return &Reader{
		src:     src,
		markers: markers,
		readBuf: make([]byte, readChunkSize),
	}
}

// Next returns the next Segment, or ok=false once the stream is
// exhausted. It honours ctx for cooperative cancellation between
// underlying reads.
func (r *Reader) Next(ctx context.Context) (Segment, bool, error) {
	if r.done {
		return Segment{}, false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Segment{}, false, kberrors.Wrap(kberrors.Cancelled, "segment reader cancelled", ctx.Err())
		default:
		}

		if pos, markerLen, found := r.earliestMarker(); found {
			cut := pos + markerLen
			text := string(r.buf[:cut])
			r.buf = r.buf[cut:]
			return Segment{Text: text}, true, nil
		}

		if r.eof {
			r.done = true
			if len(r.buf) == 0 {
				return Segment{}, false, nil
			}
			text := string(r.buf)
			r.buf = nil
			return Segment{Text: text}, true, nil
		}

		if err := r.fill(); err != nil {
			r.done = true
			return Segment{}, false, kberrors.Wrap(kberrors.StorageError, "segment reader underlying read failed", err)
		}
	}
}

func (r *Reader) fill() error {
	n, err := r.src.Read(r.readBuf)
	if n > 0 {
		r.buf = append(r.buf, r.readBuf[:n]...)
	}
	if err == io.EOF {
		r.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	return nil
}

// earliestMarker finds the lowest starting index at which any marker
// occurs in the current buffer, breaking ties by marker priority
// (earlier in r.markers wins).
func (r *Reader) earliestMarker() (pos int, markerLen int, found bool) {
	type hit struct {
		pos      int
		priority int
		length   int
	}
	var hits []hit
	for i, m := range r.markers {
		idx := indexOf(r.buf, m)
		if idx >= 0 {
			hits = append(hits, hit{pos: idx, priority: i, length: len(m)})
		}
	}
	if len(hits) == 0 {
		return 0, 0, false
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].priority < hits[j].priority
	})
	best := hits[0]
	return best.pos, best.length, true
}

func indexOf(haystack []byte, needle string) int {
	if needle == "" {
		return -1
	}
	n := len(haystack)
	m := len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if string(haystack[i:i+m]) == needle {
			return i
		}
	}
	return -1
}
