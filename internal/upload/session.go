// Package upload implements the C11 chunked-upload session manager:
// a state machine over a temp blob plus an ephemeral keyed cache,
// finalised by handing off to the indexer (C10).
package upload

import (
	"time"

	"github.com/kbasehq/knowledge-engine/internal/ids"
)

// State is a Session's lifecycle state, per spec §4.7.
type State int

const (
	StateOpen State = iota
	StateComplete
	StateExpired
	StateCancelled
	StateFinalised
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateComplete:
		return "complete"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	case StateFinalised:
		return "finalised"
	default:
		return "unknown"
	}
}

// DefaultTTL is the session lifetime applied when the caller does not
// override it.
const DefaultTTL = 24 * time.Hour

// MaxChunkSizeBytes is the hard ceiling on chunk_size regardless of
// total_size, per spec §4.7.
const MaxChunkSizeBytes = 50 * 1024 * 1024

// Session is the persisted state of one in-flight chunked upload.
type Session struct {
	ID              ids.ID
	LibraryID       ids.ID
	UserID          ids.ID
	Filename        string
	ContentType     string
	TotalSize       int64
	ChunkSize       int64
	TotalChunks     int
	UploadedChunks  map[int]bool
	TempBlobPath    string
	State           State
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// Clone returns a deep copy, so cache adapters never hand out a
// Session whose map a caller could mutate behind the cache's back.
func (s Session) Clone() Session {
	out := s
	out.UploadedChunks = make(map[int]bool, len(s.UploadedChunks))
	for k, v := range s.UploadedChunks {
		out.UploadedChunks[k] = v
	}
	return out
}

// AllChunksUploaded reports whether every chunk in [0, TotalChunks) is
// present.
func (s Session) AllChunksUploaded() bool {
	if len(s.UploadedChunks) != s.TotalChunks {
		return false
	}
	for i := 0; i < s.TotalChunks; i++ {
		if !s.UploadedChunks[i] {
			return false
		}
	}
	return true
}

func totalChunks(totalSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	n := totalSize / chunkSize
	if totalSize%chunkSize != 0 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return int(n)
}
