// Package indexer implements the C10 indexer: it drives the
// segment→chunk→section pipeline over a blob, persists the result,
// synchronises the chunk vector index, and maintains idempotency
// against the file's content hash.
package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/kbasehq/knowledge-engine/internal/blobfs"
	"github.com/kbasehq/knowledge-engine/internal/chunk"
	"github.com/kbasehq/knowledge-engine/internal/embedding"
	"github.com/kbasehq/knowledge-engine/internal/hashing"
	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/knowledge"
	"github.com/kbasehq/knowledge-engine/internal/section"
	"github.com/kbasehq/knowledge-engine/internal/segment"
	"github.com/kbasehq/knowledge-engine/internal/tokenizer"
	"github.com/kbasehq/knowledge-engine/internal/vectorstore"
)

// Outcome is the indexer's result per spec §4.4.
type Outcome int

const (
	Indexed Outcome = iota
	UpToDate
	Failed
	InProgress
)

func (o Outcome) String() string {
	switch o {
	case Indexed:
		return "indexed"
	case UpToDate:
		return "up_to_date"
	case Failed:
		return "failed"
	case InProgress:
		return "in_progress"
	default:
		return "unknown"
	}
}

// Result carries the outcome and, on failure, the reason.
type Result struct {
	Outcome Outcome
	Reason  string
}

// FileSource identifies the blob to index and the KnowledgeFile it
// becomes.
type FileSource struct {
	FileID   ids.ID
	BlobPath string
	Filename string
}

// Config bundles the pipeline tuning knobs the indexer threads through
// to the chunk and section readers.
type Config struct {
	SegmentMarkers  []string
	ChunkMaxTokens  int
	ChunkStopSignals []string
	Section         section.Config
}

// Indexer orchestrates C4→C9 for one file at a time per file_id.
type Indexer struct {
	blobs    blobfs.BlobFS
	store    knowledge.Store
	vectors  vectorstore.Store
	embedder embedding.Embedder
	tok      tokenizer.Tokenizer
	cfg      Config

	mu    sync.Mutex
	locks map[ids.ID]struct{}
}

// New builds an Indexer.
func New(blobs blobfs.BlobFS, store knowledge.Store, vectors vectorstore.Store, embedder embedding.Embedder, tok tokenizer.Tokenizer, cfg Config) *Indexer {
	return &Indexer{
		blobs:    blobs,
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		tok:      tok,
		cfg:      cfg,
		locks:    make(map[ids.ID]struct{}),
	}
}

func (ix *Indexer) tryLock(fileID ids.ID) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, busy := ix.locks[fileID]; busy {
		return false
	}
	ix.locks[fileID] = struct{}{}
	return true
}

func (ix *Indexer) unlock(fileID ids.ID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.locks, fileID)
}

// Index drives the full pipeline for src, per spec §4.4. At most one
// concurrent call per file_id is permitted; a second concurrent call
// returns InProgress immediately.
func (ix *Indexer) Index(ctx context.Context, src FileSource) (Result, error) {
	if !ix.tryLock(src.FileID) {
		return Result{Outcome: InProgress}, nil
	}
	defer ix.unlock(src.FileID)

	newHash, err := ix.hashBlob(ctx, src.BlobPath)
	if err != nil {
		return Result{}, err
	}

	existing, exists, err := ix.store.GetFileByID(ctx, src.FileID)
	if err != nil {
		return Result{}, kberrors.Wrap(kberrors.StorageError, "look up existing knowledge file", err)
	}
	if exists && existing.Hash.Equal(newHash) {
		return Result{Outcome: UpToDate}, nil
	}

	if exists {
		if err := ix.purge(ctx, src.FileID); err != nil {
			return Result{}, err
		}
	}

	if err := ix.store.UpsertFile(ctx, knowledge.File{
		ID:     src.FileID,
		Name:   src.Filename,
		Hash:   newHash,
		Status: knowledge.StatusIndexing,
	}); err != nil {
		return Result{}, kberrors.Wrap(kberrors.StorageError, "mark knowledge file indexing", err)
	}

	if err := ix.runPipeline(ctx, src); err != nil {
		_ = ix.purge(ctx, src.FileID)
		_ = ix.store.UpdateFileStatus(ctx, src.FileID, knowledge.StatusFailed, time.Now().UTC())
		if kberrors.Is(err, kberrors.Cancelled) {
			return Result{}, err
		}
		return Result{Outcome: Failed, Reason: err.Error()}, nil
	}

	if err := ix.store.UpdateFileStatus(ctx, src.FileID, knowledge.StatusIndexed, time.Now().UTC()); err != nil {
		return Result{}, kberrors.Wrap(kberrors.StorageError, "mark knowledge file indexed", err)
	}
	return Result{Outcome: Indexed}, nil
}

func (ix *Indexer) purge(ctx context.Context, fileID ids.ID) error {
	if err := ix.store.DeleteByFile(ctx, fileID); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "purge existing sections/chunks", err)
	}
	if err := ix.vectors.RemoveByFile(ctx, fileID); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "purge existing vectors", err)
	}
	return nil
}

func (ix *Indexer) hashBlob(ctx context.Context, path string) (hashing.Sum, error) {
	r, err := ix.blobs.Get(ctx, path)
	if err != nil {
		return hashing.Sum{}, err
	}
	defer r.Close()
	sum, err := hashing.Stream(r)
	if err != nil {
		return hashing.Sum{}, kberrors.Wrap(kberrors.StorageError, "hash blob", err)
	}
	return sum, nil
}

func (ix *Indexer) runPipeline(ctx context.Context, src FileSource) error {
	blob, err := ix.blobs.Get(ctx, src.BlobPath)
	if err != nil {
		return err
	}
	defer blob.Close()

	segReader := segment.NewReader(blob, ix.cfg.SegmentMarkers)
	chunkReader := chunk.NewReader(segReader, ix.tok, ix.cfg.ChunkMaxTokens, ix.cfg.ChunkStopSignals)
	sectionReader := section.NewReader(chunkReader, ix.embedder, ix.cfg.Section, ix.cfg.ChunkStopSignals)

	for {
		select {
		case <-ctx.Done():
			return kberrors.Wrap(kberrors.Cancelled, "indexing cancelled", ctx.Err())
		default:
		}

		sec, ok, err := sectionReader.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		sectionID := ids.New()
		chunks := make([]knowledge.Chunk, len(sec.Chunks))
		for i, c := range sec.Chunks {
			chunks[i] = knowledge.Chunk{
				ID:         ids.New(),
				SectionID:  sectionID,
				FileID:     src.FileID,
				ChunkIndex: i,
				Content:    c.Text,
				Embedding:  c.Embedding,
			}
		}

		if err := ix.store.PersistSection(ctx, knowledge.SectionWithChunks{
			Section: knowledge.Section{
				ID:           sectionID,
				FileID:       src.FileID,
				SectionIndex: sec.Index,
			},
			Chunks: chunks,
		}); err != nil {
			return kberrors.Wrap(kberrors.StorageError, "persist section", err)
		}

		for _, c := range chunks {
			if err := ix.vectors.Add(ctx, c.ID, src.FileID, c.Embedding); err != nil {
				return kberrors.Wrap(kberrors.StorageError, "add chunk vector", err)
			}
		}
	}
}
