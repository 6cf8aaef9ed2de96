package upload

import (
	"context"
	"io"
	"time"

	"github.com/kbasehq/knowledge-engine/internal/authz"
	"github.com/kbasehq/knowledge-engine/internal/blobfs"
	"github.com/kbasehq/knowledge-engine/internal/hashing"
	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/indexer"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/library"
)

// Manager drives the C11 chunked-upload state machine described in
// spec §4.7, handing a finalised upload off to the indexer.
type Manager struct {
	cache       Cache
	blobs       blobfs.BlobFS
	libraries   library.Store
	indexer     *indexer.Indexer
	maxFileSize int64
	ttl         time.Duration
}

// Config bundles the manager's tunables.
type Config struct {
	MaxFileSizeBytes int64
	SessionTTL       time.Duration
}

// New builds a Manager. A zero SessionTTL falls back to DefaultTTL.
func New(cache Cache, blobs blobfs.BlobFS, libraries library.Store, ix *indexer.Indexer, cfg Config) *Manager {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		cache:       cache,
		blobs:       blobs,
		libraries:   libraries,
		indexer:     ix,
		maxFileSize: cfg.MaxFileSizeBytes,
		ttl:         ttl,
	}
}

// Initiate opens a new upload session, per spec §4.7. The caller must
// hold at least Write on libraryID.
func (m *Manager) Initiate(ctx context.Context, libraryID, userID ids.ID, filename, contentType string, totalSize, chunkSize int64) (Session, error) {
	if err := authz.ValidateAccess(ctx, m.libraries, libraryID, userID, library.PermissionWrite); err != nil {
		return Session{}, err
	}
	if totalSize <= 0 || (m.maxFileSize > 0 && totalSize > m.maxFileSize) {
		return Session{}, kberrors.New(kberrors.InputInvalid, "total_size exceeds the configured maximum")
	}
	if chunkSize < 1 || chunkSize > MaxChunkSizeBytes || chunkSize > totalSize {
		return Session{}, kberrors.New(kberrors.InputInvalid, "chunk_size must be between 1 and min(50MiB, total_size)")
	}

	sessionID := ids.New()
	now := time.Now().UTC()
	session := Session{
		ID:             sessionID,
		LibraryID:      libraryID,
		UserID:         userID,
		Filename:       filename,
		ContentType:    contentType,
		TotalSize:      totalSize,
		ChunkSize:      chunkSize,
		TotalChunks:    totalChunks(totalSize, chunkSize),
		UploadedChunks: make(map[int]bool),
		TempBlobPath:   blobfs.UploadTempPath(libraryID.String(), sessionID.String()),
		State:          StateOpen,
		ExpiresAt:      now.Add(m.ttl),
		CreatedAt:      now,
	}
	if err := m.cache.Put(ctx, session, m.ttl); err != nil {
		return Session{}, err
	}
	return session, nil
}

// UploadChunk appends chunkNumber's bytes to the session's temp blob,
// per spec §4.7. Re-uploading an already-present chunk number fails
// with Conflict.
func (m *Manager) UploadChunk(ctx context.Context, sessionID ids.ID, chunkNumber int, r io.Reader) (Session, error) {
	session, err := m.requireOpen(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if chunkNumber < 0 || chunkNumber >= session.TotalChunks {
		return Session{}, kberrors.New(kberrors.InputInvalid, "chunk_number out of range")
	}
	if session.UploadedChunks[chunkNumber] {
		return Session{}, kberrors.New(kberrors.Conflict, "chunk already uploaded")
	}

	if err := m.blobs.WriteChunk(ctx, session.TempBlobPath, chunkNumber, session.ChunkSize, r); err != nil {
		return Session{}, kberrors.Wrap(kberrors.StorageError, "write upload chunk", err)
	}

	session.UploadedChunks[chunkNumber] = true
	if session.AllChunksUploaded() {
		session.State = StateComplete
	}
	if err := m.cache.Put(ctx, session, time.Until(session.ExpiresAt)); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Complete finalises the upload: verifies size, hashes the blob,
// records a LibraryFile, moves the blob to its permanent path, and
// invokes the indexer. Any failure purges the final blob and leaves
// the session intact for inspection via GetStatus.
func (m *Manager) Complete(ctx context.Context, sessionID ids.ID) (Session, library.File, error) {
	session, err := m.get(ctx, sessionID)
	if err != nil {
		return Session{}, library.File{}, err
	}
	if session.State != StateComplete && session.State != StateOpen {
		return Session{}, library.File{}, kberrors.New(kberrors.Conflict, "upload session is not ready to complete")
	}
	if !session.AllChunksUploaded() {
		return Session{}, library.File{}, kberrors.New(kberrors.InputInvalid, "not all chunks have been uploaded")
	}

	if err := m.blobs.Finalize(ctx, session.TempBlobPath); err != nil {
		return Session{}, library.File{}, kberrors.Wrap(kberrors.StorageError, "finalize upload blob", err)
	}
	size, err := m.blobs.Size(ctx, session.TempBlobPath)
	if err != nil {
		return Session{}, library.File{}, kberrors.Wrap(kberrors.StorageError, "stat upload blob", err)
	}
	if size != session.TotalSize {
		_ = m.blobs.Delete(ctx, session.TempBlobPath)
		return Session{}, library.File{}, kberrors.New(kberrors.Integrity, "assembled blob size does not match total_size")
	}

	reader, err := m.blobs.Get(ctx, session.TempBlobPath)
	if err != nil {
		return Session{}, library.File{}, err
	}
	sum, err := hashing.Stream(reader)
	reader.Close()
	if err != nil {
		_ = m.blobs.Delete(ctx, session.TempBlobPath)
		return Session{}, library.File{}, kberrors.Wrap(kberrors.StorageError, "hash upload blob", err)
	}

	fileID := ids.New()
	finalPath := blobfs.LibraryFilePath(session.LibraryID.String(), fileID.String(), session.Filename)
	if err := m.blobs.Move(ctx, session.TempBlobPath, finalPath); err != nil {
		_ = m.blobs.Delete(ctx, session.TempBlobPath)
		return Session{}, library.File{}, kberrors.Wrap(kberrors.StorageError, "move upload blob to final path", err)
	}

	now := time.Now().UTC()
	file := library.File{
		ID:               fileID,
		LibraryID:        session.LibraryID,
		OriginalFileName: session.Filename,
		ContentType:      session.ContentType,
		SizeInBytes:      session.TotalSize,
		RelativePath:     finalPath,
		Hash:             sum,
		UploadedByUserID: session.UserID,
		UploadedAt:       now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.libraries.CreateFile(ctx, file); err != nil {
		_ = m.blobs.Delete(ctx, finalPath)
		return Session{}, library.File{}, kberrors.Wrap(kberrors.StorageError, "create library file record", err)
	}

	res, err := m.indexer.Index(ctx, indexer.FileSource{FileID: fileID, BlobPath: finalPath, Filename: session.Filename})
	if err != nil {
		_ = m.blobs.Delete(ctx, finalPath)
		return Session{}, library.File{}, kberrors.Wrap(kberrors.StorageError, "index uploaded file", err)
	}
	if res.Outcome == indexer.Failed {
		_ = m.blobs.Delete(ctx, finalPath)
		return Session{}, library.File{}, kberrors.New(kberrors.StorageError, "index uploaded file: "+res.Reason)
	}

	session.State = StateFinalised
	if err := m.cache.Put(ctx, session, time.Until(session.ExpiresAt)); err != nil {
		return Session{}, library.File{}, err
	}
	return session, file, nil
}

// Cancel purges the temp blob and drops the session.
func (m *Manager) Cancel(ctx context.Context, sessionID ids.ID) error {
	session, err := m.get(ctx, sessionID)
	if err != nil {
		return err
	}
	_ = m.blobs.Delete(ctx, session.TempBlobPath)
	session.State = StateCancelled
	return m.cache.Delete(ctx, sessionID.String())
}

// GetStatus returns a snapshot of the session, expiring it in place if
// its deadline has passed.
func (m *Manager) GetStatus(ctx context.Context, sessionID ids.ID) (Session, error) {
	return m.get(ctx, sessionID)
}

func (m *Manager) get(ctx context.Context, sessionID ids.ID) (Session, error) {
	session, ok, err := m.cache.Get(ctx, sessionID.String())
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, kberrors.New(kberrors.NotFound, "upload session not found or expired")
	}
	if session.State == StateOpen && time.Now().After(session.ExpiresAt) {
		_ = m.blobs.Delete(ctx, session.TempBlobPath)
		_ = m.cache.Delete(ctx, sessionID.String())
		session.State = StateExpired
		return session, kberrors.New(kberrors.NotFound, "upload session expired")
	}
	return session, nil
}

func (m *Manager) requireOpen(ctx context.Context, sessionID ids.ID) (Session, error) {
	session, err := m.get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.State != StateOpen {
		return Session{}, kberrors.New(kberrors.Conflict, "upload session is not open")
	}
	return session, nil
}
