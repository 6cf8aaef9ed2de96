// Package pgstore implements the C8 knowledge.Store port against
// Postgres, the production counterpart to knowledge.MemoryStore.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/knowledge"
)

// Store is a pgx-backed knowledge.Store adapter.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The caller is responsible for having
// run the migrations (C15) first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// maxExecRetries bounds the retry loop execWithRetry performs on a
// transient Exec failure, mirroring the teacher engine's retry policy
// on DB writes.
const maxExecRetries = 3

func (s *Store) execWithRetry(ctx context.Context, sql string, args ...interface{}) error {
	var err error
	for attempt := 0; attempt < maxExecRetries; attempt++ {
		_, err = s.pool.Exec(ctx, sql, args...)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return err
}

func (s *Store) UpsertFile(ctx context.Context, f knowledge.File) error {
	err := s.execWithRetry(ctx, `
		INSERT INTO knowledge_files (id, name, content_hash, status, processed_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '0001-01-01 00:00:00+00'::timestamptz), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			content_hash = EXCLUDED.content_hash,
			status = EXCLUDED.status,
			processed_at = EXCLUDED.processed_at,
			updated_at = now()
	`, uuid.UUID(f.ID), f.Name, f.Hash[:], int(f.Status), f.ProcessedAt)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "upsert knowledge file", err)
	}
	return nil
}

func (s *Store) GetFileByID(ctx context.Context, id ids.ID) (knowledge.File, bool, error) {
	var f knowledge.File
	var hashBytes []byte
	var status int
	var processedAt *time.Time
	var rawID uuid.UUID

	err := s.pool.QueryRow(ctx, `
		SELECT id, name, content_hash, status, processed_at
		FROM knowledge_files WHERE id = $1
	`, uuid.UUID(id)).Scan(&rawID, &f.Name, &hashBytes, &status, &processedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.File{}, false, nil
	}
	if err != nil {
		return knowledge.File{}, false, kberrors.Wrap(kberrors.StorageError, "get knowledge file", err)
	}

	f.ID = ids.ID(rawID)
	f.Status = knowledge.FileStatus(status)
	copy(f.Hash[:], hashBytes)
	if processedAt != nil {
		f.ProcessedAt = *processedAt
	}
	return f, true, nil
}

func (s *Store) UpdateFileStatus(ctx context.Context, id ids.ID, status knowledge.FileStatus, processedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE knowledge_files SET status = $2, processed_at = $3, updated_at = now() WHERE id = $1
	`, uuid.UUID(id), int(status), processedAt)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "update knowledge file status", err)
	}
	if tag.RowsAffected() == 0 {
		return kberrors.New(kberrors.NotFound, "knowledge file not found")
	}
	return nil
}

func (s *Store) FileExists(ctx context.Context, id ids.ID) (bool, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_files WHERE id = $1`, uuid.UUID(id)).Scan(&count); err != nil {
		return false, kberrors.Wrap(kberrors.StorageError, "check knowledge file exists", err)
	}
	return count > 0, nil
}

// DeleteByFile deletes the file's sections and relies on the schema's
// ON DELETE CASCADE from chunks (and chunk_vectors) to their section,
// so one statement purges the whole subtree. The file row itself stays.
func (s *Store) DeleteByFile(ctx context.Context, fileID ids.ID) error {
	if err := s.execWithRetry(ctx, `DELETE FROM knowledge_file_sections WHERE file_id = $1`, uuid.UUID(fileID)); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "delete knowledge file sections", err)
	}
	return nil
}

func (s *Store) GetSectionByID(ctx context.Context, id ids.ID) (knowledge.Section, bool, error) {
	var sec knowledge.Section
	var rawID, rawFileID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id, file_id, section_index, summary, additional_context
		FROM knowledge_file_sections WHERE id = $1
	`, uuid.UUID(id)).Scan(&rawID, &rawFileID, &sec.SectionIndex, &sec.Summary, &sec.AdditionalContext)
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.Section{}, false, nil
	}
	if err != nil {
		return knowledge.Section{}, false, kberrors.Wrap(kberrors.StorageError, "get section", err)
	}
	sec.ID, sec.FileID = ids.ID(rawID), ids.ID(rawFileID)
	return sec, true, nil
}

func (s *Store) GetSectionByIndex(ctx context.Context, fileID ids.ID, index int) (knowledge.Section, bool, error) {
	var sec knowledge.Section
	var rawID, rawFileID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id, file_id, section_index, summary, additional_context
		FROM knowledge_file_sections WHERE file_id = $1 AND section_index = $2
	`, uuid.UUID(fileID), index).Scan(&rawID, &rawFileID, &sec.SectionIndex, &sec.Summary, &sec.AdditionalContext)
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.Section{}, false, nil
	}
	if err != nil {
		return knowledge.Section{}, false, kberrors.Wrap(kberrors.StorageError, "get section by index", err)
	}
	sec.ID, sec.FileID = ids.ID(rawID), ids.ID(rawFileID)
	return sec, true, nil
}

func (s *Store) GetAllSectionsByFile(ctx context.Context, fileID ids.ID) ([]knowledge.Section, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_id, section_index, summary, additional_context
		FROM knowledge_file_sections WHERE file_id = $1 ORDER BY section_index ASC
	`, uuid.UUID(fileID))
	if err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "list sections by file", err)
	}
	defer rows.Close()

	var out []knowledge.Section
	for rows.Next() {
		var sec knowledge.Section
		var rawID, rawFileID uuid.UUID
		if err := rows.Scan(&rawID, &rawFileID, &sec.SectionIndex, &sec.Summary, &sec.AdditionalContext); err != nil {
			return nil, kberrors.Wrap(kberrors.StorageError, "scan section", err)
		}
		sec.ID, sec.FileID = ids.ID(rawID), ids.ID(rawFileID)
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("list sections rows: %v", err), err)
	}
	return out, nil
}

func (s *Store) GetChunkByID(ctx context.Context, id ids.ID) (knowledge.Chunk, bool, error) {
	var c knowledge.Chunk
	var rawID, rawSectionID, rawFileID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id, section_id, file_id, chunk_index, content
		FROM knowledge_file_chunks WHERE id = $1
	`, uuid.UUID(id)).Scan(&rawID, &rawSectionID, &rawFileID, &c.ChunkIndex, &c.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.Chunk{}, false, nil
	}
	if err != nil {
		return knowledge.Chunk{}, false, kberrors.Wrap(kberrors.StorageError, "get chunk", err)
	}
	c.ID, c.SectionID, c.FileID = ids.ID(rawID), ids.ID(rawSectionID), ids.ID(rawFileID)
	return c, true, nil
}

func (s *Store) GetChunkByIndex(ctx context.Context, sectionID ids.ID, index int) (knowledge.Chunk, bool, error) {
	var c knowledge.Chunk
	var rawID, rawSectionID, rawFileID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id, section_id, file_id, chunk_index, content
		FROM knowledge_file_chunks WHERE section_id = $1 AND chunk_index = $2
	`, uuid.UUID(sectionID), index).Scan(&rawID, &rawSectionID, &rawFileID, &c.ChunkIndex, &c.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.Chunk{}, false, nil
	}
	if err != nil {
		return knowledge.Chunk{}, false, kberrors.Wrap(kberrors.StorageError, "get chunk by index", err)
	}
	c.ID, c.SectionID, c.FileID = ids.ID(rawID), ids.ID(rawSectionID), ids.ID(rawFileID)
	return c, true, nil
}

func (s *Store) GetAllChunksBySection(ctx context.Context, sectionID ids.ID) ([]knowledge.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, section_id, file_id, chunk_index, content
		FROM knowledge_file_chunks WHERE section_id = $1 ORDER BY chunk_index ASC
	`, uuid.UUID(sectionID))
	if err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "list chunks by section", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *Store) GetChunksByIDs(ctx context.Context, chunkIDs []ids.ID) ([]knowledge.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	raw := make([]uuid.UUID, len(chunkIDs))
	for i, id := range chunkIDs {
		raw[i] = uuid.UUID(id)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, section_id, file_id, chunk_index, content
		FROM knowledge_file_chunks WHERE id = ANY($1)
	`, raw)
	if err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "batch get chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows pgx.Rows) ([]knowledge.Chunk, error) {
	var out []knowledge.Chunk
	for rows.Next() {
		var c knowledge.Chunk
		var rawID, rawSectionID, rawFileID uuid.UUID
		if err := rows.Scan(&rawID, &rawSectionID, &rawFileID, &c.ChunkIndex, &c.Content); err != nil {
			return nil, kberrors.Wrap(kberrors.StorageError, "scan chunk", err)
		}
		c.ID, c.SectionID, c.FileID = ids.ID(rawID), ids.ID(rawSectionID), ids.ID(rawFileID)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("chunk rows: %v", err), err)
	}
	return out, nil
}

// PersistSection writes a section and all of its chunks inside a
// single transaction, so a reader never observes a section with a
// partial chunk set — the scope spec §4.4 requires. Chunk embeddings
// are not written: knowledge_file_chunks has no embedding column, so
// chunks read back from this store carry a nil Embedding.
func (s *Store) PersistSection(ctx context.Context, sc knowledge.SectionWithChunks) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "begin persist section transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO knowledge_file_sections (id, file_id, section_index, summary, additional_context)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(sc.Section.ID), uuid.UUID(sc.Section.FileID), sc.Section.SectionIndex, sc.Section.Summary, sc.Section.AdditionalContext)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "insert section", err)
	}

	batch := &pgx.Batch{}
	for _, c := range sc.Chunks {
		batch.Queue(`
			INSERT INTO knowledge_file_chunks (id, section_id, file_id, chunk_index, content)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(c.ID), uuid.UUID(c.SectionID), uuid.UUID(c.FileID), c.ChunkIndex, c.Content)
	}
	br := tx.SendBatch(ctx, batch)
	for range sc.Chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return kberrors.Wrap(kberrors.StorageError, "insert chunk", err)
		}
	}
	if err := br.Close(); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "close chunk batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "commit persist section transaction", err)
	}
	return nil
}

var _ knowledge.Store = (*Store)(nil)
