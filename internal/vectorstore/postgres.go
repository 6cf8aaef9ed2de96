package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/vectormath"
)

// Postgres is a pgvector-backed Store, for deployments that want the
// chunk vector index persisted alongside the knowledge store rather
// than rehydrated into memory on startup.
type Postgres struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPostgres wraps an existing pool. dimensions must match the width
// the chunk_vectors migration (C15) created the embedding column with.
// The caller is responsible for having run that migration.
func NewPostgres(pool *pgxpool.Pool, dimensions int) *Postgres {
	return &Postgres{pool: pool, dimensions: dimensions}
}

func (p *Postgres) Add(ctx context.Context, chunkID, fileID ids.ID, v []float32) error {
	if len(v) != p.dimensions {
		return kberrors.New(kberrors.Integrity, "embedding dimension mismatch")
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO chunk_vectors (chunk_id, file_id, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (chunk_id) DO UPDATE SET file_id = EXCLUDED.file_id, embedding = EXCLUDED.embedding
	`, uuid.UUID(chunkID), uuid.UUID(fileID), pgvector.NewVector(vectormath.Normalize(v)))
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "vectorstore add", err)
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, chunkID ids.ID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chunk_vectors WHERE chunk_id = $1`, uuid.UUID(chunkID))
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "vectorstore remove", err)
	}
	return nil
}

func (p *Postgres) RemoveByFile(ctx context.Context, fileID ids.ID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chunk_vectors WHERE file_id = $1`, uuid.UUID(fileID))
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "vectorstore remove by file", err)
	}
	return nil
}

// Search orders by pgvector's cosine-distance operator (<=>), ties
// broken by ascending chunk_id to match the in-memory adapter's
// contract.
func (p *Postgres) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k < 0 {
		return nil, kberrors.New(kberrors.InputInvalid, "search k must be non-negative")
	}
	if len(query) != p.dimensions {
		return nil, kberrors.New(kberrors.Integrity, "embedding dimension mismatch")
	}
	vec := pgvector.NewVector(query)

	rows, err := p.pool.Query(ctx, `
		SELECT chunk_id, 1 - (embedding <=> $1) AS cosine_similarity
		FROM chunk_vectors
		ORDER BY embedding <=> $1, chunk_id ASC
		LIMIT $2
	`, vec, k)
	if err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "vectorstore search", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var chunkID uuid.UUID
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, kberrors.Wrap(kberrors.StorageError, "vectorstore scan hit", err)
		}
		hits = append(hits, Hit{ChunkID: ids.ID(chunkID), Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("vectorstore rows: %v", err), err)
	}
	return hits, nil
}

var _ Store = (*Postgres)(nil)
