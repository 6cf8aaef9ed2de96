package upload

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kbasehq/knowledge-engine/internal/config"
	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

// RedisCache is a Redis-backed Cache adapter, for deployments that run
// more than one engine process and need session state shared across
// them.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache builds a RedisCache from cfg, pinging once to fail
// fast on misconfiguration.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "ping upload session redis cache", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheTLS is like NewRedisCache but with TLS enabled, for
// managed Redis endpoints that require it.
func NewRedisCacheTLS(cfg config.RedisConfig) (*RedisCache, error) {
	opts := &redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "ping upload session redis cache", err)
	}
	return &RedisCache{client: client}, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("upload:session:%s", id)
}

type wireSession struct {
	ID             string       `json:"id"`
	LibraryID      string       `json:"library_id"`
	UserID         string       `json:"user_id"`
	Filename       string       `json:"filename"`
	ContentType    string       `json:"content_type"`
	TotalSize      int64        `json:"total_size"`
	ChunkSize      int64        `json:"chunk_size"`
	TotalChunks    int          `json:"total_chunks"`
	UploadedChunks map[int]bool `json:"uploaded_chunks"`
	TempBlobPath   string       `json:"temp_blob_path"`
	State          int          `json:"state"`
	ExpiresAt      time.Time    `json:"expires_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

func toWire(s Session) wireSession {
	return wireSession{
		ID:             s.ID.String(),
		LibraryID:      s.LibraryID.String(),
		UserID:         s.UserID.String(),
		Filename:       s.Filename,
		ContentType:    s.ContentType,
		TotalSize:      s.TotalSize,
		ChunkSize:      s.ChunkSize,
		TotalChunks:    s.TotalChunks,
		UploadedChunks: s.UploadedChunks,
		TempBlobPath:   s.TempBlobPath,
		State:          int(s.State),
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
	}
}

func fromWire(w wireSession) (Session, error) {
	id, err := ids.Parse(w.ID)
	if err != nil {
		return Session{}, err
	}
	libraryID, err := ids.Parse(w.LibraryID)
	if err != nil {
		return Session{}, err
	}
	userID, err := ids.Parse(w.UserID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:             id,
		LibraryID:      libraryID,
		UserID:         userID,
		Filename:       w.Filename,
		ContentType:    w.ContentType,
		TotalSize:      w.TotalSize,
		ChunkSize:      w.ChunkSize,
		TotalChunks:    w.TotalChunks,
		UploadedChunks: w.UploadedChunks,
		TempBlobPath:   w.TempBlobPath,
		State:          State(w.State),
		ExpiresAt:      w.ExpiresAt,
		CreatedAt:      w.CreatedAt,
	}, nil
}

func (c *RedisCache) Put(ctx context.Context, s Session, ttl time.Duration) error {
	data, err := json.Marshal(toWire(s))
	if err != nil {
		return kberrors.Wrap(kberrors.InputInvalid, "marshal upload session", err)
	}
	if err := c.client.Set(ctx, sessionKey(s.ID.String()), data, ttl).Err(); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "put upload session", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, id string) (Session, bool, error) {
	val, err := c.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, kberrors.Wrap(kberrors.StorageError, "get upload session", err)
	}
	var w wireSession
	if err := json.Unmarshal([]byte(val), &w); err != nil {
		return Session{}, false, kberrors.Wrap(kberrors.StorageError, "unmarshal upload session", err)
	}
	s, err := fromWire(w)
	if err != nil {
		return Session{}, false, kberrors.Wrap(kberrors.StorageError, "decode upload session ids", err)
	}
	return s, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "delete upload session", err)
	}
	return nil
}

var _ Cache = (*RedisCache)(nil)
