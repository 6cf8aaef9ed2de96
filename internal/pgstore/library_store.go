package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kbasehq/knowledge-engine/internal/hashing"
	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/library"
)

// LibraryStore is a pgx-backed library.Store adapter.
type LibraryStore struct {
	pool *pgxpool.Pool
}

// NewLibraryStore wraps an existing pool.
func NewLibraryStore(pool *pgxpool.Pool) *LibraryStore {
	return &LibraryStore{pool: pool}
}

func (s *LibraryStore) GetUser(ctx context.Context, id ids.ID) (library.User, bool, error) {
	var u library.User
	var rawID uuid.UUID
	var lastLogin *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, active, last_login_at, roles, created_at, updated_at
		FROM users WHERE id = $1
	`, uuid.UUID(id)).Scan(&rawID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Active, &lastLogin, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return library.User{}, false, nil
	}
	if err != nil {
		return library.User{}, false, kberrors.Wrap(kberrors.StorageError, "get user", err)
	}
	u.ID = ids.ID(rawID)
	u.LastLoginAt = lastLogin
	return u, true, nil
}

func (s *LibraryStore) GetLibrary(ctx context.Context, id ids.ID) (library.Library, bool, error) {
	var lib library.Library
	var rawID, ownerID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, owner_id, is_public, created_at, updated_at
		FROM libraries WHERE id = $1
	`, uuid.UUID(id)).Scan(&rawID, &lib.Name, &lib.Description, &ownerID, &lib.IsPublic, &lib.CreatedAt, &lib.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return library.Library{}, false, nil
	}
	if err != nil {
		return library.Library{}, false, kberrors.Wrap(kberrors.StorageError, "get library", err)
	}
	lib.ID, lib.OwnerID = ids.ID(rawID), ids.ID(ownerID)
	return lib, true, nil
}

func (s *LibraryStore) CreateLibrary(ctx context.Context, lib library.Library) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO libraries (id, name, description, owner_id, is_public)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(lib.ID), lib.Name, lib.Description, uuid.UUID(lib.OwnerID), lib.IsPublic)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "create library", err)
	}
	return nil
}

func (s *LibraryStore) GetPermission(ctx context.Context, libraryID, userID ids.ID) (library.Permission, bool, error) {
	var p library.Permission
	var rawID, rawLibraryID, rawUserID, rawGrantedBy uuid.UUID
	var kind int
	err := s.pool.QueryRow(ctx, `
		SELECT id, library_id, user_id, kind, granted_by_user_id, created_at
		FROM library_permissions WHERE library_id = $1 AND user_id = $2
	`, uuid.UUID(libraryID), uuid.UUID(userID)).Scan(&rawID, &rawLibraryID, &rawUserID, &kind, &rawGrantedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return library.Permission{}, false, nil
	}
	if err != nil {
		return library.Permission{}, false, kberrors.Wrap(kberrors.StorageError, "get permission", err)
	}
	p.ID, p.LibraryID, p.UserID, p.GrantedByUserID = ids.ID(rawID), ids.ID(rawLibraryID), ids.ID(rawUserID), ids.ID(rawGrantedBy)
	p.Kind = library.PermissionKind(kind)
	return p, true, nil
}

func (s *LibraryStore) UpsertPermission(ctx context.Context, perm library.Permission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO library_permissions (id, library_id, user_id, kind, granted_by_user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (library_id, user_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			granted_by_user_id = EXCLUDED.granted_by_user_id
	`, uuid.UUID(perm.ID), uuid.UUID(perm.LibraryID), uuid.UUID(perm.UserID), int(perm.Kind), uuid.UUID(perm.GrantedByUserID))
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "upsert permission", err)
	}
	return nil
}

func (s *LibraryStore) RevokePermission(ctx context.Context, libraryID, userID ids.ID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM library_permissions WHERE library_id = $1 AND user_id = $2
	`, uuid.UUID(libraryID), uuid.UUID(userID))
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "revoke permission", err)
	}
	return nil
}

func (s *LibraryStore) CreateFile(ctx context.Context, f library.File) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO library_files (id, library_id, original_file_name, content_type, size_in_bytes, relative_path, content_hash, uploaded_by_user_id, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(f.ID), uuid.UUID(f.LibraryID), f.OriginalFileName, f.ContentType, f.SizeInBytes, f.RelativePath, f.Hash[:], uuid.UUID(f.UploadedByUserID), f.UploadedAt)
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "create library file", err)
	}
	return nil
}

func (s *LibraryStore) GetFile(ctx context.Context, id ids.ID) (library.File, bool, error) {
	return s.scanFile(ctx, `
		SELECT id, library_id, original_file_name, content_type, size_in_bytes, relative_path, content_hash, uploaded_by_user_id, uploaded_at, created_at, updated_at
		FROM library_files WHERE id = $1
	`, uuid.UUID(id))
}

func (s *LibraryStore) GetFileByRelativePath(ctx context.Context, libraryID ids.ID, relativePath string) (library.File, bool, error) {
	return s.scanFile(ctx, `
		SELECT id, library_id, original_file_name, content_type, size_in_bytes, relative_path, content_hash, uploaded_by_user_id, uploaded_at, created_at, updated_at
		FROM library_files WHERE library_id = $1 AND relative_path = $2
	`, uuid.UUID(libraryID), relativePath)
}

func (s *LibraryStore) scanFile(ctx context.Context, query string, args ...interface{}) (library.File, bool, error) {
	var f library.File
	var rawID, rawLibraryID, rawUploadedBy uuid.UUID
	var hashBytes []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&rawID, &rawLibraryID, &f.OriginalFileName, &f.ContentType, &f.SizeInBytes, &f.RelativePath,
		&hashBytes, &rawUploadedBy, &f.UploadedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return library.File{}, false, nil
	}
	if err != nil {
		return library.File{}, false, kberrors.Wrap(kberrors.StorageError, "get library file", err)
	}
	f.ID, f.LibraryID, f.UploadedByUserID = ids.ID(rawID), ids.ID(rawLibraryID), ids.ID(rawUploadedBy)
	var sum hashing.Sum
	copy(sum[:], hashBytes)
	f.Hash = sum
	return f, true, nil
}

func (s *LibraryStore) DeleteFile(ctx context.Context, id ids.ID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM library_files WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return kberrors.Wrap(kberrors.StorageError, "delete library file", err)
	}
	return nil
}

var _ library.Store = (*LibraryStore)(nil)
