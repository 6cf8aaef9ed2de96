package library

import (
	"context"

	"github.com/kbasehq/knowledge-engine/internal/ids"
)

// Store is the library bounded context's persistence port: users,
// libraries, permissions, and library files. Implementations must be
// safe for concurrent use.
type Store interface {
	GetUser(ctx context.Context, id ids.ID) (User, bool, error)

	GetLibrary(ctx context.Context, id ids.ID) (Library, bool, error)
	CreateLibrary(ctx context.Context, lib Library) error

	// GetPermission returns the single active permission for
	// (libraryID, userID), or ok=false if none exists.
	GetPermission(ctx context.Context, libraryID, userID ids.ID) (Permission, bool, error)
	UpsertPermission(ctx context.Context, perm Permission) error
	RevokePermission(ctx context.Context, libraryID, userID ids.ID) error

	CreateFile(ctx context.Context, f File) error
	GetFile(ctx context.Context, id ids.ID) (File, bool, error)
	GetFileByRelativePath(ctx context.Context, libraryID ids.ID, relativePath string) (File, bool, error)
	DeleteFile(ctx context.Context, id ids.ID) error
}
