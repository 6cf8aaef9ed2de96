// Package library defines the entities Library and LibraryFile
// ownership live under: users, libraries, per-library permissions, and
// the file records that precede indexing.
package library

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kbasehq/knowledge-engine/internal/hashing"
	"github.com/kbasehq/knowledge-engine/internal/ids"
)

// PermissionKind is the level of access a user holds on a Library.
type PermissionKind int

const (
	PermissionNone PermissionKind = iota
	PermissionRead
	PermissionWrite
	PermissionAdmin
)

func (k PermissionKind) String() string {
	switch k {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionAdmin:
		return "admin"
	default:
		return "none"
	}
}

// AtLeast reports whether k grants at least other's level, per the
// Admin > Write > Read > None ordering.
func (k PermissionKind) AtLeast(other PermissionKind) bool {
	return k >= other
}

// User is an account on whose behalf libraries are owned, files are
// uploaded, and permissions are granted. Roles and credentials are
// managed by an external account service; this record is read-mostly
// from the engine's perspective.
type User struct {
	ID           ids.ID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Roles        []string
}

// CheckPassword reports whether candidate matches the user's stored
// hash. Issuing or rotating PasswordHash itself belongs to an external
// account service; this engine only ever verifies.
func (u User) CheckPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(candidate)) == nil
}

// Library is a namespace for files and permissions, owned by exactly
// one User for its lifetime.
type Library struct {
	ID          ids.ID
	Name        string
	Description string
	OwnerID     ids.ID
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission grants one user a level of access on one library. At most
// one active Permission exists per (LibraryID, UserID).
type Permission struct {
	ID              ids.ID
	LibraryID       ids.ID
	UserID          ids.ID
	Kind            PermissionKind
	GrantedByUserID ids.ID
	CreatedAt       time.Time
}

// File is a LibraryFile: the uploaded-and-stored counterpart of a
// blob, prior to (and independent of) indexing.
type File struct {
	ID               ids.ID
	LibraryID        ids.ID
	OriginalFileName string
	ContentType      string
	SizeInBytes      int64
	RelativePath     string
	Hash             hashing.Sum
	UploadedByUserID ids.ID
	UploadedAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
