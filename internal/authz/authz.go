// Package authz implements the C12 library authorization port: the
// Admin > Write > Read > None effective-permission computation that
// gates every ingest and search operation, fail-closed on any lookup
// error.
package authz

import (
	"context"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/library"
)

// EffectivePermission computes the level of access userID holds on
// libraryID per spec §6:
//  1. the owner always has Admin;
//  2. a library that cannot be found grants None;
//  3. otherwise the baseline is Read on a public library, None on a
//     private one, and an explicit Permission row overrides the
//     baseline when it grants strictly more than the baseline would.
//
// Internal lookup errors are fail-closed: the caller gets None
// alongside the error, never silently the permission it would have
// gotten absent the error.
func EffectivePermission(ctx context.Context, store library.Store, libraryID, userID ids.ID) (library.PermissionKind, error) {
	lib, ok, err := store.GetLibrary(ctx, libraryID)
	if err != nil {
		return library.PermissionNone, kberrors.Wrap(kberrors.StorageError, "look up library for authorization", err)
	}
	if !ok {
		return library.PermissionNone, nil
	}

	if lib.OwnerID == userID {
		return library.PermissionAdmin, nil
	}

	baseline := library.PermissionNone
	if lib.IsPublic {
		baseline = library.PermissionRead
	}

	perm, found, err := store.GetPermission(ctx, libraryID, userID)
	if err != nil {
		return library.PermissionNone, kberrors.Wrap(kberrors.StorageError, "look up permission for authorization", err)
	}
	if !found {
		return baseline, nil
	}
	if perm.Kind > baseline {
		return perm.Kind, nil
	}
	return baseline, nil
}

// HasPermission reports whether userID holds at least `required` on
// libraryID. Any lookup error is surfaced alongside a fail-closed
// false.
func HasPermission(ctx context.Context, store library.Store, libraryID, userID ids.ID, required library.PermissionKind) (bool, error) {
	eff, err := EffectivePermission(ctx, store, libraryID, userID)
	if err != nil {
		return false, err
	}
	return eff.AtLeast(required), nil
}

// ValidateAccess returns a kberrors.Unauthorized error if userID does
// not hold at least `required` on libraryID; otherwise nil. Lookup
// errors are surfaced as-is (fail-closed, never silently authorized).
func ValidateAccess(ctx context.Context, store library.Store, libraryID, userID ids.ID, required library.PermissionKind) error {
	ok, err := HasPermission(ctx, store, libraryID, userID, required)
	if err != nil {
		return err
	}
	if !ok {
		return kberrors.New(kberrors.Unauthorized, "insufficient library permission")
	}
	return nil
}
