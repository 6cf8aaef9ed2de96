package authz

import (
	"context"
	"testing"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
	"github.com/kbasehq/knowledge-engine/internal/library"
	"github.com/stretchr/testify/require"
)

func TestOwnerIsAlwaysAdmin(t *testing.T) {
	store := library.NewMemoryStore()
	owner := ids.New()
	lib := library.Library{ID: ids.New(), OwnerID: owner, IsPublic: false}
	require.NoError(t, store.CreateLibrary(context.Background(), lib))

	perm, err := EffectivePermission(context.Background(), store, lib.ID, owner)
	require.NoError(t, err)
	require.Equal(t, library.PermissionAdmin, perm)
}

func TestPrivateLibraryDefaultsToNone(t *testing.T) {
	store := library.NewMemoryStore()
	lib := library.Library{ID: ids.New(), OwnerID: ids.New(), IsPublic: false}
	require.NoError(t, store.CreateLibrary(context.Background(), lib))

	perm, err := EffectivePermission(context.Background(), store, lib.ID, ids.New())
	require.NoError(t, err)
	require.Equal(t, library.PermissionNone, perm)
}

func TestPublicLibraryDefaultsToRead(t *testing.T) {
	store := library.NewMemoryStore()
	lib := library.Library{ID: ids.New(), OwnerID: ids.New(), IsPublic: true}
	require.NoError(t, store.CreateLibrary(context.Background(), lib))

	perm, err := EffectivePermission(context.Background(), store, lib.ID, ids.New())
	require.NoError(t, err)
	require.Equal(t, library.PermissionRead, perm)
}

func TestExplicitPermissionOverridesBaselineWhenGreater(t *testing.T) {
	store := library.NewMemoryStore()
	lib := library.Library{ID: ids.New(), OwnerID: ids.New(), IsPublic: true}
	require.NoError(t, store.CreateLibrary(context.Background(), lib))
	user := ids.New()
	require.NoError(t, store.UpsertPermission(context.Background(), library.Permission{
		ID: ids.New(), LibraryID: lib.ID, UserID: user, Kind: library.PermissionWrite,
	}))

	perm, err := EffectivePermission(context.Background(), store, lib.ID, user)
	require.NoError(t, err)
	require.Equal(t, library.PermissionWrite, perm)
}

func TestValidateAccessDeniesInsufficientPermission(t *testing.T) {
	store := library.NewMemoryStore()
	lib := library.Library{ID: ids.New(), OwnerID: ids.New(), IsPublic: false}
	require.NoError(t, store.CreateLibrary(context.Background(), lib))

	err := ValidateAccess(context.Background(), store, lib.ID, ids.New(), library.PermissionRead)
	require.Error(t, err)
	require.Equal(t, kberrors.Unauthorized, kberrors.KindOf(err))
}

func TestMissingLibraryGrantsNone(t *testing.T) {
	store := library.NewMemoryStore()
	perm, err := EffectivePermission(context.Background(), store, ids.New(), ids.New())
	require.NoError(t, err)
	require.Equal(t, library.PermissionNone, perm)
}

func TestValidateAccessDeniesOnMissingLibrary(t *testing.T) {
	store := library.NewMemoryStore()
	err := ValidateAccess(context.Background(), store, ids.New(), ids.New(), library.PermissionRead)
	require.Error(t, err)
	require.Equal(t, kberrors.Unauthorized, kberrors.KindOf(err))
}
