package library

import (
	"context"
	"sync"

	"github.com/kbasehq/knowledge-engine/internal/ids"
	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

// MemoryStore is an in-memory Store adapter for tests and embedded
// deployments, mirroring the shape of knowledge.MemoryStore.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[ids.ID]User
	libraries   map[ids.ID]Library
	permissions map[ids.ID]map[ids.ID]Permission // libraryID -> userID -> Permission
	files       map[ids.ID]File
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[ids.ID]User),
		libraries:   make(map[ids.ID]Library),
		permissions: make(map[ids.ID]map[ids.ID]Permission),
		files:       make(map[ids.ID]File),
	}
}

// PutUser seeds a user directly; there is no CreateUser in the Store
// port because user provisioning belongs to the external account
// service (spec §3), but tests need a way to populate one.
func (m *MemoryStore) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryStore) GetUser(_ context.Context, id ids.ID) (User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetLibrary(_ context.Context, id ids.ID) (Library, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.libraries[id]
	return l, ok, nil
}

func (m *MemoryStore) CreateLibrary(_ context.Context, lib Library) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.libraries[lib.ID]; exists {
		return kberrors.New(kberrors.Conflict, "library already exists")
	}
	m.libraries[lib.ID] = lib
	return nil
}

func (m *MemoryStore) GetPermission(_ context.Context, libraryID, userID ids.ID) (Permission, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byUser, ok := m.permissions[libraryID]
	if !ok {
		return Permission{}, false, nil
	}
	p, ok := byUser[userID]
	return p, ok, nil
}

func (m *MemoryStore) UpsertPermission(_ context.Context, perm Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser, ok := m.permissions[perm.LibraryID]
	if !ok {
		byUser = make(map[ids.ID]Permission)
		m.permissions[perm.LibraryID] = byUser
	}
	byUser[perm.UserID] = perm
	return nil
}

func (m *MemoryStore) RevokePermission(_ context.Context, libraryID, userID ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byUser, ok := m.permissions[libraryID]; ok {
		delete(byUser, userID)
	}
	return nil
}

func (m *MemoryStore) CreateFile(_ context.Context, f File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.files[f.ID]; exists {
		return kberrors.New(kberrors.Conflict, "library file already exists")
	}
	m.files[f.ID] = f
	return nil
}

func (m *MemoryStore) GetFile(_ context.Context, id ids.ID) (File, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	return f, ok, nil
}

func (m *MemoryStore) GetFileByRelativePath(_ context.Context, libraryID ids.ID, relativePath string) (File, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.files {
		if f.LibraryID == libraryID && f.RelativePath == relativePath {
			return f, true, nil
		}
	}
	return File{}, false, nil
}

func (m *MemoryStore) DeleteFile(_ context.Context, id ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
