package users_test

import (
	"context"
	"sort"
	"sync"

	"github.com/easyhotel/easyhotel/internal/users"
)

// memStore is an in-memory users.Store used across the package tests.
type memStore struct {
	mu    sync.Mutex
	byID  map[string]users.User
	reads int
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]users.User{}}
}

func (m *memStore) Create(_ context.Context, u users.User) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return users.User{}, users.ErrEmailTaken
		}
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email && u.IsActive {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (m *memStore) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if u.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Update(_ context.Context, u users.User) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return users.User{}, users.ErrNotFound
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memStore) Deactivate(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return false, nil
	}
	u.IsActive = false
	m.byID[id] = u
	return true, nil
}

func (m *memStore) ListActive(_ context.Context) ([]users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []users.User
	for _, u := range m.byID {
		if u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
