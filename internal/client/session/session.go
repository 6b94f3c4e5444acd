// Package session owns the client's authentication state: the bearer token
// and the logged-in user, held in memory and mirrored to a durable local
// store.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"chatline/internal/models"
	"chatline/pkg/logger"
)

type Manager struct {
	mu    sync.Mutex
	store *Store
	token string
	user  *models.User
}

func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// Restore loads a previously persisted session. A missing or corrupt entry
// leaves the session empty; corruption additionally clears the stored keys.
// Restore never fails because of bad stored data.
func (m *Manager) Restore(ctx context.Context) error {
	token, haveToken, err := m.store.get(ctx, keyToken)
	if err != nil {
		return err
	}
	userJSON, haveUser, err := m.store.get(ctx, keyUser)
	if err != nil {
		return err
	}

	if !haveToken || !haveUser {
		return nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		logger.Error("Corrupt stored session, clearing: %v", err)
		if err := m.store.clearSession(ctx); err != nil {
			return err
		}
		return nil
	}

	m.mu.Lock()
	m.token = token
	m.user = &user
	m.mu.Unlock()
	return nil
}

// Login stores token and user atomically, in memory and durably.
func (m *Manager) Login(ctx context.Context, token string, user models.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := m.store.saveSession(ctx, token, string(userJSON)); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = token
	m.user = &user
	m.mu.Unlock()
	return nil
}

// Logout clears token and user together.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.clearSession(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
	return nil
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// Token implements the api.TokenSource contract.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}
