// Package auth manages the admin session: a single bearer token minted on
// login and cleared on logout.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ardaweather/weather-dashboard/internal/store"
)

// ErrInvalidCredentials indicates a failed login attempt.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Manager validates admin credentials and tracks the active session token.
type Manager struct {
	username string
	password string
	sessions store.Store
	logger   *zap.Logger
}

func NewManager(username, password string, sessions store.Store, logger *zap.Logger) *Manager {
	return &Manager{
		username: username,
		password: password,
		sessions: sessions,
		logger:   logger,
	}
}

// Login checks the supplied credentials and, on success, mints a fresh
// session token. Any previous token is replaced; there is at most one
// active admin session.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	if !userOK || !passOK {
		m.logger.Warn("admin login rejected", zap.String("username", username))
		return "", ErrInvalidCredentials
	}

	token := uuid.New().String()
	if err := m.sessions.SaveAdminToken(ctx, token); err != nil {
		return "", fmt.Errorf("persist admin token: %w", err)
	}
	m.logger.Info("admin login accepted")
	return token, nil
}

// IsAdmin reports whether token matches the active admin session.
func (m *Manager) IsAdmin(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	stored, err := m.sessions.AdminToken(ctx)
	if err != nil {
		return false, fmt.Errorf("read admin token: %w", err)
	}
	if stored == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(stored)) == 1, nil
}

// Logout clears the active session. Logging out when no session exists is
// not an error.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.sessions.ClearAdminToken(ctx); err != nil {
		return fmt.Errorf("clear admin token: %w", err)
	}
	m.logger.Info("admin logout")
	return nil
}
