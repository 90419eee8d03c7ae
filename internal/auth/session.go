package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/redisx"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Session is the authenticated caller. It is passed explicitly to handlers
// and services instead of being read back out of a context.
type Session struct {
	UserID   uuid.UUID   `json:"user_id"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	AccessID string      `json:"-"`
}

func (s Session) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// IsStaff is true for staff and admins. Admins can do everything staff can.
func (s Session) IsStaff() bool {
	return s.Role == models.RoleStaff || s.Role == models.RoleAdmin
}

// Require returns ErrForbidden unless the session has one of roles.
func (s Session) Require(roles ...models.Role) error {
	for _, r := range roles {
		if s.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// Manager stores refresh tokens in redis keyed by access id (the JWT jti).
type Manager struct {
	store sessionStore
	ttl   time.Duration
}

func NewManager(store sessionStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Generate creates a refresh token for accessID.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("access id is required")
	}
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), token, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate takes the refresh token for oldAccessID out of the store in one
// step, checks it and issues a new access id and refresh token. Only one of
// two concurrent rotations of the same token can succeed. A mismatched token
// still drops the old session.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", ErrInvalidRefreshToken
	}

	stored, err := m.store.GetDel(ctx, m.store.AccessSessionKey(oldAccessID))
	if err != nil {
		if errors.Is(err, redisx.ErrNotFound) {
			return "", "", ErrInvalidRefreshToken
		}
		return "", "", err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	newAccessID := NewAccessID()
	newToken, err := m.Generate(ctx, newAccessID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, newToken, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has a live refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, nil
	}
	if _, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redisx.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func NewAccessID() string {
	return uuid.NewString()
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
