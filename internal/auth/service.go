package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("permission denied")
	ErrWeakPassword       = errors.New("password too short")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Phone           string
	Address         string
}

type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Service struct {
	users    UserStore
	sessions SessionManager
	jwt      config.JWTConfig
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(users UserStore, sessions SessionManager, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		jwt:      jwtCfg,
		password: pwCfg,
		logg:     logg,
		now:      time.Now,
	}
}

// Register creates a customer account. Duplicate emails fail with
// database.ErrEmailInUse.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(in.Password) < s.password.MinLength {
		return nil, ErrWeakPassword
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		return nil, ErrPasswordMismatch
	}

	hash, err := HashPassword(in.Password, s.password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Role:         models.RoleCustomer,
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "auth.registered")
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, *Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, nil, ErrInvalidCredentials
	}

	session := Session{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role.OrDefault(),
		AccessID: NewAccessID(),
	}
	tokens, err := s.issue(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "auth.login")
	return tokens, &session, nil
}

func (s *Service) issue(ctx context.Context, session Session) (*Tokens, error) {
	refresh, err := s.sessions.Generate(ctx, session.AccessID)
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	access, expiresAt, err := MintAccessToken(s.jwt, s.now(), session)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

func (s *Service) Logout(ctx context.Context, session Session) error {
	if err := s.sessions.Revoke(ctx, session.AccessID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logg.Info(s.logg.WithUserID(ctx, session.UserID.String()), "auth.logout")
	return nil
}

// Refresh trades an (possibly expired) access token and its refresh token
// for a new pair. The role is re-read so promotions take effect.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*Tokens, *Session, error) {
	claims, err := ParseAccessTokenAllowExpired(s.jwt, accessToken)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}

	session, err := s.sessionFor(ctx, claims)
	if err != nil {
		return nil, nil, err
	}
	session.AccessID = newAccessID

	access, expiresAt, err := MintAccessToken(s.jwt, s.now(), session)
	if err != nil {
		return nil, nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: newRefresh, ExpiresAt: expiresAt}, &session, nil
}

// Authenticate resolves a bearer token to a Session. The token must be
// valid and its session must not have been revoked.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Session, error) {
	claims, err := ParseAccessToken(s.jwt, accessToken)
	if err != nil || claims.ID == "" {
		return Session{}, ErrUnauthenticated
	}

	ok, err := s.sessions.HasSession(ctx, claims.ID)
	if err != nil {
		return Session{}, fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return Session{}, ErrUnauthenticated
	}

	return s.sessionFor(ctx, claims)
}

// sessionFor takes the role from the user row. A missing row falls back
// to the customer role.
func (s *Service) sessionFor(ctx context.Context, claims *AccessTokenClaims) (Session, error) {
	session := Session{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     models.RoleCustomer,
		AccessID: claims.ID,
	}

	user, err := s.users.Get(ctx, claims.UserID)
	switch {
	case err == nil:
		session.Role = user.Role.OrDefault()
		session.Email = user.Email
	case errors.Is(err, database.ErrUserNotFound):
		s.logg.Warn(s.logg.WithUserID(ctx, claims.UserID.String()), "auth.user_missing_default_role")
	default:
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	return session, nil
}
