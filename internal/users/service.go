package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

var ErrSelfDemotion = errors.New("admins cannot change their own role")

// Repository is the slice of store.UserRepository the service uses.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd store.ProfileUpdate) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	List(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.User], error)
}

// ProfileInput holds the editable fields. Staff fields are ignored for
// customers.
type ProfileInput struct {
	FirstName  *string
	LastName   *string
	Phone      *string
	Address    *string
	EmployeeID *string
	Department *string
	Position   *string
}

type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg}
}

func (s *Service) GetProfile(ctx context.Context, session auth.Session) (*models.User, error) {
	return s.repo.Get(ctx, session.UserID)
}

func (s *Service) UpdateProfile(ctx context.Context, session auth.Session, in ProfileInput) (*models.User, error) {
	upd := store.ProfileUpdate{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Address:   in.Address,
	}
	if session.IsStaff() {
		upd.EmployeeID = in.EmployeeID
		upd.Department = in.Department
		upd.Position = in.Position
	}
	return s.repo.UpdateProfile(ctx, session.UserID, upd)
}

func (s *Service) ListUsers(ctx context.Context, session auth.Session, page, pageSize int) (*store.OffsetPage[models.User], error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, page, pageSize)
}

// ChangeRole sets the role of another user. The new role takes effect on the
// target's next request because sessions read the role from the user row.
func (s *Service) ChangeRole(ctx context.Context, session auth.Session, userID uuid.UUID, role models.Role) (*models.User, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, models.Invalid("unknown role %q", role)
	}
	if userID == session.UserID && role != models.RoleAdmin {
		return nil, ErrSelfDemotion
	}

	user, err := s.repo.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"target_user_id": userID.String(),
		"role":           string(role),
		"actor_id":       session.UserID.String(),
	}), "users.role_changed")
	return user, nil
}
