package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, address,
	employee_id, department, position, role, created_at, updated_at, version`

type UserRepository struct {
	db DBTX
}

// ProfileUpdate carries the editable profile fields. Nil fields are left alone.
type ProfileUpdate struct {
	FirstName  *string
	LastName   *string
	Phone      *string
	Address    *string
	EmployeeID *string
	Department *string
	Position   *string
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.Address,
		&user.EmployeeID,
		&user.Department,
		&user.Position,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	role := u.Role.OrDefault()

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, address,
			employee_id, department, position, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query,
		u.ID, strings.TrimSpace(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Address,
		u.EmployeeID, u.Department, u.Position, role))
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrEmailInUse
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	query := `
		UPDATE users
		SET first_name  = COALESCE($2, first_name),
		    last_name   = COALESCE($3, last_name),
		    phone       = COALESCE($4, phone),
		    address     = COALESCE($5, address),
		    employee_id = COALESCE($6, employee_id),
		    department  = COALESCE($7, department),
		    position    = COALESCE($8, position),
		    updated_at  = NOW(),
		    version     = version + 1
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id,
		nullString(upd.FirstName), nullString(upd.LastName), nullString(upd.Phone), nullString(upd.Address),
		nullString(upd.EmployeeID), nullString(upd.Department), nullString(upd.Position)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	query := `
		UPDATE users
		SET role = $2, updated_at = NOW(), version = version + 1
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id, role))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	return user, nil
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`,
		id, hash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) List(ctx context.Context, page, pageSize int) (*OffsetPage[models.User], error) {
	page, pageSize = NormalizePage(page, pageSize)

	total, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*v), Valid: true}
}
