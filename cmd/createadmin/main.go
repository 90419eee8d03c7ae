package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

// createadmin bootstraps the first administrator. An existing account with
// the same email is promoted instead of recreated.
func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "admin email")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password")
	firstName := flag.String("first-name", "Admin", "first name")
	lastName := flag.String("last-name", "", "last name")
	resetPassword := flag.Bool("reset-password", false, "overwrite the password of an existing account")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "createadmin"})
	ctx := context.Background()

	if strings.TrimSpace(*email) == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: createadmin -email admin@example.com -password secret")
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	db, err := database.NewConnection(ctx, &cfg.Database)
	requireResource(ctx, logg, "database", err)
	defer db.Close()

	if len(*password) < cfg.Password.MinLength {
		fmt.Fprintf(os.Stderr, "password must be at least %d characters\n", cfg.Password.MinLength)
		os.Exit(2)
	}

	hash, err := auth.HashPassword(*password, cfg.Password)
	requireResource(ctx, logg, "password hash", err)

	users := store.New(db).Users
	ctx = logg.WithField(ctx, "email", *email)

	existing, err := users.GetByEmail(ctx, *email)
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		user, err := users.Create(ctx, &models.User{
			Email:        *email,
			PasswordHash: hash,
			FirstName:    *firstName,
			LastName:     *lastName,
			Role:         models.RoleAdmin,
		})
		requireResource(ctx, logg, "create admin", err)
		logg.Info(logg.WithField(ctx, "user_id", user.ID.String()), "admin created")

	case err != nil:
		requireResource(ctx, logg, "lookup user", err)

	default:
		if existing.Role != models.RoleAdmin {
			_, err := users.UpdateRole(ctx, existing.ID, models.RoleAdmin)
			requireResource(ctx, logg, "promote user", err)
		}
		if *resetPassword {
			requireResource(ctx, logg, "reset password", users.SetPasswordHash(ctx, existing.ID, hash))
		}
		logg.Info(logg.WithField(ctx, "user_id", existing.ID.String()), "existing user promoted to admin")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "createadmin failed", err)
	os.Exit(1)
}
