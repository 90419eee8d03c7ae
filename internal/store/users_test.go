package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testutil"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	user := createUser(t, ctx, st, "dup@example.com", "")
	if user.Role != models.RoleCustomer {
		t.Errorf("Expected default role customer, got %s", user.Role)
	}

	_, err := st.Users.Create(ctx, &models.User{Email: "DUP@example.com", PasswordHash: "x"})
	if !errors.Is(err, database.ErrEmailInUse) {
		t.Errorf("Expected email in use, got: %v", err)
	}

	found, err := st.Users.GetByEmail(ctx, "Dup@Example.com")
	if err != nil {
		t.Fatalf("Get by email: %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("Expected user %s, got %s", user.ID, found.ID)
	}
}

func TestUpdateProfileAndRole(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	user := createUser(t, ctx, st, "staff@example.com", models.RoleCustomer)

	phone := "0812345678"
	dept := "Warehouse"
	updated, err := st.Users.UpdateProfile(ctx, user.ID, store.ProfileUpdate{Phone: &phone, Department: &dept})
	if err != nil {
		t.Fatalf("Update profile: %v", err)
	}
	if updated.Phone != phone || updated.Department != dept || updated.FirstName != "Test" {
		t.Errorf("Unexpected profile %+v", updated)
	}

	promoted, err := st.Users.UpdateRole(ctx, user.ID, models.RoleStaff)
	if err != nil {
		t.Fatalf("Update role: %v", err)
	}
	if promoted.Role != models.RoleStaff || promoted.Version != updated.Version+1 {
		t.Errorf("Unexpected role update %+v", promoted)
	}

	page, err := st.Users.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List users: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("Expected one user, got %d", page.Total)
	}
}
