package catalog_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/catalog"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/inventory"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testutil"
	"github.com/shopspring/decimal"
)

var admin = auth.Session{UserID: uuid.New(), Role: models.RoleAdmin}

func TestProductLifecycle(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	inv := inventory.NewService(db, inventory.Options{Threshold: 5})
	svc := catalog.NewService(db, inv, nil)

	created, err := svc.Create(ctx, admin, catalog.CreateInput{Name: "A", Price: decimal.NewFromInt(10), Quantity: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil || created.Quantity != 5 {
		t.Fatalf("Unexpected product %+v", created)
	}

	page, err := svc.List(ctx, 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "A" || !page.Items[0].Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("Expected exactly product A, got %+v", page.Items)
	}

	qty := 8
	updated, err := svc.Update(ctx, admin, created.ID, catalog.UpdateInput{Quantity: &qty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Quantity != 8 || updated.Name != "A" || !updated.Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("Only quantity should change, got %+v", updated)
	}
	if updated.Version <= created.Version {
		t.Errorf("Version should be bumped, got %d after %d", updated.Version, created.Version)
	}

	movements, err := store.New(db).Stock.List(ctx, &created.ID, 10)
	if err != nil {
		t.Fatalf("List movements: %v", err)
	}
	if len(movements) != 2 || movements[0].Quantity != 3 || movements[0].Reason != inventory.ReasonManualAdjustment {
		t.Fatalf("Expected initial and manual movements, got %+v", movements)
	}

	stale := created.Version
	name := "B"
	if _, err := svc.Update(ctx, admin, created.ID, catalog.UpdateInput{Name: &name, Version: &stale}); !errors.Is(err, database.ErrOptimisticLockFailed) {
		t.Fatalf("Expected ErrOptimisticLockFailed for stale version, got %v", err)
	}

	if err := svc.Delete(ctx, admin, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, database.ErrProductNotFound) {
		t.Fatalf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := catalog.NewService(db, nil, nil)

	cases := []catalog.CreateInput{
		{Name: " ", Price: decimal.NewFromInt(1)},
		{Name: "X", Price: decimal.NewFromInt(-1)},
		{Name: "X", Price: decimal.NewFromInt(1), Quantity: -1},
	}
	for _, in := range cases {
		if _, err := svc.Create(ctx, admin, in); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Expected validation error for %+v, got %v", in, err)
		}
	}

	customer := auth.Session{UserID: uuid.New(), Role: models.RoleCustomer}
	if _, err := svc.Create(ctx, customer, catalog.CreateInput{Name: "X"}); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestQuantityLimit(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(nil, nil, nil)

	in := catalog.CreateInput{Name: "X", Price: decimal.NewFromInt(1), Quantity: models.MaxStockQuantity + 1}
	if _, err := svc.Create(ctx, admin, in); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Create: expected validation error, got %v", err)
	}

	huge := math.MaxInt
	if _, err := svc.Update(ctx, admin, uuid.New(), catalog.UpdateInput{Quantity: &huge}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Update: expected validation error, got %v", err)
	}
}
