package inventory_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/inventory"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testutil"
	"github.com/shopspring/decimal"
)

func TestAdjustAndLowStock(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)
	admin := auth.Session{UserID: uuid.New(), Role: models.RoleAdmin}
	svc := inventory.NewService(db, inventory.Options{Threshold: 5})

	empty, _ := st.Products.Create(ctx, store.ProductInput{Name: "Empty", Price: decimal.NewFromInt(1), Quantity: 0})
	low, _ := st.Products.Create(ctx, store.ProductInput{Name: "Low", Price: decimal.NewFromInt(1), Quantity: 4})
	_, _ = st.Products.Create(ctx, store.ProductInput{Name: "Full", Price: decimal.NewFromInt(1), Quantity: 50})

	movement, err := svc.Adjust(ctx, admin, low.ID, 1, "")
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if movement.Remaining != 5 || movement.Reason != inventory.ReasonManualAdjustment {
		t.Fatalf("Unexpected movement %+v", movement)
	}

	if _, err := svc.Adjust(ctx, admin, empty.ID, -1, "damaged"); !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	items, err := svc.LowStock(ctx, admin, "")
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 low stock products, got %d", len(items))
	}
	if items[0].ID != empty.ID || items[0].Level != inventory.LevelOutOfStock {
		t.Errorf("Expected empty product first as out of stock, got %+v", items[0])
	}
	if items[1].Level != inventory.LevelLowStock {
		t.Errorf("Expected low_stock, got %s", items[1].Level)
	}

	filtered, err := svc.LowStock(ctx, admin, "low")
	if err != nil {
		t.Fatalf("LowStock search: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != low.ID {
		t.Errorf("Search should only match Low, got %+v", filtered)
	}

	txs, err := svc.ListTransactions(ctx, admin, nil, 10)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("Expected one movement, got %d", len(txs))
	}
}

func TestLevel(t *testing.T) {
	cases := []struct {
		qty, threshold int
		want           string
	}{
		{0, 5, inventory.LevelOutOfStock},
		{5, 5, inventory.LevelLowStock},
		{6, 5, inventory.LevelInStock},
		{0, 0, inventory.LevelOutOfStock},
	}
	for _, tc := range cases {
		if got := inventory.Level(tc.qty, tc.threshold); got != tc.want {
			t.Errorf("Level(%d, %d) = %s, want %s", tc.qty, tc.threshold, got, tc.want)
		}
	}
}

func TestAdjustFailsFastWhileProductLocked(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := auth.Session{UserID: uuid.New(), Role: models.RoleAdmin}
	svc := inventory.NewService(db, inventory.Options{Threshold: 5})

	product, err := store.New(db).Products.Create(ctx, store.ProductInput{Name: "Locked", Price: decimal.NewFromInt(1), Quantity: 10})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := store.New(tx).Products.GetForUpdate(ctx, product.ID); err != nil {
		t.Fatalf("Lock product: %v", err)
	}

	if _, err := svc.Adjust(ctx, admin, product.ID, 1, ""); !errors.Is(err, database.ErrLockTimeout) {
		t.Fatalf("Expected ErrLockTimeout, got %v", err)
	}
}

func TestInventoryRequiresAdmin(t *testing.T) {
	svc := inventory.NewService(nil, inventory.Options{})
	staff := auth.Session{UserID: uuid.New(), Role: models.RoleStaff}

	if _, err := svc.Adjust(context.Background(), staff, uuid.New(), 1, ""); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Adjust: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.OrderTransactions(context.Background(), staff, uuid.New()); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("OrderTransactions: expected ErrForbidden, got %v", err)
	}
}

func TestAdjustRejectsOversizedDelta(t *testing.T) {
	svc := inventory.NewService(nil, inventory.Options{})
	admin := auth.Session{UserID: uuid.New(), Role: models.RoleAdmin}

	for _, delta := range []int{models.MaxStockQuantity + 1, -models.MaxStockQuantity - 1, math.MaxInt} {
		if _, err := svc.Adjust(context.Background(), admin, uuid.New(), delta, ""); !errors.Is(err, models.ErrValidation) {
			t.Errorf("delta %d: expected validation error, got %v", delta, err)
		}
	}
}
