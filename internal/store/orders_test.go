package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testutil"
	"github.com/shopspring/decimal"
)

func TestCreateAndGetOrder(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	user := createUser(t, ctx, st, "buyer@example.com", models.RoleCustomer)
	p1 := createProduct(t, ctx, st, "Product 1", 100, 50)
	p2 := createProduct(t, ctx, st, "Product 2", 200, 30)

	order := createOrder(t, ctx, st, user.ID, lineFor(p1, 5), lineFor(p2, 3))

	got, err := st.Orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if got.Status != models.OrderStatusPending {
		t.Errorf("Expected pending, got %s", got.Status)
	}
	if !got.Total.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Expected total 1100, got %s", got.Total)
	}
	if len(got.Items) != 2 || got.Items[0].ProductID != p1.ID || got.Items[1].Quantity != 3 {
		t.Errorf("Unexpected items %+v", got.Items)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	user := createUser(t, ctx, st, "pager@example.com", models.RoleCustomer)
	product := createProduct(t, ctx, st, "Product 5", 100, 100)

	for i := 0; i < 15; i++ {
		createOrder(t, ctx, st, user.ID, lineFor(product, 1))
	}

	page1, err := st.Orders.ListByUserCursor(ctx, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	if !page1.HasMore || page1.NextCursor == "" || len(page1.Items) != 10 {
		t.Errorf("Page 1 should be full with a next cursor, got %d items", len(page1.Items))
	}

	page2, err := st.Orders.ListByUserCursor(ctx, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	if page2.HasMore || len(page2.Items) != 5 {
		t.Errorf("Page 2 should hold the last 5 orders, got %d", len(page2.Items))
	}
}

func TestListOrdersRejectsMalformedCursor(t *testing.T) {
	st := store.New(nil)

	for _, cursor := range []string{"!!not-base64!!", "bm90LWpzb24="} {
		_, err := st.Orders.ListByUserCursor(context.Background(), uuid.New(), cursor, 10)
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("cursor %q: expected validation error, got %v", cursor, err)
		}
	}
}

func TestClaimIsExclusive(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	customer := createUser(t, ctx, st, "c@example.com", models.RoleCustomer)
	staff1 := createUser(t, ctx, st, "s1@example.com", models.RoleStaff)
	staff2 := createUser(t, ctx, st, "s2@example.com", models.RoleStaff)
	product := createProduct(t, ctx, st, "Widget", 10, 10)
	order := createOrder(t, ctx, st, customer.ID, lineFor(product, 1))

	claimed, err := st.Orders.Claim(ctx, order.ID, staff1.ID)
	if err != nil {
		t.Fatalf("First claim: %v", err)
	}
	if claimed.Status != models.OrderStatusPreparing || claimed.AssignedTo == nil || *claimed.AssignedTo != staff1.ID {
		t.Errorf("Unexpected claimed order %+v", claimed)
	}

	if _, err := st.Orders.Claim(ctx, order.ID, staff2.ID); !errors.Is(err, database.ErrOrderAlreadyClaimed) {
		t.Errorf("Expected already claimed, got: %v", err)
	}

	rec := &models.PickingRecord{
		OrderID:   order.ID,
		StaffID:   staff1.ID,
		StaffName: "Test User",
		Items:     order.Items,
		Total:     order.Total,
		Customer:  order.Shipping,
	}
	if _, err := st.Picking.Create(ctx, rec); err != nil {
		t.Fatalf("Create picking record: %v", err)
	}
	rec.ID = uuid.Nil
	if _, err := st.Picking.Create(ctx, rec); !errors.Is(err, database.ErrOrderAlreadyClaimed) {
		t.Errorf("Expected duplicate picking to be rejected, got: %v", err)
	}
}

func TestOrderTransitionGuards(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	customer := createUser(t, ctx, st, "t@example.com", models.RoleCustomer)
	product := createProduct(t, ctx, st, "Widget", 10, 10)
	order := createOrder(t, ctx, st, customer.ID, lineFor(product, 1))

	_, err := st.Orders.Transition(ctx, order.ID, models.OrderStatusPending, models.OrderStatusShipping, "TH1")
	if !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition for pending->shipping, got: %v", err)
	}

	_, err = st.Orders.Transition(ctx, order.ID, models.OrderStatusPreparing, models.OrderStatusShipping, "TH1")
	if !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition from stale status, got: %v", err)
	}

	active, err := st.Orders.ListActive(ctx)
	if err != nil {
		t.Fatalf("List active: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("Expected one active order, got %d", len(active))
	}
}

func TestStockAppendIdempotent(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	product := createProduct(t, ctx, st, "Widget", 10, 10)

	var wg sync.WaitGroup
	inserted := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := st.Stock.Append(ctx, &models.StockTransaction{
				ProductID:      product.ID,
				ProductName:    product.Name,
				Quantity:       -1,
				Remaining:      9,
				Reason:         "test",
				IdempotencyKey: "ship:test:1",
			})
			if err != nil {
				t.Errorf("Append: %v", err)
				return
			}
			inserted <- ok
		}()
	}
	wg.Wait()
	close(inserted)

	wins := 0
	for ok := range inserted {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly one insert, got %d", wins)
	}

	txs, err := st.Stock.List(ctx, &product.ID, 10)
	if err != nil {
		t.Fatalf("List stock transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].IdempotencyKey != "ship:test:1" {
		t.Errorf("Unexpected transactions %+v", txs)
	}

	all, err := st.Stock.List(ctx, nil, 10)
	if err != nil {
		t.Fatalf("List all stock transactions: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected one transaction overall, got %d", len(all))
	}
}
