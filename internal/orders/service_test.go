package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/orders"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testutil"
	"github.com/shopspring/decimal"
)

type stubCart struct {
	items   []models.CartItem
	cleared bool
}

func (c *stubCart) Get(_ context.Context, session auth.Session) (*models.Cart, error) {
	return &models.Cart{UserID: session.UserID, Items: c.items}, nil
}

func (c *stubCart) Clear(context.Context, auth.Session) error {
	c.cleared = true
	c.items = nil
	return nil
}

func TestCheckout(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	user, err := st.Users.Create(ctx, &models.User{
		Email: "shopper@example.com", PasswordHash: "x",
		FirstName: "Somchai", LastName: "Jaidee", Phone: "0899999999", Address: "1 Silom",
	})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	session := auth.Session{UserID: user.ID, Role: models.RoleCustomer}

	product, err := st.Products.Create(ctx, store.ProductInput{Name: "Tea", Price: decimal.NewFromInt(45), Quantity: 10})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	cart := &stubCart{items: []models.CartItem{
		{ProductID: product.ID, Name: "Old name", Price: decimal.NewFromInt(1), Quantity: 2},
	}}
	svc := orders.NewService(db, cart, nil, nil, "test")

	order, err := svc.Checkout(ctx, session, models.ShippingInfo{Address: "22 Sathorn"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected pending, got %s", order.Status)
	}
	if !order.Total.Equal(decimal.NewFromInt(90)) || order.Items[0].Name != "Tea" {
		t.Errorf("Lines should be re-priced from the catalog, got %+v total %s", order.Items, order.Total)
	}
	if order.Shipping.FullName != "Somchai Jaidee" || order.Shipping.Address != "22 Sathorn" {
		t.Errorf("Unexpected shipping %+v", order.Shipping)
	}
	if !cart.cleared {
		t.Error("Cart should be cleared after checkout")
	}

	got, _ := st.Products.Get(ctx, product.ID)
	if got.Quantity != 10 {
		t.Errorf("Checkout must not touch stock, got %d", got.Quantity)
	}

	if _, err := svc.Checkout(ctx, session, models.ShippingInfo{}); !errors.Is(err, orders.ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart, got %v", err)
	}

	mine, err := svc.ListMine(ctx, session, "", 10)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine.Items) != 1 {
		t.Errorf("Expected one order, got %d", len(mine.Items))
	}

	stranger := auth.Session{UserID: uuid.New(), Role: models.RoleCustomer}
	if _, err := svc.Get(ctx, stranger, order.ID); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Other customers should not see the order, got %v", err)
	}
	if _, err := svc.ListByStatus(ctx, stranger, models.OrderStatusPending); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Customers cannot list by status, got %v", err)
	}

	staff := auth.Session{UserID: uuid.New(), Role: models.RoleStaff}
	pending, err := svc.ListByStatus(ctx, staff, models.OrderStatusPending)
	if err != nil || len(pending) != 1 {
		t.Errorf("Expected one pending order, got %d (%v)", len(pending), err)
	}
}

func TestCheckoutRequiresShipping(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)
	user, _ := st.Users.Create(ctx, &models.User{Email: "bare@example.com", PasswordHash: "x"})
	product, _ := st.Products.Create(ctx, store.ProductInput{Name: "Tea", Price: decimal.NewFromInt(45), Quantity: 10})

	cart := &stubCart{items: []models.CartItem{{ProductID: product.ID, Quantity: 1}}}
	svc := orders.NewService(db, cart, nil, nil, "test")

	_, err := svc.Checkout(ctx, auth.Session{UserID: user.ID, Role: models.RoleCustomer}, models.ShippingInfo{})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if cart.cleared {
		t.Error("Cart must survive a failed checkout")
	}
}
