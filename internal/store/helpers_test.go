package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

func createUser(t *testing.T, ctx context.Context, st *store.Store, email string, role models.Role) *models.User {
	t.Helper()
	user, err := st.Users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

func createProduct(t *testing.T, ctx context.Context, st *store.Store, name string, price int64, qty int) *models.Product {
	t.Helper()
	product, err := st.Products.Create(ctx, store.ProductInput{
		Name:        name,
		Description: "Test",
		Price:       decimal.NewFromInt(price),
		Quantity:    qty,
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return product
}

func createOrder(t *testing.T, ctx context.Context, st *store.Store, userID uuid.UUID, items ...models.OrderItem) *models.Order {
	t.Helper()
	order, err := st.Orders.Create(ctx, &models.Order{
		UserID:   userID,
		Items:    items,
		Total:    models.ItemsTotal(items),
		Shipping: models.ShippingInfo{FullName: "Test User", Phone: "0800000000", Address: "1 Test Road"},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	return order
}

func lineFor(p *models.Product, qty int) models.OrderItem {
	return models.OrderItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: qty}
}
