package dashboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/dashboard"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testutil"
	"github.com/shopspring/decimal"
)

func TestOverviews(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := store.New(db)

	customer, err := st.Users.Create(ctx, &models.User{Email: "buyer@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	staff, err := st.Users.Create(ctx, &models.User{Email: "picker@example.com", PasswordHash: "x", Role: models.RoleStaff})
	if err != nil {
		t.Fatalf("Create staff: %v", err)
	}

	mug, _ := st.Products.Create(ctx, store.ProductInput{Name: "Mug", Price: decimal.NewFromInt(120), Quantity: 2})
	_, _ = st.Products.Create(ctx, store.ProductInput{Name: "Plate", Price: decimal.NewFromInt(80), Quantity: 40})

	var orderIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		items := []models.OrderItem{{ProductID: mug.ID, Name: "Mug", Price: mug.Price, Quantity: 1}}
		order, err := st.Orders.Create(ctx, &models.Order{
			UserID:   customer.ID,
			Items:    items,
			Total:    models.ItemsTotal(items),
			Shipping: models.ShippingInfo{FullName: "Buyer", Phone: "1", Address: "Here"},
		})
		if err != nil {
			t.Fatalf("Create order: %v", err)
		}
		orderIDs = append(orderIDs, order.ID)
	}
	if _, err := st.Orders.Claim(ctx, orderIDs[0], staff.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	svc := dashboard.NewService(db, 5)

	admin, err := svc.Admin(ctx, auth.Session{UserID: uuid.New(), Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Admin overview: %v", err)
	}
	if admin.Users != 2 || admin.Products != 2 || admin.ActiveOrders != 3 || admin.LowStock != 1 {
		t.Errorf("Unexpected admin overview %+v", admin)
	}
	if admin.OrdersByStatus[models.OrderStatusPreparing] != 1 {
		t.Errorf("Expected one preparing order, got %d", admin.OrdersByStatus[models.OrderStatusPreparing])
	}

	overview, err := svc.Staff(ctx, auth.Session{UserID: staff.ID, Role: models.RoleStaff})
	if err != nil {
		t.Fatalf("Staff overview: %v", err)
	}
	if overview.Pending != 2 || overview.Preparing != 1 || overview.Total != 3 {
		t.Errorf("Unexpected staff counts %+v", overview)
	}
	if len(overview.Recent) != 3 || overview.Recent[0].Total != "120.00" {
		t.Fatalf("Unexpected recent activity %+v", overview.Recent)
	}
	if overview.Recent[0].StatusLabel == "" {
		t.Errorf("Expected a status label on recent activity")
	}
}

func TestOverviewPermissions(t *testing.T) {
	svc := dashboard.NewService(nil, 5)
	customer := auth.Session{UserID: uuid.New(), Role: models.RoleCustomer}

	if _, err := svc.Admin(context.Background(), auth.Session{UserID: uuid.New(), Role: models.RoleStaff}); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Admin: expected ErrForbidden for staff, got %v", err)
	}
	if _, err := svc.Staff(context.Background(), customer); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("Staff: expected ErrForbidden for customer, got %v", err)
	}
}
