package orders

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

var ErrEmptyCart = errors.New("cart is empty")

// Cart is the part of the cart service checkout needs.
type Cart interface {
	Get(ctx context.Context, session auth.Session) (*models.Cart, error)
	Clear(ctx context.Context, session auth.Session) error
}

type Service struct {
	db        *sql.DB
	store     *store.Store
	cart      Cart
	publisher events.Publisher
	logg      *logger.Logger
	producer  string
}

func NewService(db *sql.DB, cart Cart, publisher events.Publisher, logg *logger.Logger, producer string) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		db:        db,
		store:     store.New(db),
		cart:      cart,
		publisher: publisher,
		logg:      logg,
		producer:  producer,
	}
}

// Checkout turns the caller's cart into a pending order. Blank shipping
// fields are filled from the profile and every line is re-priced from the
// catalog. The cart is cleared once the order is committed.
func (s *Service) Checkout(ctx context.Context, session auth.Session, shipping models.ShippingInfo) (*models.Order, error) {
	cart, err := s.cart.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var order *models.Order
	err = database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		st := store.New(tx)

		user, err := st.Users.Get(ctx, session.UserID)
		if err != nil {
			return err
		}
		shipping = prefillShipping(shipping, user)
		if !shipping.Complete() {
			return models.Invalid("full name, phone and address are required")
		}

		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			product, err := st.Products.Get(ctx, line.ProductID)
			if err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Price:     product.Price,
				Quantity:  line.Quantity,
				ImageURL:  product.ImageURL,
			})
		}

		order, err = st.Orders.Create(ctx, &models.Order{
			UserID:   session.UserID,
			Items:    items,
			Total:    models.ItemsTotal(items),
			Shipping: shipping,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"user_id":  session.UserID.String(),
	})
	if err := s.cart.Clear(ctx, session); err != nil {
		s.logg.Error(logCtx, "orders.cart_clear_failed", err)
	}
	s.logg.Info(logCtx, "orders.created")
	s.publishCreated(ctx, order)
	return order, nil
}

func prefillShipping(in models.ShippingInfo, user *models.User) models.ShippingInfo {
	out := models.ShippingInfo{
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
	}
	if out.FullName == "" {
		out.FullName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	if out.Phone == "" {
		out.Phone = strings.TrimSpace(user.Phone)
	}
	if out.Address == "" {
		out.Address = strings.TrimSpace(user.Address)
	}
	return out
}

func (s *Service) publishCreated(ctx context.Context, order *models.Order) {
	lines := make([]events.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, events.OrderLine{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	env, err := events.NewEnvelope(s.producer, events.TypeOrderCreated, order.ID.String(), events.OrderCreatedPayload{
		OrderID: order.ID.String(),
		UserID:  order.UserID.String(),
		Items:   lines,
		Total:   order.Total,
	})
	if err != nil {
		s.logg.Error(ctx, "orders.event_encode_failed", err)
		return
	}
	s.publisher.Publish(ctx, env)
}

// ListMine pages the caller's own orders, newest first.
func (s *Service) ListMine(ctx context.Context, session auth.Session, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	return s.store.Orders.ListByUserCursor(ctx, session.UserID, cursor, limit)
}

// Get returns an order. Customers only see their own orders; anything else
// reads as not found.
func (s *Service) Get(ctx context.Context, session auth.Session, id uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsStaff() && order.UserID != session.UserID {
		return nil, database.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListByStatus(ctx context.Context, session auth.Session, status models.OrderStatus) ([]models.Order, error) {
	if !session.IsStaff() {
		return nil, auth.ErrForbidden
	}
	if !status.IsValid() {
		return nil, models.Invalid("unknown order status %q", status)
	}
	return s.store.Orders.ListByStatus(ctx, status)
}

// ListActive returns every order that is not delivered yet.
func (s *Service) ListActive(ctx context.Context, session auth.Session) ([]models.Order, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Orders.ListActive(ctx)
}
