package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/catalog"
	"github.com/safar/storefront/internal/dashboard"
	"github.com/safar/storefront/internal/inventory"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/metrics"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/users"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*auth.Tokens, *auth.Session, error)
	Logout(ctx context.Context, session auth.Session) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.Tokens, *auth.Session, error)
	Authenticate(ctx context.Context, accessToken string) (auth.Session, error)
}

type UserService interface {
	GetProfile(ctx context.Context, session auth.Session) (*models.User, error)
	UpdateProfile(ctx context.Context, session auth.Session, in users.ProfileInput) (*models.User, error)
	ListUsers(ctx context.Context, session auth.Session, page, pageSize int) (*store.OffsetPage[models.User], error)
	ChangeRole(ctx context.Context, session auth.Session, userID uuid.UUID, role models.Role) (*models.User, error)
}

type CatalogService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Product], error)
	Create(ctx context.Context, session auth.Session, in catalog.CreateInput) (*models.Product, error)
	Update(ctx context.Context, session auth.Session, id uuid.UUID, in catalog.UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, session auth.Session, id uuid.UUID) error
}

type CartService interface {
	Get(ctx context.Context, session auth.Session) (*models.Cart, error)
	AddItem(ctx context.Context, session auth.Session, productID uuid.UUID, quantity int) (*models.Cart, error)
	SetQuantity(ctx context.Context, session auth.Session, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, session auth.Session, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, session auth.Session) error
}

type OrderService interface {
	Checkout(ctx context.Context, session auth.Session, shipping models.ShippingInfo) (*models.Order, error)
	ListMine(ctx context.Context, session auth.Session, cursor string, limit int) (*store.CursorPage[models.Order], error)
	Get(ctx context.Context, session auth.Session, id uuid.UUID) (*models.Order, error)
	ListByStatus(ctx context.Context, session auth.Session, status models.OrderStatus) ([]models.Order, error)
	ListActive(ctx context.Context, session auth.Session) ([]models.Order, error)
}

type FulfillmentService interface {
	ListPending(ctx context.Context, session auth.Session) ([]models.Order, error)
	Claim(ctx context.Context, session auth.Session, orderID uuid.UUID) (*models.PickingRecord, error)
	MyPicking(ctx context.Context, session auth.Session) ([]models.PickingRecord, error)
	ListPicking(ctx context.Context, session auth.Session) ([]models.PickingRecord, error)
	Ship(ctx context.Context, session auth.Session, pickingID uuid.UUID, tracking, notes string) (*models.PickingRecord, error)
	UpdateShipping(ctx context.Context, session auth.Session, pickingID uuid.UUID, tracking, notes string) (*models.PickingRecord, error)
	Deliver(ctx context.Context, session auth.Session, pickingID uuid.UUID) (*models.PickingRecord, error)
}

type InventoryService interface {
	Adjust(ctx context.Context, session auth.Session, productID uuid.UUID, delta int, reason string) (*models.StockTransaction, error)
	ListTransactions(ctx context.Context, session auth.Session, productID *uuid.UUID, limit int) ([]models.StockTransaction, error)
	OrderTransactions(ctx context.Context, session auth.Session, orderID uuid.UUID) ([]models.StockTransaction, error)
	LowStock(ctx context.Context, session auth.Session, search string) ([]inventory.LowStockItem, error)
}

type DashboardService interface {
	Admin(ctx context.Context, session auth.Session) (*dashboard.AdminOverview, error)
	Staff(ctx context.Context, session auth.Session) (*dashboard.StaffOverview, error)
}

// ReadyCheck reports whether a dependency is reachable.
type ReadyCheck func(ctx context.Context) error

type Deps struct {
	Logger      *logger.Logger
	Metrics     *metrics.Registry
	Auth        AuthService
	Users       UserService
	Catalog     CatalogService
	Cart        CartService
	Orders      OrderService
	Fulfillment FulfillmentService
	Inventory   InventoryService
	Dashboard   DashboardService
	Idempotency IdempotencyStore
	Ready       map[string]ReadyCheck
}

type Server struct {
	logg        *logger.Logger
	metrics     *metrics.Registry
	auth        AuthService
	users       UserService
	catalog     CatalogService
	cart        CartService
	orders      OrderService
	fulfillment FulfillmentService
	inventory   InventoryService
	dashboard   DashboardService
	idempotency IdempotencyStore
	ready       map[string]ReadyCheck
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Server{
		logg:        d.Logger,
		metrics:     d.Metrics,
		auth:        d.Auth,
		users:       d.Users,
		catalog:     d.Catalog,
		cart:        d.Cart,
		orders:      d.Orders,
		fulfillment: d.Fulfillment,
		inventory:   d.Inventory,
		dashboard:   d.Dashboard,
		idempotency: d.Idempotency,
		ready:       d.Ready,
	}
}

// sessionHandler is a handler that receives the authenticated caller as an
// argument.
type sessionHandler func(w http.ResponseWriter, r *http.Request, session auth.Session)

// withSession authenticates the bearer token and hands the resulting session
// to next. When roles are given the caller must hold one of them.
func (s *Server) withSession(next sessionHandler, roles ...models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(r.Context(), s.logg, w, auth.ErrUnauthenticated)
			return
		}

		session, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			respondError(r.Context(), s.logg, w, err)
			return
		}
		if len(roles) > 0 {
			if err := session.Require(roles...); err != nil {
				respondError(r.Context(), s.logg, w, err)
				return
			}
		}

		ctx := s.logg.WithUserID(r.Context(), session.UserID.String())
		ctx = s.logg.WithRole(ctx, string(session.Role))
		next(w, r.WithContext(ctx), session)
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if s.metrics != nil {
		httpMetrics = s.metrics.HTTP
	}
	r.Use(
		recoverer(s.logg),
		requestID(s.logg),
		observe(s.logg, httpMetrics),
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	staff := []models.Role{models.RoleStaff, models.RoleAdmin}
	admin := models.RoleAdmin

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.withSession(s.handleLogout))
		})

		r.Get("/me", s.withSession(s.handleGetProfile))
		r.Put("/me", s.withSession(s.handleUpdateProfile))

		r.Get("/products", s.handleListProducts)
		r.Get("/products/{id}", s.handleGetProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleGetCart))
			r.Delete("/", s.withSession(s.handleClearCart))
			r.Post("/items", s.withSession(s.handleAddCartItem))
			r.Put("/items/{productId}", s.withSession(s.handleSetCartQuantity))
			r.Delete("/items/{productId}", s.withSession(s.handleRemoveCartItem))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.withSession(s.idempotent(criticalIdempotencyTTL, s.handleCheckout)))
			r.Get("/", s.withSession(s.handleListMyOrders))
			r.Get("/{id}", s.withSession(s.handleGetOrder))
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/orders/pending", s.withSession(s.handleListPending, staff...))
			r.Post("/orders/{id}/claim", s.withSession(s.idempotent(defaultIdempotencyTTL, s.handleClaim), staff...))
			r.Get("/picking", s.withSession(s.handleMyPicking, staff...))
			r.Get("/dashboard", s.withSession(s.handleStaffDashboard, staff...))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/products", s.withSession(s.handleCreateProduct, admin))
			r.Put("/products/{id}", s.withSession(s.handleUpdateProduct, admin))
			r.Delete("/products/{id}", s.withSession(s.handleDeleteProduct, admin))
			r.Post("/products/{id}/stock", s.withSession(s.idempotent(defaultIdempotencyTTL, s.handleAdjustStock), admin))
			r.Get("/stock-transactions", s.withSession(s.handleListStockTransactions, admin))

			r.Get("/users", s.withSession(s.handleListUsers, admin))
			r.Put("/users/{id}/role", s.withSession(s.handleChangeRole, admin))

			r.Get("/orders", s.withSession(s.handleListOrders, admin))
			r.Get("/picking", s.withSession(s.handleListPicking, admin))
			r.Post("/picking/{id}/ship", s.withSession(s.idempotent(defaultIdempotencyTTL, s.handleShip), admin))
			r.Put("/picking/{id}/notes", s.withSession(s.handleUpdateShipping, admin))
			r.Post("/picking/{id}/deliver", s.withSession(s.idempotent(defaultIdempotencyTTL, s.handleDeliver), admin))

			r.Get("/notifications/low-stock", s.withSession(s.handleLowStock, admin))
			r.Get("/dashboard", s.withSession(s.handleAdminDashboard, admin))
		})
	})

	return r
}
