package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/inventory"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

type CreateInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	ImageURL    string
}

// UpdateInput is a partial update. Only non-nil fields change. Version is
// the row version the caller last saw.
type UpdateInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	ImageURL    *string
	Version     *int
}

type Service struct {
	db        *sql.DB
	store     *store.Store
	inventory *inventory.Service
	logg      *logger.Logger
}

func NewService(db *sql.DB, inv *inventory.Service, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{db: db, store: store.New(db), inventory: inv, logg: logg}
}

// Get reads a product row. It also satisfies the cart's product lookup.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.store.Products.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Product], error) {
	return s.store.Products.List(ctx, page, pageSize)
}

// Create inserts a product. Opening stock is recorded in the stock ledger.
func (s *Service) Create(ctx context.Context, session auth.Session, in CreateInput) (*models.Product, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, models.Invalid("name is required")
	}
	if in.Price.IsNegative() {
		return nil, models.Invalid("price must not be negative")
	}
	if in.Quantity < 0 {
		return nil, models.Invalid("quantity must not be negative")
	}
	if in.Quantity > models.MaxStockQuantity {
		return nil, models.Invalid("quantity must not exceed %d", models.MaxStockQuantity)
	}

	actor := session.UserID
	var (
		product  *models.Product
		movement *models.StockTransaction
	)
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		st := store.New(tx)
		var err error
		product, err = st.Products.Create(ctx, store.ProductInput{
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			ImageURL:    in.ImageURL,
		})
		if err != nil {
			return err
		}
		if in.Quantity == 0 {
			return nil
		}
		movement, product, _, err = inventory.Apply(ctx, st, inventory.Movement{
			ProductID: product.ID,
			Delta:     in.Quantity,
			Reason:    inventory.ReasonInitialStock,
			Actor:     &actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "catalog.product_created")
	if movement != nil && s.inventory != nil {
		s.inventory.Announce(ctx, "", []models.StockTransaction{*movement}, nil)
	}
	return product, nil
}

// Update applies a partial update. A quantity change is written as a
// "manual adjustment" stock transaction in the same transaction.
func (s *Service) Update(ctx context.Context, session auth.Session, id uuid.UUID, in UpdateInput) (*models.Product, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, models.Invalid("name must not be blank")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return nil, models.Invalid("price must not be negative")
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return nil, models.Invalid("quantity must not be negative")
	}
	if in.Quantity != nil && *in.Quantity > models.MaxStockQuantity {
		return nil, models.Invalid("quantity must not exceed %d", models.MaxStockQuantity)
	}

	actor := session.UserID
	var (
		product  *models.Product
		movement *models.StockTransaction
	)
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		st := store.New(tx)
		current, err := st.Products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		product, err = st.Products.Update(ctx, id, store.ProductUpdate{
			Name:            in.Name,
			Description:     in.Description,
			Price:           in.Price,
			ImageURL:        in.ImageURL,
			ExpectedVersion: in.Version,
		})
		if err != nil {
			return err
		}

		if in.Quantity == nil || *in.Quantity == current.Quantity {
			return nil
		}
		movement, product, _, err = inventory.Apply(ctx, st, inventory.Movement{
			ProductID: id,
			Delta:     *in.Quantity - current.Quantity,
			Reason:    inventory.ReasonManualAdjustment,
			Actor:     &actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if movement != nil && s.inventory != nil {
		s.inventory.Announce(ctx, "", []models.StockTransaction{*movement}, []models.Product{*product})
	}
	return product, nil
}

func (s *Service) Delete(ctx context.Context, session auth.Session, id uuid.UUID) error {
	if err := session.Require(models.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.Products.Delete(ctx, id); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "catalog.product_deleted")
	return nil
}
