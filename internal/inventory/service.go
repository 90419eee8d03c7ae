package inventory

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

type Service struct {
	db        *sql.DB
	store     *store.Store
	publisher events.Publisher
	logg      *logger.Logger
	producer  string
	threshold int
}

type Options struct {
	Publisher events.Publisher
	Logger    *logger.Logger
	Producer  string
	Threshold int
}

func NewService(db *sql.DB, opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Service{
		db:        db,
		store:     store.New(db),
		publisher: opts.Publisher,
		logg:      opts.Logger,
		producer:  opts.Producer,
		threshold: opts.Threshold,
	}
}

func (s *Service) Threshold() int {
	return s.threshold
}

// Adjust applies a manual stock change, for example the +1 restock button.
func (s *Service) Adjust(ctx context.Context, session auth.Session, productID uuid.UUID, delta int, reason string) (*models.StockTransaction, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	if delta > models.MaxStockQuantity || delta < -models.MaxStockQuantity {
		return nil, models.Invalid("delta must be between -%d and %d", models.MaxStockQuantity, models.MaxStockQuantity)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonManualAdjustment
	}

	actor := session.UserID
	var (
		movement *models.StockTransaction
		product  *models.Product
	)
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		st := store.New(tx)
		// A shipment holding the row wins; the admin retries.
		if _, err := st.Products.GetForUpdateNoWait(ctx, productID); err != nil {
			return err
		}
		var err error
		movement, product, _, err = Apply(ctx, st, Movement{
			ProductID: productID,
			Delta:     delta,
			Reason:    reason,
			Actor:     &actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Announce(ctx, "", []models.StockTransaction{*movement}, []models.Product{*product})
	return movement, nil
}

func (s *Service) ListTransactions(ctx context.Context, session auth.Session, productID *uuid.UUID, limit int) ([]models.StockTransaction, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Stock.List(ctx, productID, limit)
}

// OrderTransactions returns the movements recorded when an order shipped.
func (s *Service) OrderTransactions(ctx context.Context, session auth.Session, orderID uuid.UUID) ([]models.StockTransaction, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Stock.ListByOrder(ctx, orderID)
}

type LowStockItem struct {
	models.Product
	Level string `json:"level"`
}

// LowStock lists products at or below the threshold, emptiest first.
func (s *Service) LowStock(ctx context.Context, session auth.Session, search string) ([]LowStockItem, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	products, err := s.store.Products.LowStock(ctx, s.threshold, search)
	if err != nil {
		return nil, err
	}
	items := make([]LowStockItem, 0, len(products))
	for _, p := range products {
		items = append(items, LowStockItem{Product: p, Level: Level(p.Quantity, s.threshold)})
	}
	return items, nil
}

// Announce publishes stock.adjusted for every movement and stock.low for
// products that ended at or below the threshold. Call it after commit.
func (s *Service) Announce(ctx context.Context, orderID string, movements []models.StockTransaction, products []models.Product) {
	for _, m := range movements {
		env, err := events.NewEnvelope(s.producer, events.TypeStockAdjusted, correlation(orderID, m.ProductID), events.StockAdjustedPayload{
			ProductID: m.ProductID.String(),
			Delta:     m.Quantity,
			Remaining: m.Remaining,
			Reason:    m.Reason,
			OrderID:   orderID,
		})
		if err != nil {
			s.logg.Error(ctx, "inventory.event_encode_failed", err)
			continue
		}
		s.publisher.Publish(ctx, env)
	}

	for _, p := range products {
		if Level(p.Quantity, s.threshold) == LevelInStock {
			continue
		}
		env, err := events.NewEnvelope(s.producer, events.TypeStockLow, correlation(orderID, p.ID), events.StockLowPayload{
			ProductID: p.ID.String(),
			Name:      p.Name,
			Remaining: p.Quantity,
			Threshold: s.threshold,
		})
		if err != nil {
			s.logg.Error(ctx, "inventory.event_encode_failed", err)
			continue
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"product_id": p.ID.String(),
			"remaining":  p.Quantity,
		}), "inventory.low_stock")
		s.publisher.Publish(ctx, env)
	}
}

func correlation(orderID string, productID uuid.UUID) string {
	if orderID != "" {
		return orderID
	}
	return productID.String()
}
