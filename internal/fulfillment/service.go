package fulfillment

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/inventory"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/metrics"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

type Options struct {
	MaxRetries int
	Publisher  events.Publisher
	Inventory  *inventory.Service
	Metrics    *metrics.FulfillmentMetrics
	Logger     *logger.Logger
	Producer   string
}

// Service runs the picking workflow: claim, ship, deliver. Each step is a
// single transaction and safe to replay.
type Service struct {
	db         *sql.DB
	store      *store.Store
	maxRetries int
	publisher  events.Publisher
	inventory  *inventory.Service
	metrics    *metrics.FulfillmentMetrics
	logg       *logger.Logger
	producer   string
}

func NewService(db *sql.DB, opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Service{
		db:         db,
		store:      store.New(db),
		maxRetries: opts.MaxRetries,
		publisher:  opts.Publisher,
		inventory:  opts.Inventory,
		metrics:    opts.Metrics,
		logg:       opts.Logger,
		producer:   opts.Producer,
	}
}

func (s *Service) txOptions() database.TxOptions {
	return database.SerializableTxOptions(s.maxRetries)
}

// ListPending is the picker queue, oldest first.
func (s *Service) ListPending(ctx context.Context, session auth.Session) ([]models.Order, error) {
	if !session.IsStaff() {
		return nil, auth.ErrForbidden
	}
	return s.store.Orders.ListByStatus(ctx, models.OrderStatusPending)
}

// MyPicking lists the picking records created by the caller.
func (s *Service) MyPicking(ctx context.Context, session auth.Session) ([]models.PickingRecord, error) {
	if !session.IsStaff() {
		return nil, auth.ErrForbidden
	}
	return s.store.Picking.ListByStaff(ctx, session.UserID)
}

func (s *Service) ListPicking(ctx context.Context, session auth.Session) ([]models.PickingRecord, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Picking.List(ctx)
}

// Claim assigns a pending order to the calling staff member and opens its
// picking record. Exactly one of several concurrent claims succeeds; the
// others get database.ErrOrderAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, session auth.Session, orderID uuid.UUID) (*models.PickingRecord, error) {
	if !session.IsStaff() {
		return nil, auth.ErrForbidden
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"staff_id": session.UserID.String(),
	})

	var rec *models.PickingRecord
	err := database.WithRetry(ctx, s.db, s.txOptions(), func(tx *sql.Tx) error {
		st := store.New(tx)

		staff, err := st.Users.Get(ctx, session.UserID)
		if err != nil {
			return err
		}

		if _, err := st.Orders.Claim(ctx, orderID, session.UserID); err != nil {
			return err
		}
		order, err := st.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}

		rec, err = st.Picking.Create(ctx, &models.PickingRecord{
			OrderID:   order.ID,
			StaffID:   staff.ID,
			StaffName: staff.DisplayName(),
			Items:     order.Items,
			Total:     order.Total,
			Customer:  order.Shipping,
		})
		return err
	})
	s.metrics.Step("claim", err)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "fulfillment.claim_failed")
		return nil, err
	}

	s.logg.Info(logCtx, "fulfillment.claimed")
	s.publish(ctx, events.TypeOrderClaimed, rec.OrderID, events.OrderClaimedPayload{
		OrderID:   rec.OrderID.String(),
		PickingID: rec.ID.String(),
		StaffID:   rec.StaffID.String(),
		StaffName: rec.StaffName,
	})
	return rec, nil
}

// Ship assigns the tracking number, takes the picked units out of stock and
// moves the order to shipping. Replaying with the same tracking number
// returns the shipped record without touching stock.
func (s *Service) Ship(ctx context.Context, session auth.Session, pickingID uuid.UUID, tracking, notes string) (*models.PickingRecord, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return nil, models.Invalid("tracking number is required")
	}
	notes = strings.TrimSpace(notes)
	actor := session.UserID

	var (
		rec       *models.PickingRecord
		replay    bool
		movements []models.StockTransaction
		products  []models.Product
	)
	err := database.WithRetry(ctx, s.db, s.txOptions(), func(tx *sql.Tx) error {
		replay, movements, products = false, nil, nil
		st := store.New(tx)

		current, err := st.Picking.GetForUpdate(ctx, pickingID)
		if err != nil {
			return err
		}
		if current.Status == models.PickingStatusShipped && current.TrackingNumber == tracking {
			rec, replay = current, true
			return nil
		}
		if current.Status != models.PickingStatusRequested {
			return fmt.Errorf("%w: picking record is %s", database.ErrInvalidTransition, current.Status)
		}

		order, err := st.Orders.GetForUpdate(ctx, current.OrderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPreparing {
			return fmt.Errorf("%w: order is %s, expected %s", database.ErrInvalidTransition, order.Status, models.OrderStatusPreparing)
		}

		reason := fmt.Sprintf("order %s shipped", order.ID)
		for _, line := range mergeLines(order.Items) {
			movement, product, applied, err := inventory.Apply(ctx, st, inventory.Movement{
				ProductID:      line.ProductID,
				Delta:          -line.Quantity,
				Reason:         reason,
				OrderID:        &order.ID,
				IdempotencyKey: inventory.ShipKey(order.ID, line.ProductID),
				Actor:          &actor,
			})
			if err != nil {
				return fmt.Errorf("ship %s: %w", line.ProductID, err)
			}
			if applied {
				movements = append(movements, *movement)
				products = append(products, *product)
			}
		}

		rec, err = st.Picking.Transition(ctx, current.ID, models.PickingStatusRequested, models.PickingStatusShipped, tracking, notes)
		if err != nil {
			return err
		}
		_, err = st.Orders.Transition(ctx, order.ID, models.OrderStatusPreparing, models.OrderStatusShipping, tracking)
		return err
	})
	s.metrics.Step("ship", err)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"picking_id": pickingID.String(),
		"tracking":   tracking,
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "fulfillment.ship_failed")
		return nil, err
	}
	if replay {
		s.logg.Info(logCtx, "fulfillment.ship_replayed")
		return rec, nil
	}

	units := 0
	for _, m := range movements {
		units -= m.Quantity
	}
	s.metrics.UnitsShipped(units)
	s.logg.Info(s.logg.WithField(logCtx, "order_id", rec.OrderID.String()), "fulfillment.shipped")

	s.publish(ctx, events.TypeOrderShipped, rec.OrderID, events.OrderShippedPayload{
		OrderID:        rec.OrderID.String(),
		PickingID:      rec.ID.String(),
		TrackingNumber: rec.TrackingNumber,
	})
	if s.inventory != nil {
		for _, p := range products {
			if inventory.Level(p.Quantity, s.inventory.Threshold()) != inventory.LevelInStock {
				s.metrics.LowStock()
			}
		}
		s.inventory.Announce(ctx, rec.OrderID.String(), movements, products)
	}
	return rec, nil
}

// UpdateShipping edits the tracking number or notes of a shipped record.
// A blank tracking number keeps the current one. Stock is not touched.
func (s *Service) UpdateShipping(ctx context.Context, session auth.Session, pickingID uuid.UUID, tracking, notes string) (*models.PickingRecord, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}
	tracking = strings.TrimSpace(tracking)
	notes = strings.TrimSpace(notes)

	var rec *models.PickingRecord
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		st := store.New(tx)
		current, err := st.Picking.GetForUpdate(ctx, pickingID)
		if err != nil {
			return err
		}
		if current.Status == models.PickingStatusRequested {
			return fmt.Errorf("%w: picking record has not shipped", database.ErrInvalidTransition)
		}
		if tracking == "" {
			tracking = current.TrackingNumber
		}

		rec, err = st.Picking.UpdateShipping(ctx, current.ID, tracking, notes)
		if err != nil {
			return err
		}
		if tracking != current.TrackingNumber {
			return st.Orders.SetTrackingNumber(ctx, current.OrderID, tracking)
		}
		return nil
	})
	s.metrics.Step("update_shipping", err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Deliver closes out a shipped order. Replaying on a delivered record is a
// no-op.
func (s *Service) Deliver(ctx context.Context, session auth.Session, pickingID uuid.UUID) (*models.PickingRecord, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		rec    *models.PickingRecord
		replay bool
	)
	err := database.WithRetry(ctx, s.db, s.txOptions(), func(tx *sql.Tx) error {
		replay = false
		st := store.New(tx)

		current, err := st.Picking.GetForUpdate(ctx, pickingID)
		if err != nil {
			return err
		}
		if current.Status == models.PickingStatusDelivered {
			rec, replay = current, true
			return nil
		}

		if _, err := st.Orders.Transition(ctx, current.OrderID, models.OrderStatusShipping, models.OrderStatusDelivered, ""); err != nil {
			return err
		}
		rec, err = st.Picking.Transition(ctx, current.ID, models.PickingStatusShipped, models.PickingStatusDelivered, "", "")
		return err
	})
	s.metrics.Step("deliver", err)
	if err != nil {
		return nil, err
	}
	if replay {
		return rec, nil
	}

	s.logg.Info(s.logg.WithField(ctx, "order_id", rec.OrderID.String()), "fulfillment.delivered")
	s.publish(ctx, events.TypeOrderDelivered, rec.OrderID, events.OrderDeliveredPayload{
		OrderID:   rec.OrderID.String(),
		PickingID: rec.ID.String(),
	})
	return rec, nil
}

func (s *Service) publish(ctx context.Context, eventType string, orderID uuid.UUID, payload any) {
	env, err := events.NewEnvelope(s.producer, eventType, orderID.String(), payload)
	if err != nil {
		s.logg.Error(ctx, "fulfillment.event_encode_failed", err)
		return
	}
	s.publisher.Publish(ctx, env)
}

// mergeLines sums quantities per product, keeping first-seen order.
func mergeLines(items []models.OrderItem) []models.OrderItem {
	index := make(map[uuid.UUID]int, len(items))
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}
