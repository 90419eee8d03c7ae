package dashboard

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"golang.org/x/sync/errgroup"
)

const recentActivityLimit = 5

type AdminOverview struct {
	Users          int64                        `json:"users"`
	Products       int64                        `json:"products"`
	ActiveOrders   int64                        `json:"active_orders"`
	PickingRecords int64                        `json:"picking_records"`
	LowStock       int64                        `json:"low_stock"`
	OrdersByStatus map[models.OrderStatus]int64 `json:"orders_by_status"`
}

type Activity struct {
	OrderID     string             `json:"order_id"`
	Customer    string             `json:"customer"`
	Status      models.OrderStatus `json:"status"`
	StatusLabel string             `json:"status_label"`
	Total       string             `json:"total"`
	CreatedAt   string             `json:"created_at"`
}

type StaffOverview struct {
	Pending   int64      `json:"pending"`
	Preparing int64      `json:"preparing"`
	Total     int64      `json:"total"`
	Recent    []Activity `json:"recent"`
}

type Service struct {
	store     *store.Store
	threshold int
}

func NewService(db *sql.DB, lowStockThreshold int) *Service {
	return &Service{store: store.New(db), threshold: lowStockThreshold}
}

// Admin loads the back office counters concurrently.
func (s *Service) Admin(ctx context.Context, session auth.Session) (*AdminOverview, error) {
	if err := session.Require(models.RoleAdmin); err != nil {
		return nil, err
	}

	out := &AdminOverview{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.Users.Count(gctx)
		out.Users = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Products.Count(gctx)
		out.Products = n
		return err
	})
	g.Go(func() error {
		counts, err := s.store.Orders.CountByStatus(gctx)
		if err != nil {
			return err
		}
		out.OrdersByStatus = counts
		for status, n := range counts {
			if status != models.OrderStatusDelivered {
				out.ActiveOrders += n
			}
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.store.Picking.Count(gctx)
		out.PickingRecords = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Products.CountLowStock(gctx, s.threshold)
		out.LowStock = n
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Staff returns queue counts and the most recent orders.
func (s *Service) Staff(ctx context.Context, session auth.Session) (*StaffOverview, error) {
	if !session.IsStaff() {
		return nil, auth.ErrForbidden
	}

	var (
		counts map[models.OrderStatus]int64
		recent []models.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.store.Orders.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.Orders.Recent(gctx, recentActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &StaffOverview{
		Pending:   counts[models.OrderStatusPending],
		Preparing: counts[models.OrderStatusPreparing],
		Recent:    make([]Activity, 0, len(recent)),
	}
	for _, n := range counts {
		out.Total += n
	}
	for _, o := range recent {
		out.Recent = append(out.Recent, Activity{
			OrderID:     o.ID.String(),
			Customer:    o.Shipping.FullName,
			Status:      o.Status,
			StatusLabel: o.Status.Label(),
			Total:       o.Total.StringFixed(2),
			CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}
