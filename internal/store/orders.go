package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const orderColumns = `id, user_id, total, full_name, phone, address, status, tracking_number,
	assigned_to, assigned_at, created_at, updated_at, version`

type OrderRepository struct {
	db DBTX
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var assignedTo uuid.NullUUID
	var assignedAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Shipping.FullName,
		&order.Shipping.Phone,
		&order.Shipping.Address,
		&order.Status,
		&order.TrackingNumber,
		&assignedTo,
		&assignedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		id := assignedTo.UUID
		order.AssignedTo = &id
	}
	if assignedAt.Valid {
		at := assignedAt.Time
		order.AssignedAt = &at
	}
	return order, nil
}

// Create inserts the order header and its line snapshot. Callers run it
// inside a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) (*models.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	query := `
		INSERT INTO orders (id, user_id, total, full_name, phone, address, status, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query,
		o.ID, o.UserID, o.Total, o.Shipping.FullName, o.Shipping.Phone, o.Shipping.Address, models.OrderStatusPending))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for i, item := range o.Items {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, price, quantity, image_url, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), order.ID, item.ProductID, item.Name, item.Price, item.Quantity, item.ImageURL, i)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}
	order.Items = append([]models.OrderItem(nil), o.Items...)

	return order, nil
}

func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getWithItems(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate locks the order row for the rest of the transaction.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getWithItems(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) getWithItems(ctx context.Context, query string, id uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []models.Order{*order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByUserCursor pages a customer's orders newest first using keyset
// pagination on (created_at, id).
func (r *OrderRepository) ListByUserCursor(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*CursorPage[models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, models.Invalid("invalid cursor")
	}
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	orders, err := r.query(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListByStatus returns orders in any of the given statuses, oldest first so
// pickers work the queue in arrival order.
func (r *OrderRepository) ListByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ANY($1)
		ORDER BY created_at ASC, id ASC`

	orders, err := r.query(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListActive returns every order that has not been delivered yet.
func (r *OrderRepository) ListActive(ctx context.Context) ([]models.Order, error) {
	return r.ListByStatus(ctx, models.OrderStatusPending, models.OrderStatusPreparing, models.OrderStatusShipping)
}

func (r *OrderRepository) Recent(ctx context.Context, limit int) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	orders, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Claim moves a pending order to preparing and records the assignee. Only
// one caller can win: the update is conditional on the pending status.
func (r *OrderRepository) Claim(ctx context.Context, id, staffID uuid.UUID) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status      = $3,
		    assigned_to = $2,
		    assigned_at = NOW(),
		    updated_at  = NOW(),
		    version     = version + 1
		WHERE id = $1
		  AND status = $4
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, staffID, models.OrderStatusPreparing, models.OrderStatusPending))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim order: %w", err)
	}

	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, database.ErrOrderAlreadyClaimed
}

// Transition performs a conditional status change. A tracking number is only
// written when non-empty.
func (r *OrderRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, tracking string) (*models.Order, error) {
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, from, to)
	}

	query := `
		UPDATE orders
		SET status          = $3,
		    tracking_number = CASE WHEN $4 = '' THEN tracking_number ELSE $4 END,
		    updated_at      = NOW(),
		    version         = version + 1
		WHERE id = $1
		  AND status = $2
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, from, to, tracking))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition order: %w", err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: order is %s, expected %s", database.ErrInvalidTransition, current.Status, from)
}

func (r *OrderRepository) SetTrackingNumber(ctx context.Context, id uuid.UUID, tracking string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET tracking_number = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`,
		id, tracking)
	if err != nil {
		return fmt.Errorf("set tracking number: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	defer rows.Close()

	counts := map[models.OrderStatus]int64{}
	for rows.Next() {
		var status models.OrderStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan order count: %w", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return counts, nil
}

func (r *OrderRepository) query(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// attachItems loads line items for all orders with a single query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID.String()
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, product_id, name, price, quantity, image_url
		 FROM order_items
		 WHERE order_id = ANY($1::uuid[])
		 ORDER BY order_id, position`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item models.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.ImageURL); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}
