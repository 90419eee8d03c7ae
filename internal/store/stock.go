package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/models"
)

const stockColumns = `id, product_id, product_name, quantity, remaining, reason, order_id,
	idempotency_key, created_by, created_at`

type StockRepository struct {
	db DBTX
}

func scanStock(row rowScanner) (*models.StockTransaction, error) {
	st := &models.StockTransaction{}
	var orderID, createdBy uuid.NullUUID
	var key sql.NullString

	err := row.Scan(
		&st.ID,
		&st.ProductID,
		&st.ProductName,
		&st.Quantity,
		&st.Remaining,
		&st.Reason,
		&orderID,
		&key,
		&createdBy,
		&st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if orderID.Valid {
		id := orderID.UUID
		st.OrderID = &id
	}
	if createdBy.Valid {
		id := createdBy.UUID
		st.CreatedBy = &id
	}
	st.IdempotencyKey = key.String
	return st, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Append records a stock movement. When the idempotency key was already
// used the insert is skipped and Append reports false.
func (r *StockRepository) Append(ctx context.Context, st *models.StockTransaction) (*models.StockTransaction, bool, error) {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	var key sql.NullString
	if st.IdempotencyKey != "" {
		key = sql.NullString{String: st.IdempotencyKey, Valid: true}
	}

	query := `
		INSERT INTO stock_transactions (id, product_id, product_name, quantity, remaining, reason, order_id,
			idempotency_key, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT ON CONSTRAINT stock_transactions_idempotency_key DO NOTHING
		RETURNING ` + stockColumns

	created, err := scanStock(r.db.QueryRowContext(ctx, query,
		st.ID, st.ProductID, st.ProductName, st.Quantity, st.Remaining, st.Reason,
		nullUUID(st.OrderID), key, nullUUID(st.CreatedBy)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("append stock transaction: %w", err)
	}
	return created, true, nil
}

// HasKey reports whether a movement with the idempotency key exists.
func (r *StockRepository) HasKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM stock_transactions WHERE idempotency_key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check stock transaction key: %w", err)
	}
	return exists, nil
}

// List returns movements newest first, optionally for a single product.
func (r *StockRepository) List(ctx context.Context, productID *uuid.UUID, limit int) ([]models.StockTransaction, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	query := `
		SELECT ` + stockColumns + `
		FROM stock_transactions
		WHERE ($1::uuid IS NULL OR product_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, nullUUID(productID), limit)
	if err != nil {
		return nil, fmt.Errorf("list stock transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.StockTransaction{}
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock transaction: %w", err)
		}
		txs = append(txs, *st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return txs, nil
}

func (r *StockRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stockColumns+` FROM stock_transactions WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list stock transactions by order: %w", err)
	}
	defer rows.Close()

	txs := []models.StockTransaction{}
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock transaction: %w", err)
		}
		txs = append(txs, *st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return txs, nil
}
