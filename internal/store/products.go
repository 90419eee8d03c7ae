package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, price, quantity, image_url, created_at, updated_at, version`

type ProductRepository struct {
	db DBTX
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	ImageURL    string
}

// ProductUpdate is a partial update. Quantity changes go through AdjustStock
// so they are always paired with a stock transaction. ExpectedVersion, when
// set, makes the update fail with ErrOptimisticLockFailed if the row moved on.
type ProductUpdate struct {
	Name            *string
	Description     *string
	Price           *decimal.Decimal
	ImageURL        *string
	ExpectedVersion *int
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Quantity,
		&product.ImageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *ProductRepository) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	query := `
		INSERT INTO products (id, name, description, price, quantity, image_url, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query,
		uuid.New(), strings.TrimSpace(in.Name), in.Description, in.Price, in.Quantity, in.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func (r *ProductRepository) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// GetForUpdate locks the product row for the rest of the transaction.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

// GetForUpdateNoWait fails fast with ErrLockTimeout when another transaction
// holds the row.
func (r *ProductRepository) GetForUpdateNoWait(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE NOWAIT`, id)
	if err != nil && database.IsLockNotAvailable(err) {
		return nil, database.ErrLockTimeout
	}
	return product, err
}

func (r *ProductRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, id uuid.UUID, upd ProductUpdate) (*models.Product, error) {
	var price sql.NullString
	if upd.Price != nil {
		price = sql.NullString{String: upd.Price.String(), Valid: true}
	}
	var version sql.NullInt64
	if upd.ExpectedVersion != nil {
		version = sql.NullInt64{Int64: int64(*upd.ExpectedVersion), Valid: true}
	}

	query := `
		UPDATE products
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price       = COALESCE($4::numeric, price),
		    image_url   = COALESCE($5, image_url),
		    updated_at  = NOW(),
		    version     = version + 1
		WHERE id = $1
		  AND ($6::int IS NULL OR version = $6)
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id,
		nullString(upd.Name), nullString(upd.Description), price, nullString(upd.ImageURL), version))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update product: %w", err)
	}

	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, database.ErrOptimisticLockFailed
}

// AdjustStock applies a signed delta. The guard keeps quantity non-negative;
// a rejected decrement reports ErrInsufficientStock.
func (r *ProductRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	query := `
		UPDATE products
		SET quantity   = quantity + $2,
		    updated_at = NOW(),
		    version    = version + 1
		WHERE id = $1
		  AND quantity + $2 >= 0
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id, delta))
	if err == nil {
		return product, nil
	}
	if database.IsCheckViolation(err, "products_quantity_check") {
		return nil, database.ErrInsufficientStock
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, database.ErrInsufficientStock
}

func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

func (r *ProductRepository) List(ctx context.Context, page, pageSize int) (*OffsetPage[models.Product], error) {
	page, pageSize = NormalizePage(page, pageSize)

	total, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	products, err := r.query(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}

// LowStock returns products at or below threshold, emptiest first. search
// filters by case-insensitive name match when not blank.
func (r *ProductRepository) LowStock(ctx context.Context, threshold int, search string) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE quantity <= $1
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY quantity ASC, name ASC`

	products, err := r.query(ctx, query, threshold, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (r *ProductRepository) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE quantity <= $1`, threshold).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count low stock: %w", err)
	}
	return total, nil
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...any) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}
