package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const pickingColumns = `id, order_id, staff_id, staff_name, items, total, full_name, phone, address,
	status, tracking_number, shipping_notes, picked_at, updated_at, version`

type PickingRepository struct {
	db DBTX
}

func scanPicking(row rowScanner) (*models.PickingRecord, error) {
	rec := &models.PickingRecord{}
	var items []byte

	err := row.Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.StaffID,
		&rec.StaffName,
		&items,
		&rec.Total,
		&rec.Customer.FullName,
		&rec.Customer.Phone,
		&rec.Customer.Address,
		&rec.Status,
		&rec.TrackingNumber,
		&rec.ShippingNotes,
		&rec.PickedAt,
		&rec.UpdatedAt,
		&rec.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, fmt.Errorf("decode picking items: %w", err)
	}
	return rec, nil
}

// Create inserts the picking record for a claimed order. A second record for
// the same order violates picking_records_order_id_key and is reported as
// ErrOrderAlreadyClaimed.
func (r *PickingRepository) Create(ctx context.Context, rec *models.PickingRecord) (*models.PickingRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return nil, fmt.Errorf("encode picking items: %w", err)
	}

	query := `
		INSERT INTO picking_records (id, order_id, staff_id, staff_name, items, total, full_name, phone, address,
			status, picked_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), 1)
		RETURNING ` + pickingColumns

	created, err := scanPicking(r.db.QueryRowContext(ctx, query,
		rec.ID, rec.OrderID, rec.StaffID, rec.StaffName, string(items), rec.Total,
		rec.Customer.FullName, rec.Customer.Phone, rec.Customer.Address, models.PickingStatusRequested))
	if err != nil {
		if database.IsUniqueViolation(err, "picking_records_order_id_key") {
			return nil, database.ErrOrderAlreadyClaimed
		}
		return nil, fmt.Errorf("create picking record: %w", err)
	}

	return created, nil
}

func (r *PickingRepository) Get(ctx context.Context, id uuid.UUID) (*models.PickingRecord, error) {
	return r.get(ctx, `SELECT `+pickingColumns+` FROM picking_records WHERE id = $1`, id)
}

func (r *PickingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.PickingRecord, error) {
	return r.get(ctx, `SELECT `+pickingColumns+` FROM picking_records WHERE id = $1 FOR UPDATE`, id)
}

func (r *PickingRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.PickingRecord, error) {
	rec, err := scanPicking(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrPickingNotFound
		}
		return nil, fmt.Errorf("get picking record: %w", err)
	}
	return rec, nil
}

func (r *PickingRepository) ListByStaff(ctx context.Context, staffID uuid.UUID) ([]models.PickingRecord, error) {
	records, err := r.query(ctx,
		`SELECT `+pickingColumns+` FROM picking_records WHERE staff_id = $1 ORDER BY picked_at DESC, id DESC`,
		staffID)
	if err != nil {
		return nil, fmt.Errorf("list picking records by staff: %w", err)
	}
	return records, nil
}

func (r *PickingRepository) List(ctx context.Context) ([]models.PickingRecord, error) {
	records, err := r.query(ctx, `SELECT `+pickingColumns+` FROM picking_records ORDER BY picked_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list picking records: %w", err)
	}
	return records, nil
}

// Transition performs a conditional status change and writes tracking and
// notes alongside it.
func (r *PickingRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.PickingStatus, tracking, notes string) (*models.PickingRecord, error) {
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, from, to)
	}

	query := `
		UPDATE picking_records
		SET status          = $3,
		    tracking_number = CASE WHEN $4 = '' THEN tracking_number ELSE $4 END,
		    shipping_notes  = CASE WHEN $5 = '' THEN shipping_notes ELSE $5 END,
		    updated_at      = NOW(),
		    version         = version + 1
		WHERE id = $1
		  AND status = $2
		RETURNING ` + pickingColumns

	rec, err := scanPicking(r.db.QueryRowContext(ctx, query, id, from, to, tracking, notes))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition picking record: %w", err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: picking record is %s, expected %s", database.ErrInvalidTransition, current.Status, from)
}

// UpdateShipping overwrites tracking number and notes without touching status.
func (r *PickingRepository) UpdateShipping(ctx context.Context, id uuid.UUID, tracking, notes string) (*models.PickingRecord, error) {
	query := `
		UPDATE picking_records
		SET tracking_number = $2,
		    shipping_notes  = $3,
		    updated_at      = NOW(),
		    version         = version + 1
		WHERE id = $1
		RETURNING ` + pickingColumns

	rec, err := scanPicking(r.db.QueryRowContext(ctx, query, id, tracking, notes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrPickingNotFound
		}
		return nil, fmt.Errorf("update shipping: %w", err)
	}
	return rec, nil
}

func (r *PickingRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM picking_records`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count picking records: %w", err)
	}
	return total, nil
}

func (r *PickingRepository) query(ctx context.Context, query string, args ...any) ([]models.PickingRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.PickingRecord{}
	for rows.Next() {
		rec, err := scanPicking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan picking record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}
