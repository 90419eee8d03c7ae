package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

const (
	LevelOutOfStock = "out_of_stock"
	LevelLowStock   = "low_stock"
	LevelInStock    = "in_stock"

	ReasonManualAdjustment = "manual adjustment"
	ReasonInitialStock     = "initial stock"
)

// ErrDuplicateMovement is returned when a keyed movement lost an insert race.
// The surrounding transaction must roll back so the stock change is undone.
var ErrDuplicateMovement = errors.New("stock movement already recorded")

// Movement is a signed stock change applied together with its ledger row.
type Movement struct {
	ProductID      uuid.UUID
	Delta          int
	Reason         string
	OrderID        *uuid.UUID
	IdempotencyKey string
	Actor          *uuid.UUID
}

// Apply changes the product quantity and appends the matching stock
// transaction using st, which should be bound to an open transaction. A
// movement whose idempotency key was already recorded is skipped and Apply
// returns applied=false.
func Apply(ctx context.Context, st *store.Store, m Movement) (tx *models.StockTransaction, product *models.Product, applied bool, err error) {
	if m.Delta == 0 {
		return nil, nil, false, models.Invalid("stock delta must not be zero")
	}

	if m.IdempotencyKey != "" {
		seen, err := st.Stock.HasKey(ctx, m.IdempotencyKey)
		if err != nil {
			return nil, nil, false, err
		}
		if seen {
			return nil, nil, false, nil
		}
	}

	product, err = st.Products.AdjustStock(ctx, m.ProductID, m.Delta)
	if err != nil {
		return nil, nil, false, err
	}

	tx, inserted, err := st.Stock.Append(ctx, &models.StockTransaction{
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       m.Delta,
		Remaining:      product.Quantity,
		Reason:         m.Reason,
		OrderID:        m.OrderID,
		IdempotencyKey: m.IdempotencyKey,
		CreatedBy:      m.Actor,
	})
	if err != nil {
		return nil, nil, false, err
	}
	if !inserted {
		return nil, nil, false, fmt.Errorf("%w: %s", ErrDuplicateMovement, m.IdempotencyKey)
	}
	return tx, product, true, nil
}

// Level classifies a quantity against the low stock threshold.
func Level(quantity, threshold int) string {
	switch {
	case quantity <= 0:
		return LevelOutOfStock
	case quantity <= threshold:
		return LevelLowStock
	default:
		return LevelInStock
	}
}

// ShipKey is the idempotency key for the stock movement of one order line.
func ShipKey(orderID, productID uuid.UUID) string {
	return "ship:" + orderID.String() + ":" + productID.String()
}
