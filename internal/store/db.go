package store

import (
	"context"
	"database/sql"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx, so every
// repository works the same inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store groups the typed repositories bound to a single connection or transaction.
type Store struct {
	Users    *UserRepository
	Products *ProductRepository
	Orders   *OrderRepository
	Picking  *PickingRepository
	Stock    *StockRepository
}

func New(db DBTX) *Store {
	return &Store{
		Users:    &UserRepository{db: db},
		Products: &ProductRepository{db: db},
		Orders:   &OrderRepository{db: db},
		Picking:  &PickingRepository{db: db},
		Stock:    &StockRepository{db: db},
	}
}
