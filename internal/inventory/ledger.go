package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pasoklink/pasoklink/internal/market"
)

// DB is the slice of pgxpool.Pool the ledger needs. Kept minimal so
// tests can stand in for the pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger owns per-product stock. Reserve is a single conditional update
// executed by the database, so two concurrent reservations against the
// same product can never both succeed on the last units.
type Ledger struct {
	DB DB
}

type Line struct {
	ProductID string
	Qty       int
}

// Reserve atomically checks stock >= qty and decrements it in one
// statement. Returns the product as it looks after the decrement.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (*market.Product, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", market.ErrInvalidQuantity)
	}

	row := l.DB.QueryRow(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING id, supplier_id, name, price_cents, unit, stock, negotiable, status`,
		productID, qty)

	var p market.Product
	err := row.Scan(&p.ID, &p.SupplierID, &p.Name, &p.PriceCents, &p.Unit, &p.Stock, &p.Negotiable, &p.Status)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// 0 rows means either the product is gone or the stock ran short.
	var exists bool
	if err := l.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, productID)
	}
	return nil, fmt.Errorf("%w: product %s", market.ErrInsufficientStock, productID)
}

// Release credits qty back after a successful reservation. Callers are
// responsible for calling it at most once per reservation; the order
// and quote services guard that with the stock_reserved flag.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be >= 1", market.ErrInvalidQuantity)
	}
	_, err := l.DB.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1`,
		productID, qty)
	return err
}

// ReserveBatch reserves every line in order. On the first failure it
// releases the lines already reserved and fails the whole batch. This
// is compensation, not a multi-row transaction: a crash between the
// failing reserve and the releases can leave stock held.
func (l *Ledger) ReserveBatch(ctx context.Context, lines []Line) error {
	reserved := make([]Line, 0, len(lines))
	for _, ln := range lines {
		if _, err := l.Reserve(ctx, ln.ProductID, ln.Qty); err != nil {
			for i := len(reserved) - 1; i >= 0; i-- {
				if rerr := l.Release(ctx, reserved[i].ProductID, reserved[i].Qty); rerr != nil {
					log.Printf("inventory: compensating release failed product=%s qty=%d: %v",
						reserved[i].ProductID, reserved[i].Qty, rerr)
				}
			}
			return err
		}
		reserved = append(reserved, ln)
	}
	return nil
}
