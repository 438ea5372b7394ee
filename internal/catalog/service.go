package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pasoklink/pasoklink/internal/market"
)

// Service is the read side of the product catalog the order and quote
// flows browse against. Creation, images and moderation live in the
// admin surface outside this core.
type Service struct {
	DB *pgxpool.Pool
}

const productColumns = `id, supplier_id, name, price_cents, unit, stock, negotiable,
	status, created_at, updated_at`

// List shows approved products to buyers; suppliers see their own
// regardless of status, admin sees everything.
func (s *Service) List(ctx context.Context, actor market.Actor, limit, offset int) ([]market.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := `SELECT ` + productColumns + ` FROM products `
	args := []any{limit, offset}
	switch actor.Role {
	case market.RoleSupplier:
		q += `WHERE supplier_id = $3 `
		args = append(args, actor.ID)
	case market.RoleAdmin:
	default:
		q += `WHERE status = $3 `
		args = append(args, market.ProductApproved)
	}
	q += `ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Product
	for rows.Next() {
		var p market.Product
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.Name, &p.PriceCents, &p.Unit,
			&p.Stock, &p.Negotiable, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, actor market.Actor, productID string) (*market.Product, error) {
	var p market.Product
	err := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.SupplierID, &p.Name, &p.PriceCents, &p.Unit, &p.Stock,
			&p.Negotiable, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	if p.Status != market.ProductApproved &&
		actor.Role != market.RoleAdmin && actor.ID != p.SupplierID {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, productID)
	}
	return &p, nil
}
