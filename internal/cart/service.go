package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pasoklink/pasoklink/internal/inventory"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/orders"
)

// DB is the slice of pgxpool.Pool the cart service needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service owns a buyer's pending selection. All lines must come from
// one supplier; the rule is enforced when a line is added, not at
// checkout.
type Service struct {
	DB     DB
	Ledger *inventory.Ledger
	Orders *orders.Service
}

type CheckoutInput struct {
	PaymentMethod   string `json:"payment_method"`
	DeliveryAddress string `json:"delivery_address"` // optional override
}

// Line is a cart entry joined with the product fields checkout needs.
type Line struct {
	market.CartItem
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	PriceCents  int64  `json:"price_cents"`
	SupplierID  string `json:"supplier_id"`
}

// Add puts qty of a product into the buyer's cart. Adding a product
// that is already present merges into the existing line.
func (s *Service) Add(ctx context.Context, actor market.Actor, productID string, qty int) (*market.CartItem, error) {
	if actor.Role != market.RoleBuyer {
		return nil, fmt.Errorf("%w: only buyers have carts", market.ErrForbidden)
	}
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", market.ErrInvalidQuantity)
	}

	var supplierID string
	var status market.ProductStatus
	err := s.DB.QueryRow(ctx, `SELECT supplier_id, status FROM products WHERE id = $1`, productID).
		Scan(&supplierID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	if status != market.ProductApproved {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, productID)
	}

	// Single-supplier rule: a non-empty cart pins the supplier.
	var existingSupplier string
	err = s.DB.QueryRow(ctx, `
		SELECT p.supplier_id
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.buyer_id = $1
		LIMIT 1`, actor.ID).Scan(&existingSupplier)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err == nil && existingSupplier != supplierID {
		return nil, fmt.Errorf("%w: cart holds items from another supplier", market.ErrCrossSupplierCart)
	}

	now := time.Now().UTC()
	item := market.CartItem{
		ID:        uuid.NewString(),
		BuyerID:   actor.ID,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO cart_items (id, buyer_id, product_id, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5)
		ON CONFLICT (buyer_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = $5
		RETURNING id, quantity, created_at`,
		item.ID, item.BuyerID, item.ProductID, item.Quantity, now)
	if err := row.Scan(&item.ID, &item.Quantity, &item.CreatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateQuantity replaces a line's quantity. qty < 1 is a caller error;
// removal goes through Remove.
func (s *Service) UpdateQuantity(ctx context.Context, actor market.Actor, productID string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be >= 1", market.ErrInvalidQuantity)
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE buyer_id = $1 AND product_id = $2`,
		actor.ID, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart line for product %s", market.ErrNotFound, productID)
	}
	return nil
}

func (s *Service) Remove(ctx context.Context, actor market.Actor, productID string) error {
	ct, err := s.DB.Exec(ctx, `
		DELETE FROM cart_items WHERE buyer_id = $1 AND product_id = $2`,
		actor.ID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart line for product %s", market.ErrNotFound, productID)
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, actor market.Actor) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE buyer_id = $1`, actor.ID)
	return err
}

// Lines returns the cart joined with live product data.
func (s *Service) Lines(ctx context.Context, actor market.Actor) ([]Line, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT c.id, c.buyer_id, c.product_id, c.quantity, c.created_at, c.updated_at,
			p.name, p.unit, p.price_cents, p.supplier_id
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.buyer_id = $1
		ORDER BY c.created_at`, actor.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var ln Line
		if err := rows.Scan(&ln.ID, &ln.BuyerID, &ln.ProductID, &ln.Quantity,
			&ln.CreatedAt, &ln.UpdatedAt, &ln.ProductName, &ln.Unit, &ln.PriceCents,
			&ln.SupplierID); err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

// Checkout reserves every line (with compensating rollback on the
// first failure), creates one multi-line order, and clears the cart
// only after the order exists.
func (s *Service) Checkout(ctx context.Context, actor market.Actor, in CheckoutInput) (*market.Order, error) {
	if actor.Role != market.RoleBuyer {
		return nil, fmt.Errorf("%w: only buyers check out", market.ErrForbidden)
	}

	lines, err := s.Lines(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", market.ErrInvalidQuantity)
	}

	address := in.DeliveryAddress
	if address == "" {
		if address, err = s.factoryAddress(ctx, actor.ID); err != nil {
			return nil, err
		}
	}

	batch := make([]inventory.Line, 0, len(lines))
	for _, ln := range lines {
		batch = append(batch, inventory.Line{ProductID: ln.ProductID, Qty: ln.Quantity})
	}
	if err := s.Ledger.ReserveBatch(ctx, batch); err != nil {
		return nil, err
	}

	items := make([]market.OrderItem, 0, len(lines))
	for _, ln := range lines {
		items = append(items, market.OrderItem{
			ProductID:      ln.ProductID,
			Name:           ln.ProductName,
			Unit:           ln.Unit,
			UnitPriceCents: ln.PriceCents,
			Quantity:       ln.Quantity,
		})
	}
	ord := &market.Order{
		BuyerID:         actor.ID,
		SupplierID:      lines[0].SupplierID,
		PaymentMethod:   in.PaymentMethod,
		DeliveryAddress: address,
		StockReserved:   true,
		Items:           items,
	}
	if err := s.Orders.Create(ctx, actor, ord); err != nil {
		for i := len(batch) - 1; i >= 0; i-- {
			_ = s.Ledger.Release(ctx, batch[i].ProductID, batch[i].Qty)
		}
		return nil, err
	}

	// Cart is cleared last; a failure here leaves a stale cart, never a
	// missing order.
	_ = s.Clear(ctx, actor)
	return ord, nil
}

func (s *Service) factoryAddress(ctx context.Context, buyerID string) (string, error) {
	var addr *string
	err := s.DB.QueryRow(ctx, `SELECT factory_address FROM users WHERE id = $1`, buyerID).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (addr == nil || *addr == "")) {
		return "", market.ErrMissingDeliveryAddress
	}
	if err != nil {
		return "", err
	}
	return *addr, nil
}
