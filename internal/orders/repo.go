package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pasoklink/pasoklink/internal/market"
)

const orderColumns = `id, reference, buyer_id, supplier_id, status, payment_method,
	payment_status, payment_proof, stock_reserved, total_cents, delivery_address,
	tracking_number, expected_delivery_date, placed_at, confirmed_at, rejected_at,
	shipped_at, delivered_at, cancelled_at, created_at, updated_at`

// Get returns an order with items and activity, enforcing read
// ownership: buyer and supplier see their own orders, admin sees all.
func (s *Service) Get(ctx context.Context, actor market.Actor, orderID string) (*market.Order, error) {
	ord, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := canRead(ord, actor); err != nil {
		return nil, err
	}
	if err := s.loadActivity(ctx, ord); err != nil {
		return nil, err
	}
	return ord, nil
}

// List returns the actor's orders, newest first. Admin sees everything.
func (s *Service) List(ctx context.Context, actor market.Actor, limit, offset int) ([]market.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := `SELECT ` + orderColumns + ` FROM orders `
	args := []any{limit, offset}
	switch actor.Role {
	case market.RoleBuyer:
		q += `WHERE buyer_id = $3 `
		args = append(args, actor.ID)
	case market.RoleSupplier:
		q += `WHERE supplier_id = $3 `
		args = append(args, actor.ID)
	case market.RoleAdmin:
		// no filter
	default:
		return nil, market.ErrForbidden
	}
	q += `ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Order
	for rows.Next() {
		var o market.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func canRead(ord *market.Order, actor market.Actor) error {
	switch actor.Role {
	case market.RoleAdmin:
		return nil
	case market.RoleBuyer:
		if ord.BuyerID == actor.ID {
			return nil
		}
	case market.RoleSupplier:
		if ord.SupplierID == actor.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: not a party to this order", market.ErrForbidden)
}

func (s *Service) load(ctx context.Context, orderID string) (*market.Order, error) {
	var o market.Order
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err := scanOrder(row, &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", market.ErrNotFound, orderID)
		}
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, unit, unit_price_cents, quantity, subtotal_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it market.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Unit,
			&it.UnitPriceCents, &it.Quantity, &it.SubtotalCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (s *Service) loadActivity(ctx context.Context, ord *market.Order) error {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, actor_id, actor_role, action, message, created_at
		FROM order_activity WHERE order_id = $1 ORDER BY created_at`, ord.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a market.ActivityEntry
		if err := rows.Scan(&a.ID, &a.OrderID, &a.ActorID, &a.ActorRole, &a.Action,
			&a.Message, &a.CreatedAt); err != nil {
			return err
		}
		ord.Activity = append(ord.Activity, a)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row, o *market.Order) error {
	var proof, tracking *string
	err := row.Scan(&o.ID, &o.Reference, &o.BuyerID, &o.SupplierID, &o.Status,
		&o.PaymentMethod, &o.PaymentStatus, &proof, &o.StockReserved, &o.TotalCents,
		&o.DeliveryAddress, &tracking, &o.ExpectedDeliveryDate,
		&o.Timeline.PlacedAt, &o.Timeline.ConfirmedAt, &o.Timeline.RejectedAt,
		&o.Timeline.ShippedAt, &o.Timeline.DeliveredAt, &o.Timeline.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}
	if proof != nil {
		o.PaymentProof = *proof
	}
	if tracking != nil {
		o.TrackingNumber = *tracking
	}
	return nil
}

// appendActivity writes one append-only log row inside a caller's tx.
func appendActivity(ctx context.Context, tx pgx.Tx, orderID string, actor market.Actor, action, message string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_activity (id, order_id, actor_id, actor_role, action, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.NewString(), orderID, actor.ID, actor.Role, action, message, now)
	return err
}

func (s *Service) appendActivityDB(ctx context.Context, orderID string, actor market.Actor, action, message string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO order_activity (id, order_id, actor_id, actor_role, action, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.NewString(), orderID, actor.ID, actor.Role, action, message, now)
	return err
}
