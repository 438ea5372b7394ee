package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/pasoklink/pasoklink/internal/inventory"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/notify"
	"github.com/pasoklink/pasoklink/internal/redisx"
)

// DB is the slice of pgxpool.Pool the order service needs. Kept minimal
// so tests can stand in for the pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Service owns the order lifecycle: placement, the status state
// machine, the payment proof flow and the append-only activity log.
type Service struct {
	DB       DB
	Ledger   *inventory.Ledger
	Notifier notify.Notifier
	Redis    *redis.Client
}

type PlaceInput struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PaymentMethod   string `json:"payment_method"`
	DeliveryAddress string `json:"delivery_address"`
}

type ShipInput struct {
	TrackingNumber       string     `json:"tracking_number"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
}

// Place is the direct single-product purchase path: reserve stock, then
// create the order in `placed`.
func (s *Service) Place(ctx context.Context, actor market.Actor, in PlaceInput) (*market.Order, error) {
	if actor.Role != market.RoleBuyer {
		return nil, fmt.Errorf("%w: only buyers place orders", market.ErrForbidden)
	}
	if in.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", market.ErrInvalidQuantity)
	}
	if in.DeliveryAddress == "" {
		addr, err := s.factoryAddress(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		in.DeliveryAddress = addr
	}

	p, err := s.Ledger.Reserve(ctx, in.ProductID, in.Quantity)
	if err != nil {
		return nil, err
	}
	if p.Status != market.ProductApproved {
		// reservation undone; unapproved products are not purchasable
		_ = s.Ledger.Release(ctx, p.ID, in.Quantity)
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, in.ProductID)
	}

	ord := &market.Order{
		BuyerID:         actor.ID,
		SupplierID:      p.SupplierID,
		PaymentMethod:   in.PaymentMethod,
		DeliveryAddress: in.DeliveryAddress,
		StockReserved:   true,
		Items: []market.OrderItem{{
			ProductID:      p.ID,
			Name:           p.Name,
			Unit:           p.Unit,
			UnitPriceCents: p.PriceCents,
			Quantity:       in.Quantity,
		}},
	}
	if err := s.Create(ctx, actor, ord); err != nil {
		_ = s.Ledger.Release(ctx, p.ID, in.Quantity)
		return nil, err
	}
	return ord, nil
}

// Create persists an already-reserved order in `placed`. The cart and
// quote services funnel through here so every order is born the same
// way. Item snapshots must be filled in; totals are computed here once
// and never recomputed.
func (s *Service) Create(ctx context.Context, actor market.Actor, ord *market.Order) error {
	if len(ord.Items) == 0 {
		return fmt.Errorf("%w: order needs at least one item", market.ErrInvalidQuantity)
	}
	now := time.Now().UTC()
	ord.ID = uuid.NewString()
	ord.Reference = market.NewOrderReference(now)
	ord.Status = market.OrderPlaced
	ord.PaymentStatus = market.PaymentPending
	ord.TotalCents = market.LineTotals(ord.Items)
	ord.Timeline.Stamp(market.OrderPlaced, now)
	ord.CreatedAt = now
	ord.UpdatedAt = now

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, reference, buyer_id, supplier_id, status, payment_method,
			payment_status, stock_reserved, total_cents, delivery_address, placed_at,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11,$11)`,
		ord.ID, ord.Reference, ord.BuyerID, ord.SupplierID, ord.Status, ord.PaymentMethod,
		ord.PaymentStatus, ord.StockReserved, ord.TotalCents, ord.DeliveryAddress, now)
	if err != nil {
		return err
	}

	for i := range ord.Items {
		ord.Items[i].ID = uuid.NewString()
		ord.Items[i].OrderID = ord.ID
		it := ord.Items[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, unit, unit_price_cents,
				quantity, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, it.OrderID, it.ProductID, it.Name, it.Unit, it.UnitPriceCents,
			it.Quantity, it.SubtotalCents)
		if err != nil {
			return err
		}
	}

	if err := appendActivity(ctx, tx, ord.ID, actor, "place",
		fmt.Sprintf("Order %s placed", ord.Reference), now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.Notifier.Notify(ctx, ord.SupplierID, "order_placed", "New order",
		fmt.Sprintf("Order %s was placed", ord.Reference),
		map[string]any{"order_id": ord.ID})
	return nil
}

// Accept: supplier confirms a placed order.
func (s *Service) Accept(ctx context.Context, actor market.Actor, orderID string) (*market.Order, error) {
	return s.transition(ctx, actor, orderID, market.EventAccept, nil)
}

// Reject: supplier turns a placed order down; reserved stock goes back.
func (s *Service) Reject(ctx context.Context, actor market.Actor, orderID string) (*market.Order, error) {
	return s.transition(ctx, actor, orderID, market.EventReject, nil)
}

// Cancel: buyer withdraws a placed order; reserved stock goes back.
func (s *Service) Cancel(ctx context.Context, actor market.Actor, orderID string) (*market.Order, error) {
	return s.transition(ctx, actor, orderID, market.EventCancel, nil)
}

// Ship: supplier marks a confirmed order in transit with tracking data.
func (s *Service) Ship(ctx context.Context, actor market.Actor, orderID string, in ShipInput) (*market.Order, error) {
	return s.transition(ctx, actor, orderID, market.EventShip, func(o *market.Order) {
		o.TrackingNumber = in.TrackingNumber
		o.ExpectedDeliveryDate = in.ExpectedDeliveryDate
	})
}

// Deliver: supplier closes out an in-transit order.
func (s *Service) Deliver(ctx context.Context, actor market.Actor, orderID string) (*market.Order, error) {
	return s.transition(ctx, actor, orderID, market.EventDeliver, nil)
}

var timelineColumn = map[market.OrderStatus]string{
	market.OrderConfirmed: "confirmed_at",
	market.OrderRejected:  "rejected_at",
	market.OrderInTransit: "shipped_at",
	market.OrderDelivered: "delivered_at",
	market.OrderCancelled: "cancelled_at",
}

func (s *Service) transition(ctx context.Context, actor market.Actor, orderID string, ev market.OrderEvent, apply func(*market.Order)) (*market.Order, error) {
	ord, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tr, ok := market.NextOrder(ord.Status, ev)
	if !ok {
		return nil, fmt.Errorf("%w: cannot %s an order in %s", market.ErrInvalidTransition, ev, ord.Status)
	}
	if err := checkOwnership(ord, actor, tr.By); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if apply != nil {
		apply(ord)
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Optimistic guard: the update only lands if the status is still
	// what we read. A racing transition leaves 0 rows. The status change
	// and its activity row commit together.
	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $3, `+timelineColumn[tr.To]+` = $4, updated_at = $4,
			tracking_number = $5, expected_delivery_date = $6
		WHERE id = $1 AND status = $2`,
		orderID, ord.Status, tr.To, now, ord.TrackingNumber, ord.ExpectedDeliveryDate)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: order %s changed concurrently", market.ErrInvalidTransition, orderID)
	}
	if err := appendActivity(ctx, tx, ord.ID, actor, string(ev), tr.Message, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if tr.ReleasesStock {
		s.releaseOnce(ctx, ord)
	}

	ord.Status = tr.To
	ord.Timeline.Stamp(tr.To, now)
	ord.UpdatedAt = now

	s.invalidateStatusCache(ctx, ord.ID)
	s.notifyCounterparty(ctx, ord, actor, tr)
	return ord, nil
}

// releaseOnce flips stock_reserved false-ward with a conditional update
// so a double release can never over-credit stock, then returns each
// line's quantity to the ledger.
func (s *Service) releaseOnce(ctx context.Context, ord *market.Order) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET stock_reserved = FALSE, updated_at = now()
		WHERE id = $1 AND stock_reserved`, ord.ID)
	if err != nil {
		log.Printf("orders: stock_reserved flip failed order=%s: %v", ord.ID, err)
		return
	}
	if ct.RowsAffected() == 0 {
		return
	}
	ord.StockReserved = false
	for _, it := range ord.Items {
		if err := s.Ledger.Release(ctx, it.ProductID, it.Quantity); err != nil {
			log.Printf("orders: stock release failed order=%s product=%s qty=%d: %v",
				ord.ID, it.ProductID, it.Quantity, err)
		}
	}
}

func (s *Service) notifyCounterparty(ctx context.Context, ord *market.Order, actor market.Actor, tr market.OrderTransition) {
	to := ord.BuyerID
	if actor.Role == market.RoleBuyer {
		to = ord.SupplierID
	}
	s.Notifier.Notify(ctx, to, "order_"+string(tr.To), "Order update",
		fmt.Sprintf("Order %s: %s", ord.Reference, tr.Message),
		map[string]any{"order_id": ord.ID, "status": tr.To})
}

func checkOwnership(ord *market.Order, actor market.Actor, want market.Role) error {
	if actor.Role != want {
		return fmt.Errorf("%w: %s action requires role %s", market.ErrForbidden, actor.Role, want)
	}
	switch want {
	case market.RoleSupplier:
		if ord.SupplierID != actor.ID {
			return fmt.Errorf("%w: order belongs to another supplier", market.ErrForbidden)
		}
	case market.RoleBuyer:
		if ord.BuyerID != actor.ID {
			return fmt.Errorf("%w: order belongs to another buyer", market.ErrForbidden)
		}
	}
	return nil
}

func (s *Service) invalidateStatusCache(ctx context.Context, orderID string) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
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
