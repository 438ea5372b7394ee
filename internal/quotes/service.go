package quotes

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
	"github.com/pasoklink/pasoklink/internal/orders"
	"github.com/pasoklink/pasoklink/internal/redisx"
)

// DB is the slice of pgxpool.Pool the quote service needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service owns quote negotiation between buyer and supplier. Until
// conversion it never touches inventory; conversion reserves stock and
// creates an order through the same path direct purchase uses.
type Service struct {
	DB       DB
	Ledger   *inventory.Ledger
	Orders   *orders.Service
	Notifier notify.Notifier
	Redis    *redis.Client
}

type CreateInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
}

type CounterInput struct {
	PriceCents int64  `json:"price_cents"`
	MinimumQty *int   `json:"minimum_qty,omitempty"`
	Message    string `json:"message"`
}

const quoteColumns = `id, buyer_id, supplier_id, product_id, product_name, product_unit,
	product_price_cents, quantity_requested, notes, counter_price_cents,
	counter_minimum_qty, supplier_message, status, order_id, created_at, updated_at`

// Create opens a negotiation on a negotiable product, freezing the
// product's name/unit/price into the quote.
func (s *Service) Create(ctx context.Context, actor market.Actor, in CreateInput) (*market.Quote, error) {
	if actor.Role != market.RoleBuyer {
		return nil, fmt.Errorf("%w: only buyers request quotes", market.ErrForbidden)
	}
	if in.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", market.ErrInvalidQuantity)
	}

	var p market.Product
	err := s.DB.QueryRow(ctx, `
		SELECT id, supplier_id, name, price_cents, unit, negotiable, status
		FROM products WHERE id = $1`, in.ProductID).
		Scan(&p.ID, &p.SupplierID, &p.Name, &p.PriceCents, &p.Unit, &p.Negotiable, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, in.ProductID)
	}
	if err != nil {
		return nil, err
	}
	if p.Status != market.ProductApproved {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotFound, in.ProductID)
	}
	if !p.Negotiable {
		return nil, fmt.Errorf("%w: product %s", market.ErrNotNegotiable, in.ProductID)
	}

	now := time.Now().UTC()
	q := &market.Quote{
		ID:         uuid.NewString(),
		BuyerID:    actor.ID,
		SupplierID: p.SupplierID,
		ProductID:  p.ID,
		Product: market.ProductSnapshot{
			Name:       p.Name,
			Unit:       p.Unit,
			PriceCents: p.PriceCents,
		},
		QuantityRequested: in.Quantity,
		Notes:             in.Notes,
		Status:            market.QuotePending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err = s.DB.Exec(ctx, `
		INSERT INTO quotes (id, buyer_id, supplier_id, product_id, product_name, product_unit,
			product_price_cents, quantity_requested, notes, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		q.ID, q.BuyerID, q.SupplierID, q.ProductID, q.Product.Name, q.Product.Unit,
		q.Product.PriceCents, q.QuantityRequested, q.Notes, q.Status, now)
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, q.SupplierID, "quote_requested", "New quote request",
		fmt.Sprintf("Quote requested for %s x%d", q.Product.Name, q.QuantityRequested),
		map[string]any{"quote_id": q.ID})
	return q, nil
}

// Counter: supplier proposes a price, optionally with a minimum
// quantity, moving the quote to supplier_counter.
func (s *Service) Counter(ctx context.Context, actor market.Actor, quoteID string, in CounterInput) (*market.Quote, error) {
	if in.PriceCents <= 0 {
		return nil, fmt.Errorf("%w: counter price must be > 0", market.ErrInvalidPrice)
	}
	if in.MinimumQty != nil && *in.MinimumQty < 1 {
		return nil, fmt.Errorf("%w: minimum quantity must be >= 1", market.ErrInvalidQuantity)
	}
	return s.act(ctx, actor, quoteID, market.QuoteCounter, func(q *market.Quote) {
		q.CounterPriceCents = &in.PriceCents
		q.CounterMinimumQty = in.MinimumQty
		q.SupplierMessage = in.Message
	})
}

// Accept: supplier accepts at the frozen snapshot price (or at an
// earlier counter if one exists, which cannot happen from pending).
func (s *Service) Accept(ctx context.Context, actor market.Actor, quoteID, message string) (*market.Quote, error) {
	return s.act(ctx, actor, quoteID, market.QuoteAccept, func(q *market.Quote) {
		q.SupplierMessage = message
	})
}

// Reject is terminal and has no stock or order side effect.
func (s *Service) Reject(ctx context.Context, actor market.Actor, quoteID, message string) (*market.Quote, error) {
	return s.act(ctx, actor, quoteID, market.QuoteReject, func(q *market.Quote) {
		q.SupplierMessage = message
	})
}

// BuyerAccept locks the buyer in on the supplier's terms. Inventory is
// still untouched until conversion.
func (s *Service) BuyerAccept(ctx context.Context, actor market.Actor, quoteID string) (*market.Quote, error) {
	return s.act(ctx, actor, quoteID, market.QuoteBuyerOK, nil)
}

// BuyerCancel is terminal.
func (s *Service) BuyerCancel(ctx context.Context, actor market.Actor, quoteID string) (*market.Quote, error) {
	return s.act(ctx, actor, quoteID, market.QuoteBuyerAbort, nil)
}

// act runs one negotiation step: table lookup, role/ownership check,
// then a conditional update keyed on the expected prior status.
func (s *Service) act(ctx context.Context, actor market.Actor, quoteID string, action market.QuoteAction, apply func(*market.Quote)) (*market.Quote, error) {
	q, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	to, ok := market.NextQuote(q.Status, action)
	if !ok {
		return nil, fmt.Errorf("%w: cannot %s a quote in %s", market.ErrInvalidTransition, action, q.Status)
	}
	if err := checkParty(q, actor, market.RoleForQuoteAction(action)); err != nil {
		return nil, err
	}

	if apply != nil {
		apply(q)
	}
	now := time.Now().UTC()
	ct, err := s.DB.Exec(ctx, `
		UPDATE quotes
		SET status = $3, counter_price_cents = $4, counter_minimum_qty = $5,
			supplier_message = $6, updated_at = $7
		WHERE id = $1 AND status = $2`,
		quoteID, q.Status, to, q.CounterPriceCents, q.CounterMinimumQty,
		q.SupplierMessage, now)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: quote %s changed concurrently", market.ErrInvalidTransition, quoteID)
	}

	q.Status = to
	q.UpdatedAt = now
	s.invalidateCache(ctx, quoteID)
	s.notifyCounterparty(ctx, q, actor, action)
	return q, nil
}

// Convert turns an agreed quote into an order: re-check live stock,
// reserve, create a single-line order at the final price, then mark the
// quote converted. The price stays frozen even if the live product
// price moved; only the stock check is against current state.
func (s *Service) Convert(ctx context.Context, actor market.Actor, quoteID string) (*market.Order, error) {
	q, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if _, ok := market.NextQuote(q.Status, market.QuoteConvert); !ok {
		return nil, fmt.Errorf("%w: cannot convert a quote in %s", market.ErrInvalidTransition, q.Status)
	}
	if err := checkParty(q, actor, market.RoleBuyer); err != nil {
		return nil, err
	}
	if q.CounterMinimumQty != nil && q.QuantityRequested < *q.CounterMinimumQty {
		return nil, fmt.Errorf("%w: supplier minimum is %d", market.ErrInvalidQuantity, *q.CounterMinimumQty)
	}

	if _, err := s.Ledger.Reserve(ctx, q.ProductID, q.QuantityRequested); err != nil {
		return nil, err
	}

	ord := &market.Order{
		BuyerID:       q.BuyerID,
		SupplierID:    q.SupplierID,
		PaymentMethod: "bank_transfer",
		StockReserved: true,
		Items: []market.OrderItem{{
			ProductID:      q.ProductID,
			Name:           q.Product.Name,
			Unit:           q.Product.Unit,
			UnitPriceCents: q.FinalPriceCents(),
			Quantity:       q.QuantityRequested,
		}},
	}
	if ord.DeliveryAddress, err = s.buyerAddress(ctx, q.BuyerID); err != nil {
		_ = s.Ledger.Release(ctx, q.ProductID, q.QuantityRequested)
		return nil, err
	}
	if err := s.Orders.Create(ctx, actor, ord); err != nil {
		_ = s.Ledger.Release(ctx, q.ProductID, q.QuantityRequested)
		return nil, err
	}

	now := time.Now().UTC()
	ct, err := s.DB.Exec(ctx, `
		UPDATE quotes SET status = $3, order_id = $4, updated_at = $5
		WHERE id = $1 AND status = $2`,
		quoteID, q.Status, market.QuoteConverted, ord.ID, now)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		// Lost the race after the order was already committed. Cancel it
		// through the order machine so its reservation is handed back
		// exactly once, guarded by the stock_reserved flag.
		if _, cerr := s.Orders.Cancel(ctx, actor, ord.ID); cerr != nil {
			log.Printf("quotes: cancel of order %s after convert conflict failed: %v", ord.ID, cerr)
		}
		return nil, fmt.Errorf("%w: quote %s changed concurrently", market.ErrInvalidTransition, quoteID)
	}

	s.invalidateCache(ctx, quoteID)
	s.Notifier.Notify(ctx, q.SupplierID, "quote_converted", "Quote converted",
		fmt.Sprintf("Quote for %s converted to order %s", q.Product.Name, ord.Reference),
		map[string]any{"quote_id": q.ID, "order_id": ord.ID})
	return ord, nil
}

// Get enforces the same read ownership rule as orders.
func (s *Service) Get(ctx context.Context, actor market.Actor, quoteID string) (*market.Quote, error) {
	q, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if actor.Role != market.RoleAdmin && q.BuyerID != actor.ID && q.SupplierID != actor.ID {
		return nil, fmt.Errorf("%w: not a party to this quote", market.ErrForbidden)
	}
	return q, nil
}

// List returns the actor's quotes, newest first.
func (s *Service) List(ctx context.Context, actor market.Actor, limit, offset int) ([]market.Quote, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := `SELECT ` + quoteColumns + ` FROM quotes `
	args := []any{limit, offset}
	switch actor.Role {
	case market.RoleBuyer:
		q += `WHERE buyer_id = $3 `
		args = append(args, actor.ID)
	case market.RoleSupplier:
		q += `WHERE supplier_id = $3 `
		args = append(args, actor.ID)
	case market.RoleAdmin:
	default:
		return nil, market.ErrForbidden
	}
	q += `ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Quote
	for rows.Next() {
		var item market.Quote
		if err := scanQuote(rows, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Service) load(ctx context.Context, quoteID string) (*market.Quote, error) {
	var q market.Quote
	row := s.DB.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, quoteID)
	if err := scanQuote(row, &q); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: quote %s", market.ErrNotFound, quoteID)
		}
		return nil, err
	}
	return &q, nil
}

func scanQuote(row pgx.Row, q *market.Quote) error {
	var notes, message, orderID *string
	err := row.Scan(&q.ID, &q.BuyerID, &q.SupplierID, &q.ProductID, &q.Product.Name,
		&q.Product.Unit, &q.Product.PriceCents, &q.QuantityRequested, &notes,
		&q.CounterPriceCents, &q.CounterMinimumQty, &message, &q.Status, &orderID,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return err
	}
	if notes != nil {
		q.Notes = *notes
	}
	if message != nil {
		q.SupplierMessage = *message
	}
	if orderID != nil {
		q.OrderID = *orderID
	}
	return nil
}

func checkParty(q *market.Quote, actor market.Actor, want market.Role) error {
	if actor.Role != want {
		return fmt.Errorf("%w: %s action requires role %s", market.ErrForbidden, actor.Role, want)
	}
	switch want {
	case market.RoleSupplier:
		if q.SupplierID != actor.ID {
			return fmt.Errorf("%w: quote belongs to another supplier", market.ErrForbidden)
		}
	case market.RoleBuyer:
		if q.BuyerID != actor.ID {
			return fmt.Errorf("%w: quote belongs to another buyer", market.ErrForbidden)
		}
	}
	return nil
}

func (s *Service) invalidateCache(ctx context.Context, quoteID string) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyQuoteStatus, quoteID)).Err()
}

func (s *Service) buyerAddress(ctx context.Context, buyerID string) (string, error) {
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

func (s *Service) notifyCounterparty(ctx context.Context, q *market.Quote, actor market.Actor, action market.QuoteAction) {
	to := q.BuyerID
	if actor.Role == market.RoleBuyer {
		to = q.SupplierID
	}
	s.Notifier.Notify(ctx, to, "quote_"+string(q.Status), "Quote update",
		fmt.Sprintf("Quote for %s is now %s", q.Product.Name, q.Status),
		map[string]any{"quote_id": q.ID, "action": action})
}
