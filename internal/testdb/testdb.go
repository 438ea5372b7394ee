// Package testdb is an in-memory stand-in for the pgx pool so the
// service layer can be exercised without Postgres. It understands
// exactly the statements the services issue, keeps state in plain
// domain structs, and fails loudly on anything it does not recognize.
package testdb

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pasoklink/pasoklink/internal/market"
)

// Store holds the tables the services touch. Not safe for concurrent
// use; tests drive it from one goroutine.
type Store struct {
	Products map[string]*market.Product
	Users    map[string]string // user id -> factory address
	Orders   map[string]*market.Order
	Quotes   map[string]*market.Quote
	Cart     []*market.CartItem
	Activity []market.ActivityEntry

	// Hook, when set, runs before every statement and can mutate the
	// store, e.g. to interleave a concurrent writer between a service's
	// load and its conditional update.
	Hook func(sql string)
}

func New() *Store {
	return &Store{
		Products: map[string]*market.Product{},
		Users:    map[string]string{},
		Orders:   map[string]*market.Order{},
		Quotes:   map[string]*market.Quote{},
	}
}

func (s *Store) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if s.Hook != nil {
		s.Hook(sql)
	}
	switch {
	case strings.Contains(sql, "UPDATE products") && strings.Contains(sql, "stock = stock +"):
		p, ok := s.Products[args[0].(string)]
		if !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		p.Stock += args[1].(int)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "INSERT INTO orders"):
		now := args[10].(time.Time)
		o := &market.Order{
			ID:              args[0].(string),
			Reference:       args[1].(string),
			BuyerID:         args[2].(string),
			SupplierID:      args[3].(string),
			Status:          args[4].(market.OrderStatus),
			PaymentMethod:   args[5].(string),
			PaymentStatus:   args[6].(market.PaymentStatus),
			StockReserved:   args[7].(bool),
			TotalCents:      args[8].(int64),
			DeliveryAddress: args[9].(string),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		o.Timeline.Stamp(o.Status, now)
		s.Orders[o.ID] = o
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "INSERT INTO order_items"):
		o, ok := s.Orders[args[1].(string)]
		if !ok {
			return pgconn.CommandTag{}, fmt.Errorf("testdb: item for unknown order %v", args[1])
		}
		o.Items = append(o.Items, market.OrderItem{
			ID:             args[0].(string),
			OrderID:        args[1].(string),
			ProductID:      args[2].(string),
			Name:           args[3].(string),
			Unit:           args[4].(string),
			UnitPriceCents: args[5].(int64),
			Quantity:       args[6].(int),
			SubtotalCents:  args[7].(int64),
		})
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "INSERT INTO order_activity"):
		s.Activity = append(s.Activity, market.ActivityEntry{
			ID:        args[0].(string),
			OrderID:   args[1].(string),
			ActorID:   args[2].(string),
			ActorRole: args[3].(market.Role),
			Action:    args[4].(string),
			Message:   args[5].(string),
			CreatedAt: args[6].(time.Time),
		})
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "UPDATE orders") && strings.Contains(sql, "SET status = $3"):
		o, ok := s.Orders[args[0].(string)]
		if !ok || o.Status != args[1].(market.OrderStatus) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		now := args[3].(time.Time)
		o.Status = args[2].(market.OrderStatus)
		o.UpdatedAt = now
		o.TrackingNumber = args[4].(string)
		o.ExpectedDeliveryDate, _ = args[5].(*time.Time)
		o.Timeline.Stamp(o.Status, now)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "SET stock_reserved = FALSE"):
		o, ok := s.Orders[args[0].(string)]
		if !ok || !o.StockReserved {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		o.StockReserved = false
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "SET payment_proof = $2"):
		o, ok := s.Orders[args[0].(string)]
		if !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		o.PaymentProof = args[1].(string)
		o.PaymentStatus = args[2].(market.PaymentStatus)
		o.UpdatedAt = args[3].(time.Time)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "SET payment_status = $2"):
		o, ok := s.Orders[args[0].(string)]
		if !ok || o.PaymentStatus != args[3].(market.PaymentStatus) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		o.PaymentStatus = args[1].(market.PaymentStatus)
		o.UpdatedAt = args[2].(time.Time)
		if strings.Contains(sql, "payment_proof = NULL") {
			o.PaymentProof = ""
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "INSERT INTO quotes"):
		now := args[10].(time.Time)
		q := &market.Quote{
			ID:         args[0].(string),
			BuyerID:    args[1].(string),
			SupplierID: args[2].(string),
			ProductID:  args[3].(string),
			Product: market.ProductSnapshot{
				Name:       args[4].(string),
				Unit:       args[5].(string),
				PriceCents: args[6].(int64),
			},
			QuantityRequested: args[7].(int),
			Notes:             args[8].(string),
			Status:            args[9].(market.QuoteStatus),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		s.Quotes[q.ID] = q
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "UPDATE quotes") && strings.Contains(sql, "counter_price_cents = $4"):
		q, ok := s.Quotes[args[0].(string)]
		if !ok || q.Status != args[1].(market.QuoteStatus) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		q.Status = args[2].(market.QuoteStatus)
		q.CounterPriceCents, _ = args[3].(*int64)
		q.CounterMinimumQty, _ = args[4].(*int)
		q.SupplierMessage = args[5].(string)
		q.UpdatedAt = args[6].(time.Time)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE quotes") && strings.Contains(sql, "order_id = $4"):
		q, ok := s.Quotes[args[0].(string)]
		if !ok || q.Status != args[1].(market.QuoteStatus) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		q.Status = args[2].(market.QuoteStatus)
		q.OrderID = args[3].(string)
		q.UpdatedAt = args[4].(time.Time)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE cart_items"):
		for _, c := range s.Cart {
			if c.BuyerID == args[0].(string) && c.ProductID == args[1].(string) {
				c.Quantity = args[2].(int)
				return pgconn.NewCommandTag("UPDATE 1"), nil
			}
		}
		return pgconn.NewCommandTag("UPDATE 0"), nil

	case strings.Contains(sql, "DELETE FROM cart_items") && strings.Contains(sql, "product_id = $2"):
		for i, c := range s.Cart {
			if c.BuyerID == args[0].(string) && c.ProductID == args[1].(string) {
				s.Cart = append(s.Cart[:i], s.Cart[i+1:]...)
				return pgconn.NewCommandTag("DELETE 1"), nil
			}
		}
		return pgconn.NewCommandTag("DELETE 0"), nil

	case strings.Contains(sql, "DELETE FROM cart_items"):
		var kept []*market.CartItem
		for _, c := range s.Cart {
			if c.BuyerID != args[0].(string) {
				kept = append(kept, c)
			}
		}
		n := len(s.Cart) - len(kept)
		s.Cart = kept
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("testdb: unhandled exec: %s", firstLine(sql))
}

func (s *Store) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if s.Hook != nil {
		s.Hook(sql)
	}
	switch {
	case strings.Contains(sql, "UPDATE products") && strings.Contains(sql, "stock >= $2"):
		p, ok := s.Products[args[0].(string)]
		qty := args[1].(int)
		if !ok || p.Stock < qty {
			return Row{Err: pgx.ErrNoRows}
		}
		p.Stock -= qty
		return Row{Vals: []any{p.ID, p.SupplierID, p.Name, p.PriceCents, p.Unit, p.Stock, p.Negotiable, p.Status}}

	case strings.Contains(sql, "SELECT EXISTS"):
		_, ok := s.Products[args[0].(string)]
		return Row{Vals: []any{ok}}

	case strings.Contains(sql, "SELECT factory_address"):
		addr, ok := s.Users[args[0].(string)]
		if !ok {
			return Row{Err: pgx.ErrNoRows}
		}
		if addr == "" {
			return Row{Vals: []any{(*string)(nil)}}
		}
		return Row{Vals: []any{&addr}}

	case strings.Contains(sql, "negotiable, status"):
		p, ok := s.Products[args[0].(string)]
		if !ok {
			return Row{Err: pgx.ErrNoRows}
		}
		return Row{Vals: []any{p.ID, p.SupplierID, p.Name, p.PriceCents, p.Unit, p.Negotiable, p.Status}}

	case strings.Contains(sql, "SELECT supplier_id, status FROM products"):
		p, ok := s.Products[args[0].(string)]
		if !ok {
			return Row{Err: pgx.ErrNoRows}
		}
		return Row{Vals: []any{p.SupplierID, p.Status}}

	case strings.Contains(sql, "SELECT p.supplier_id"):
		for _, c := range s.Cart {
			if c.BuyerID == args[0].(string) {
				return Row{Vals: []any{s.Products[c.ProductID].SupplierID}}
			}
		}
		return Row{Err: pgx.ErrNoRows}

	case strings.Contains(sql, "INSERT INTO cart_items"):
		buyer, product := args[1].(string), args[2].(string)
		qty, now := args[3].(int), args[4].(time.Time)
		for _, c := range s.Cart {
			if c.BuyerID == buyer && c.ProductID == product {
				c.Quantity += qty
				c.UpdatedAt = now
				return Row{Vals: []any{c.ID, c.Quantity, c.CreatedAt}}
			}
		}
		c := &market.CartItem{
			ID: args[0].(string), BuyerID: buyer, ProductID: product,
			Quantity: qty, CreatedAt: now, UpdatedAt: now,
		}
		s.Cart = append(s.Cart, c)
		return Row{Vals: []any{c.ID, c.Quantity, c.CreatedAt}}

	case strings.Contains(sql, "FROM orders WHERE id"):
		o, ok := s.Orders[args[0].(string)]
		if !ok {
			return Row{Err: pgx.ErrNoRows}
		}
		return Row{Vals: orderVals(o)}

	case strings.Contains(sql, "FROM quotes WHERE id"):
		q, ok := s.Quotes[args[0].(string)]
		if !ok {
			return Row{Err: pgx.ErrNoRows}
		}
		return Row{Vals: quoteVals(q)}
	}
	return Row{Err: fmt.Errorf("testdb: unhandled query row: %s", firstLine(sql))}
}

func (s *Store) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.Hook != nil {
		s.Hook(sql)
	}
	switch {
	case strings.Contains(sql, "FROM order_items"):
		rs := &Rows{}
		if o, ok := s.Orders[args[0].(string)]; ok {
			for _, it := range o.Items {
				rs.rows = append(rs.rows, []any{
					it.ID, it.OrderID, it.ProductID, it.Name, it.Unit,
					it.UnitPriceCents, it.Quantity, it.SubtotalCents,
				})
			}
		}
		return rs, nil

	case strings.Contains(sql, "FROM order_activity"):
		rs := &Rows{}
		for _, a := range s.Activity {
			if a.OrderID == args[0].(string) {
				rs.rows = append(rs.rows, []any{a.ID, a.OrderID, a.ActorID, a.ActorRole, a.Action, a.Message, a.CreatedAt})
			}
		}
		return rs, nil

	case strings.Contains(sql, "FROM cart_items c JOIN products p"):
		rs := &Rows{}
		for _, c := range s.Cart {
			if c.BuyerID != args[0].(string) {
				continue
			}
			p := s.Products[c.ProductID]
			rs.rows = append(rs.rows, []any{
				c.ID, c.BuyerID, c.ProductID, c.Quantity, c.CreatedAt, c.UpdatedAt,
				p.Name, p.Unit, p.PriceCents, p.SupplierID,
			})
		}
		return rs, nil

	case strings.Contains(sql, "FROM orders"):
		rs := &Rows{}
		for _, o := range s.Orders {
			if strings.Contains(sql, "buyer_id = $3") && o.BuyerID != args[2].(string) {
				continue
			}
			if strings.Contains(sql, "supplier_id = $3") && o.SupplierID != args[2].(string) {
				continue
			}
			rs.rows = append(rs.rows, orderVals(o))
		}
		return rs, nil

	case strings.Contains(sql, "FROM quotes"):
		rs := &Rows{}
		for _, q := range s.Quotes {
			if strings.Contains(sql, "buyer_id = $3") && q.BuyerID != args[2].(string) {
				continue
			}
			if strings.Contains(sql, "supplier_id = $3") && q.SupplierID != args[2].(string) {
				continue
			}
			rs.rows = append(rs.rows, quoteVals(q))
		}
		return rs, nil
	}
	return nil, fmt.Errorf("testdb: unhandled query: %s", firstLine(sql))
}

func (s *Store) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return &Tx{store: s}, nil
}

// Tx delegates to the store; commit and rollback are no-ops because the
// store has no isolation to offer.
type Tx struct{ store *Store }

func (t *Tx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *Tx) Commit(context.Context) error          { return nil }
func (t *Tx) Rollback(context.Context) error        { return nil }
func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.store.Exec(ctx, sql, args...)
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.store.Query(ctx, sql, args...)
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.store.QueryRow(ctx, sql, args...)
}
func (t *Tx) Conn() *pgx.Conn { return nil }

// Row mirrors pgx.Row over literal values; Scan assigns by reflection
// so nullable columns can be fed as typed nil pointers.
type Row struct {
	Vals []any
	Err  error
}

func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(dest) != len(r.Vals) {
		return fmt.Errorf("testdb: scan wants %d values, row has %d", len(dest), len(r.Vals))
	}
	for i, d := range dest {
		if r.Vals[i] == nil {
			continue
		}
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(r.Vals[i])
		switch {
		case sv.Type().AssignableTo(dv.Type()):
			dv.Set(sv)
		case sv.Type().ConvertibleTo(dv.Type()):
			dv.Set(sv.Convert(dv.Type()))
		default:
			return fmt.Errorf("testdb: cannot scan %s into %s", sv.Type(), dv.Type())
		}
	}
	return nil
}

type Rows struct {
	rows [][]any
	idx  int
}

func (r *Rows) Close()                                       {}
func (r *Rows) Err() error                                   { return nil }
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *Rows) Scan(dest ...any) error {
	return Row{Vals: r.rows[r.idx-1]}.Scan(dest...)
}
func (r *Rows) Values() ([]any, error) { return r.rows[r.idx-1], nil }
func (r *Rows) RawValues() [][]byte    { return nil }
func (r *Rows) Conn() *pgx.Conn        { return nil }

func orderVals(o *market.Order) []any {
	return []any{
		o.ID, o.Reference, o.BuyerID, o.SupplierID, o.Status, o.PaymentMethod,
		o.PaymentStatus, strPtr(o.PaymentProof), o.StockReserved, o.TotalCents,
		o.DeliveryAddress, strPtr(o.TrackingNumber), o.ExpectedDeliveryDate,
		o.Timeline.PlacedAt, o.Timeline.ConfirmedAt, o.Timeline.RejectedAt,
		o.Timeline.ShippedAt, o.Timeline.DeliveredAt, o.Timeline.CancelledAt,
		o.CreatedAt, o.UpdatedAt,
	}
}

func quoteVals(q *market.Quote) []any {
	return []any{
		q.ID, q.BuyerID, q.SupplierID, q.ProductID, q.Product.Name, q.Product.Unit,
		q.Product.PriceCents, q.QuantityRequested, strPtr(q.Notes),
		q.CounterPriceCents, q.CounterMinimumQty, strPtr(q.SupplierMessage),
		q.Status, strPtr(q.OrderID), q.CreatedAt, q.UpdatedAt,
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstLine(sql string) string {
	return strings.TrimSpace(strings.SplitN(strings.TrimSpace(sql), "\n", 2)[0])
}
