package quotes

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pasoklink/pasoklink/internal/inventory"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/notify"
	"github.com/pasoklink/pasoklink/internal/orders"
	"github.com/pasoklink/pasoklink/internal/testdb"
)

var (
	buyer    = market.Actor{ID: "buyer-1", Role: market.RoleBuyer}
	supplier = market.Actor{ID: "sup-1", Role: market.RoleSupplier}
)

func newServices(db *testdb.Store) (*Service, *orders.Service) {
	ledger := &inventory.Ledger{DB: db}
	os := &orders.Service{DB: db, Ledger: ledger, Notifier: notify.LogNotifier{}}
	qs := &Service{DB: db, Ledger: ledger, Orders: os, Notifier: notify.LogNotifier{}}
	return qs, os
}

func seed(db *testdb.Store) {
	db.Users["buyer-1"] = "Jl. Industri 5, Bekasi"
	db.Products["p1"] = &market.Product{
		ID:         "p1",
		SupplierID: "sup-1",
		Name:       "Steel Coil",
		PriceCents: 10000,
		Unit:       "ton",
		Stock:      10,
		Negotiable: true,
		Status:     market.ProductApproved,
	}
}

func TestNegotiationToOrder(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	qs, _ := newServices(db)
	ctx := context.Background()

	q, err := qs.Create(ctx, buyer, CreateInput{ProductID: "p1", Quantity: 5, Notes: "monthly restock"})
	require.NoError(t, err)
	assert.Equal(t, market.QuotePending, q.Status)
	assert.Equal(t, int64(10000), q.Product.PriceCents)

	q, err = qs.Counter(ctx, supplier, q.ID, CounterInput{PriceCents: 9000, Message: "bulk rate"})
	require.NoError(t, err)
	assert.Equal(t, market.QuoteSupplierCounter, q.Status)

	q, err = qs.BuyerAccept(ctx, buyer, q.ID)
	require.NoError(t, err)
	assert.Equal(t, market.QuoteBuyerAccept, q.Status)

	// A live price hike after agreement must not touch the deal.
	db.Products["p1"].PriceCents = 12000

	ord, err := qs.Convert(ctx, buyer, q.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), ord.Items[0].UnitPriceCents)
	assert.Equal(t, int64(45000), ord.TotalCents)
	assert.Equal(t, market.OrderPlaced, ord.Status)
	assert.Equal(t, 5, db.Products["p1"].Stock)

	stored := db.Quotes[q.ID]
	assert.Equal(t, market.QuoteConverted, stored.Status)
	assert.Equal(t, ord.ID, stored.OrderID)

	_, err = qs.Convert(ctx, buyer, q.ID)
	assert.ErrorIs(t, err, market.ErrInvalidTransition, "converted is terminal")
	assert.Equal(t, 5, db.Products["p1"].Stock)
}

func TestSupplierAcceptUsesSnapshotPrice(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	qs, _ := newServices(db)
	ctx := context.Background()

	q, err := qs.Create(ctx, buyer, CreateInput{ProductID: "p1", Quantity: 3})
	require.NoError(t, err)

	q, err = qs.Accept(ctx, supplier, q.ID, "happy to supply")
	require.NoError(t, err)
	assert.Equal(t, market.QuoteSupplierAccept, q.Status)

	q, err = qs.BuyerAccept(ctx, buyer, q.ID)
	require.NoError(t, err)

	ord, err := qs.Convert(ctx, buyer, q.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), ord.Items[0].UnitPriceCents, "no counter means the frozen snapshot price")
	assert.Equal(t, int64(30000), ord.TotalCents)
}

func TestCreate_RequiresNegotiableApprovedProduct(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	db.Products["p2"] = &market.Product{
		ID: "p2", SupplierID: "sup-1", Name: "Rebar", PriceCents: 4000,
		Unit: "bundle", Stock: 50, Status: market.ProductApproved,
	}
	db.Products["p3"] = &market.Product{
		ID: "p3", SupplierID: "sup-1", Name: "Wire", PriceCents: 2000,
		Unit: "roll", Stock: 50, Negotiable: true, Status: market.ProductPending,
	}
	qs, _ := newServices(db)
	ctx := context.Background()

	_, err := qs.Create(ctx, buyer, CreateInput{ProductID: "p2", Quantity: 1})
	assert.ErrorIs(t, err, market.ErrNotNegotiable)

	_, err = qs.Create(ctx, buyer, CreateInput{ProductID: "p3", Quantity: 1})
	assert.ErrorIs(t, err, market.ErrNotFound, "unapproved products are invisible")

	_, err = qs.Create(ctx, supplier, CreateInput{ProductID: "p1", Quantity: 1})
	assert.ErrorIs(t, err, market.ErrForbidden)
}

func TestConvert_EnforcesCounterMinimum(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	qs, _ := newServices(db)
	ctx := context.Background()

	q, err := qs.Create(ctx, buyer, CreateInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	min := 5
	q, err = qs.Counter(ctx, supplier, q.ID, CounterInput{PriceCents: 8500, MinimumQty: &min})
	require.NoError(t, err)

	q, err = qs.BuyerAccept(ctx, buyer, q.ID)
	require.NoError(t, err)

	_, err = qs.Convert(ctx, buyer, q.ID)
	assert.ErrorIs(t, err, market.ErrInvalidQuantity)
	assert.Equal(t, 10, db.Products["p1"].Stock, "a refused conversion must not hold stock")
}

func TestConvert_LosingRaceCancelsCreatedOrder(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	qs, os := newServices(db)
	ctx := context.Background()

	q, err := qs.Create(ctx, buyer, CreateInput{ProductID: "p1", Quantity: 4})
	require.NoError(t, err)
	_, err = qs.Accept(ctx, supplier, q.ID, "")
	require.NoError(t, err)
	_, err = qs.BuyerAccept(ctx, buyer, q.ID)
	require.NoError(t, err)

	// A rival conversion slips in between our order insert and the
	// quote's conditional flip to converted.
	db.Hook = func(sql string) {
		stored := db.Quotes[q.ID]
		if strings.Contains(sql, "order_id = $4") && stored.Status == market.QuoteBuyerAccept {
			stored.Status = market.QuoteConverted
			stored.OrderID = "order-rival"
		}
	}

	_, err = qs.Convert(ctx, buyer, q.ID)
	require.ErrorIs(t, err, market.ErrInvalidTransition)
	db.Hook = nil

	assert.Equal(t, 10, db.Products["p1"].Stock, "the loser's reservation must be handed back")
	assert.Equal(t, "order-rival", db.Quotes[q.ID].OrderID, "the winner's link survives")

	var loser *market.Order
	for _, o := range db.Orders {
		loser = o
	}
	require.NotNil(t, loser)
	assert.Equal(t, market.OrderCancelled, loser.Status)
	assert.False(t, loser.StockReserved)

	// The cancelled order is inert: no transition on it can credit
	// stock a second time.
	_, err = os.Reject(ctx, supplier, loser.ID)
	assert.ErrorIs(t, err, market.ErrInvalidTransition)
	assert.Equal(t, 10, db.Products["p1"].Stock)
}

func TestQuoteTerminalStates(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	qs, _ := newServices(db)
	ctx := context.Background()

	q, err := qs.Create(ctx, buyer, CreateInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	q, err = qs.Reject(ctx, supplier, q.ID, "cannot fulfil")
	require.NoError(t, err)
	assert.Equal(t, market.QuoteRejected, q.Status)

	_, err = qs.Counter(ctx, supplier, q.ID, CounterInput{PriceCents: 8000})
	assert.ErrorIs(t, err, market.ErrInvalidTransition)
	_, err = qs.Convert(ctx, buyer, q.ID)
	assert.ErrorIs(t, err, market.ErrInvalidTransition)

	q2, err := qs.Create(ctx, buyer, CreateInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	_, err = qs.Accept(ctx, supplier, q2.ID, "")
	require.NoError(t, err)
	q2, err = qs.BuyerCancel(ctx, buyer, q2.ID)
	require.NoError(t, err)
	assert.Equal(t, market.QuoteBuyerCancel, q2.Status)
	assert.Equal(t, 10, db.Products["p1"].Stock, "negotiation never touches inventory")
}
