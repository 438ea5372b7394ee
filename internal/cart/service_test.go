package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pasoklink/pasoklink/internal/inventory"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/notify"
	"github.com/pasoklink/pasoklink/internal/orders"
	"github.com/pasoklink/pasoklink/internal/testdb"
)

var buyer = market.Actor{ID: "buyer-1", Role: market.RoleBuyer}

func newService(db *testdb.Store) *Service {
	ledger := &inventory.Ledger{DB: db}
	os := &orders.Service{DB: db, Ledger: ledger, Notifier: notify.LogNotifier{}}
	return &Service{DB: db, Ledger: ledger, Orders: os}
}

func seed(db *testdb.Store) {
	db.Users["buyer-1"] = "Jl. Industri 5, Bekasi"
	db.Products["p1"] = &market.Product{
		ID: "p1", SupplierID: "sup-1", Name: "Steel Coil", PriceCents: 9000,
		Unit: "ton", Stock: 10, Status: market.ProductApproved,
	}
	db.Products["p2"] = &market.Product{
		ID: "p2", SupplierID: "sup-1", Name: "Rebar", PriceCents: 2500,
		Unit: "bundle", Stock: 10, Status: market.ProductApproved,
	}
	db.Products["p9"] = &market.Product{
		ID: "p9", SupplierID: "sup-2", Name: "Cement", PriceCents: 1200,
		Unit: "bag", Stock: 100, Status: market.ProductApproved,
	}
}

func TestAdd_SingleSupplierRule(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Add(ctx, buyer, "p1", 2)
	require.NoError(t, err)

	_, err = svc.Add(ctx, buyer, "p9", 1)
	assert.ErrorIs(t, err, market.ErrCrossSupplierCart)

	lines, err := svc.Lines(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAdd_MergesDuplicateLines(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Add(ctx, buyer, "p1", 2)
	require.NoError(t, err)
	item, err := svc.Add(ctx, buyer, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	lines, err := svc.Lines(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Add(ctx, buyer, "p1", 2)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateQuantity(ctx, buyer, "p1", 0), market.ErrInvalidQuantity)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, buyer, "p2", 4), market.ErrNotFound)
	require.NoError(t, svc.UpdateQuantity(ctx, buyer, "p1", 7))

	lines, err := svc.Lines(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, 7, lines[0].Quantity)

	assert.ErrorIs(t, svc.Remove(ctx, buyer, "p2"), market.ErrNotFound)
	require.NoError(t, svc.Remove(ctx, buyer, "p1"))

	lines, err = svc.Lines(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCheckout_CreatesOneOrderAndClearsCart(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Add(ctx, buyer, "p1", 5)
	require.NoError(t, err)
	_, err = svc.Add(ctx, buyer, "p2", 2)
	require.NoError(t, err)

	ord, err := svc.Checkout(ctx, buyer, CheckoutInput{PaymentMethod: "bank_transfer"})
	require.NoError(t, err)
	assert.Equal(t, market.OrderPlaced, ord.Status)
	assert.Equal(t, "sup-1", ord.SupplierID)
	assert.Len(t, ord.Items, 2)
	assert.Equal(t, int64(50000), ord.TotalCents)
	assert.Equal(t, "Jl. Industri 5, Bekasi", ord.DeliveryAddress)

	assert.Equal(t, 5, db.Products["p1"].Stock)
	assert.Equal(t, 8, db.Products["p2"].Stock)

	lines, err := svc.Lines(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, lines, "checkout clears the cart")
}

func TestCheckout_RollsBackOnShortStock(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	db.Products["p2"].Stock = 1
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Add(ctx, buyer, "p1", 5)
	require.NoError(t, err)
	_, err = svc.Add(ctx, buyer, "p2", 2)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, buyer, CheckoutInput{PaymentMethod: "bank_transfer"})
	require.ErrorIs(t, err, market.ErrInsufficientStock)

	assert.Equal(t, 10, db.Products["p1"].Stock, "the reserved line is compensated")
	assert.Equal(t, 1, db.Products["p2"].Stock)
	assert.Empty(t, db.Orders)

	lines, err := svc.Lines(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, lines, 2, "a failed checkout leaves the cart intact")
}

func TestCheckout_RequiresAddress(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	seed(db)
	db.Users["buyer-1"] = ""
	svc := newService(db)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, buyer, CheckoutInput{})
	assert.ErrorIs(t, err, market.ErrInvalidQuantity, "empty cart first")

	_, err = svc.Add(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, buyer, CheckoutInput{})
	assert.ErrorIs(t, err, market.ErrMissingDeliveryAddress)
	assert.Equal(t, 10, db.Products["p1"].Stock, "address check precedes reservation")

	ord, err := svc.Checkout(ctx, buyer, CheckoutInput{DeliveryAddress: "Gudang 3, Cikarang"})
	require.NoError(t, err)
	assert.Equal(t, "Gudang 3, Cikarang", ord.DeliveryAddress)
}
