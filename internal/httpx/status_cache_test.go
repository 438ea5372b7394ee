package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pasoklink/pasoklink/internal/inventory"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/notify"
	"github.com/pasoklink/pasoklink/internal/orders"
	"github.com/pasoklink/pasoklink/internal/testdb"
)

func TestCachedStatusReadableBy(t *testing.T) {
	t.Parallel()

	cs := cachedStatus{BuyerID: "buyer-1", SupplierID: "sup-1", Status: "placed"}

	assert.True(t, cs.readableBy(market.Actor{ID: "buyer-1", Role: market.RoleBuyer}))
	assert.True(t, cs.readableBy(market.Actor{ID: "sup-1", Role: market.RoleSupplier}))
	assert.True(t, cs.readableBy(market.Actor{ID: "admin-1", Role: market.RoleAdmin}))

	assert.False(t, cs.readableBy(market.Actor{ID: "buyer-2", Role: market.RoleBuyer}))
	assert.False(t, cs.readableBy(market.Actor{ID: "sup-2", Role: market.RoleSupplier}))
}

func TestCachedStatusResponseOmitsParties(t *testing.T) {
	t.Parallel()

	meta := market.MetaFor(market.OrderPlaced)
	cs := cachedStatus{BuyerID: "buyer-1", SupplierID: "sup-1", Status: "placed", Meta: &meta}

	b, err := json.Marshal(cs.response())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "buyer-1")
	assert.NotContains(t, string(b), "sup-1")
	assert.Contains(t, string(b), `"status":"placed"`)
}

func TestOrderStatus_OwnershipEnforced(t *testing.T) {
	t.Parallel()

	db := testdb.New()
	db.Users["buyer-1"] = "Jl. Industri 5, Bekasi"
	db.Products["p1"] = &market.Product{
		ID: "p1", SupplierID: "sup-1", Name: "Steel Coil", PriceCents: 9000,
		Unit: "ton", Stock: 10, Status: market.ProductApproved,
	}
	svc := &orders.Service{DB: db, Ledger: &inventory.Ledger{DB: db}, Notifier: notify.LogNotifier{}}

	ord, err := svc.Place(context.Background(),
		market.Actor{ID: "buyer-1", Role: market.RoleBuyer},
		orders.PlaceInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(WithActor)
	(&OrdersHandler{Svc: svc}).Register(r)

	get := func(userID string, role market.Role) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders/"+ord.ID+"/status", nil)
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Role", string(role))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := get("buyer-1", market.RoleBuyer)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string             `json:"status"`
		Meta   *market.StatusMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "placed", body.Status)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 25, body.Meta.Progress)

	assert.Equal(t, http.StatusForbidden, get("buyer-2", market.RoleBuyer).Code)
	assert.Equal(t, http.StatusForbidden, get("sup-2", market.RoleSupplier).Code)
	assert.Equal(t, http.StatusOK, get("sup-1", market.RoleSupplier).Code)
	assert.Equal(t, http.StatusOK, get("admin-1", market.RoleAdmin).Code)
}
