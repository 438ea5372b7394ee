package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pasoklink/pasoklink/internal/market"
)

func TestRender(t *testing.T) {
	t.Parallel()

	ord := &market.Order{
		Reference:       "PO-20260829-AB12CD34",
		BuyerID:         "buyer-1",
		SupplierID:      "sup-1",
		Status:          market.OrderDelivered,
		DeliveryAddress: "Kawasan Industri Blok C2",
		TotalCents:      45000,
		Items: []market.OrderItem{
			{Name: "Steel Coil", Unit: "ton", UnitPriceCents: 9000, Quantity: 5, SubtotalCents: 45000},
		},
	}

	pdf, err := Render(ord)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
