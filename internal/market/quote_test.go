package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextQuote_SupplierResponsesOnlyFromPending(t *testing.T) {
	t.Parallel()

	for _, a := range []QuoteAction{QuoteCounter, QuoteAccept, QuoteReject} {
		_, ok := NextQuote(QuotePending, a)
		assert.True(t, ok, "%s from pending", a)
		_, ok = NextQuote(QuoteSupplierCounter, a)
		assert.False(t, ok, "%s must not apply after a counter", a)
	}
}

func TestNextQuote_BuyerMovesNeedSupplierResponse(t *testing.T) {
	t.Parallel()

	for _, a := range []QuoteAction{QuoteBuyerOK, QuoteBuyerAbort, QuoteConvert} {
		_, ok := NextQuote(QuotePending, a)
		assert.False(t, ok, "%s must wait for a supplier response", a)
	}
	for _, from := range []QuoteStatus{QuoteSupplierCounter, QuoteSupplierAccept} {
		to, ok := NextQuote(from, QuoteBuyerOK)
		require.True(t, ok)
		assert.Equal(t, QuoteBuyerAccept, to)

		to, ok = NextQuote(from, QuoteConvert)
		require.True(t, ok)
		assert.Equal(t, QuoteConverted, to)
	}
}

func TestNextQuote_ConvertFromBuyerAccept(t *testing.T) {
	t.Parallel()

	to, ok := NextQuote(QuoteBuyerAccept, QuoteConvert)
	require.True(t, ok)
	assert.Equal(t, QuoteConverted, to)

	// but no second thoughts after accepting
	_, ok = NextQuote(QuoteBuyerAccept, QuoteBuyerAbort)
	assert.False(t, ok)
}

func TestNextQuote_TerminalStatuses(t *testing.T) {
	t.Parallel()

	actions := []QuoteAction{QuoteCounter, QuoteAccept, QuoteReject, QuoteBuyerOK, QuoteBuyerAbort, QuoteConvert}
	for _, s := range []QuoteStatus{QuoteRejected, QuoteBuyerCancel, QuoteConverted} {
		assert.True(t, s.Terminal())
		for _, a := range actions {
			_, ok := NextQuote(s, a)
			assert.False(t, ok, "%s from terminal %s", a, s)
		}
	}
	assert.False(t, QuotePending.Terminal())
	assert.False(t, QuoteSupplierCounter.Terminal())
}

func TestRoleForQuoteAction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RoleSupplier, RoleForQuoteAction(QuoteCounter))
	assert.Equal(t, RoleSupplier, RoleForQuoteAction(QuoteReject))
	assert.Equal(t, RoleBuyer, RoleForQuoteAction(QuoteConvert))
	assert.Equal(t, RoleBuyer, RoleForQuoteAction(QuoteBuyerAbort))
}

func TestQuoteFinalPrice(t *testing.T) {
	t.Parallel()

	q := Quote{Product: ProductSnapshot{PriceCents: 10000}}
	assert.Equal(t, int64(10000), q.FinalPriceCents())

	counter := int64(9000)
	q.CounterPriceCents = &counter
	assert.Equal(t, int64(9000), q.FinalPriceCents())
}
