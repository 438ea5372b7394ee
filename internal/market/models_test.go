package market

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTotals(t *testing.T) {
	t.Parallel()

	items := []OrderItem{
		{UnitPriceCents: 9000, Quantity: 5},
		{UnitPriceCents: 2500, Quantity: 2},
	}
	total := LineTotals(items)

	assert.Equal(t, int64(45000), items[0].SubtotalCents)
	assert.Equal(t, int64(5000), items[1].SubtotalCents)
	assert.Equal(t, int64(50000), total)

	// total always equals the sum of subtotals
	var sum int64
	for _, it := range items {
		sum += it.SubtotalCents
	}
	assert.Equal(t, sum, total)
}

func TestLineTotals_SingleLineQuoteConversion(t *testing.T) {
	t.Parallel()

	// countered quote: 5 units at 90.00
	items := []OrderItem{{UnitPriceCents: 9000, Quantity: 5}}
	total := LineTotals(items)
	assert.Equal(t, int64(45000), items[0].SubtotalCents)
	assert.Equal(t, int64(45000), total)
}

func TestNewOrderReference(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	ref := NewOrderReference(now)

	require.True(t, strings.HasPrefix(ref, "PO-20260829-"), ref)
	assert.Len(t, ref, len("PO-20260829-")+8)
	assert.NotEqual(t, ref, NewOrderReference(now))
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, Retryable(ErrInsufficientStock))
	assert.True(t, Retryable(ErrMissingDeliveryAddress))
	assert.False(t, Retryable(ErrForbidden))
	assert.False(t, Retryable(ErrInvalidTransition))
	assert.False(t, Retryable(ErrNotNegotiable))
}
