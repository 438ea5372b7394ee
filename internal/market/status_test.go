package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOrder_LegalPath(t *testing.T) {
	t.Parallel()

	// placed -> confirmed -> in_transit -> delivered, no skipping
	tr, ok := NextOrder(OrderPlaced, EventAccept)
	require.True(t, ok)
	assert.Equal(t, OrderConfirmed, tr.To)
	assert.Equal(t, RoleSupplier, tr.By)
	assert.False(t, tr.ReleasesStock)

	tr, ok = NextOrder(OrderConfirmed, EventShip)
	require.True(t, ok)
	assert.Equal(t, OrderInTransit, tr.To)

	tr, ok = NextOrder(OrderInTransit, EventDeliver)
	require.True(t, ok)
	assert.Equal(t, OrderDelivered, tr.To)
}

func TestNextOrder_NoSkippingStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from OrderStatus
		ev   OrderEvent
	}{
		{OrderPlaced, EventShip},
		{OrderPlaced, EventDeliver},
		{OrderConfirmed, EventAccept},
		{OrderConfirmed, EventDeliver},
		{OrderConfirmed, EventReject},
		{OrderConfirmed, EventCancel},
		{OrderInTransit, EventShip},
		{OrderInTransit, EventCancel},
	}
	for _, tc := range tests {
		_, ok := NextOrder(tc.from, tc.ev)
		assert.False(t, ok, "%s from %s must be illegal", tc.ev, tc.from)
	}
}

func TestNextOrder_TerminalStatesAcceptNothing(t *testing.T) {
	t.Parallel()

	events := []OrderEvent{EventAccept, EventReject, EventCancel, EventShip, EventDeliver}
	for _, terminal := range []OrderStatus{OrderRejected, OrderDelivered, OrderCancelled} {
		for _, ev := range events {
			_, ok := NextOrder(terminal, ev)
			assert.False(t, ok, "%s from terminal %s", ev, terminal)
		}
	}
}

func TestNextOrder_RejectAndCancelReleaseStock(t *testing.T) {
	t.Parallel()

	tr, ok := NextOrder(OrderPlaced, EventReject)
	require.True(t, ok)
	assert.Equal(t, OrderRejected, tr.To)
	assert.Equal(t, RoleSupplier, tr.By)
	assert.True(t, tr.ReleasesStock)

	tr, ok = NextOrder(OrderPlaced, EventCancel)
	require.True(t, ok)
	assert.Equal(t, OrderCancelled, tr.To)
	assert.Equal(t, RoleBuyer, tr.By)
	assert.True(t, tr.ReleasesStock)
}

func TestTimelineStamp(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	var tl DeliveryTimeline

	tl.Stamp(OrderPlaced, now)
	tl.Stamp(OrderConfirmed, now)
	tl.Stamp(OrderInTransit, now)
	tl.Stamp(OrderDelivered, now)

	require.NotNil(t, tl.PlacedAt)
	require.NotNil(t, tl.ConfirmedAt)
	require.NotNil(t, tl.ShippedAt)
	require.NotNil(t, tl.DeliveredAt)
	assert.Nil(t, tl.RejectedAt)
	assert.Nil(t, tl.CancelledAt)
}

func TestMetaFor_CoversAllStatuses(t *testing.T) {
	t.Parallel()

	all := []OrderStatus{OrderPlaced, OrderConfirmed, OrderRejected, OrderInTransit, OrderDelivered, OrderCancelled}
	for _, s := range all {
		m := MetaFor(s)
		assert.NotEmpty(t, m.Badge, "badge for %s", s)
	}
	assert.Equal(t, 100, MetaFor(OrderDelivered).Progress)
	assert.Equal(t, 0, MetaFor(OrderCancelled).Progress)
}
