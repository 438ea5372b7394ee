package market

import "time"

type OrderStatus string

const (
	OrderPlaced    OrderStatus = "placed"
	OrderConfirmed OrderStatus = "confirmed"
	OrderRejected  OrderStatus = "rejected"
	OrderInTransit OrderStatus = "in_transit"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type OrderEvent string

const (
	EventAccept  OrderEvent = "accept"
	EventReject  OrderEvent = "reject"
	EventCancel  OrderEvent = "cancel"
	EventShip    OrderEvent = "ship"
	EventDeliver OrderEvent = "deliver"
)

// OrderTransition describes one legal edge of the order lifecycle.
type OrderTransition struct {
	To            OrderStatus
	By            Role // role allowed to fire the event, ownership checked separately
	ReleasesStock bool // reject/cancel hand reserved stock back to the ledger
	Message       string
}

var orderTransitions = map[OrderStatus]map[OrderEvent]OrderTransition{
	OrderPlaced: {
		EventAccept: {To: OrderConfirmed, By: RoleSupplier, Message: "Order confirmed by supplier"},
		EventReject: {To: OrderRejected, By: RoleSupplier, ReleasesStock: true, Message: "Order rejected by supplier"},
		EventCancel: {To: OrderCancelled, By: RoleBuyer, ReleasesStock: true, Message: "Order cancelled by buyer"},
	},
	OrderConfirmed: {
		EventShip: {To: OrderInTransit, By: RoleSupplier, Message: "Order shipped"},
	},
	OrderInTransit: {
		EventDeliver: {To: OrderDelivered, By: RoleSupplier, Message: "Order delivered"},
	},
}

// NextOrder resolves an event against the transition table. The second
// return is false for any (state, event) pair that is not a legal edge,
// which includes every event fired from a terminal state.
func NextOrder(from OrderStatus, ev OrderEvent) (OrderTransition, bool) {
	t, ok := orderTransitions[from][ev]
	return t, ok
}

// Stamp records the arrival timestamp of a status on the timeline.
func (tl *DeliveryTimeline) Stamp(to OrderStatus, now time.Time) {
	switch to {
	case OrderPlaced:
		tl.PlacedAt = &now
	case OrderConfirmed:
		tl.ConfirmedAt = &now
	case OrderRejected:
		tl.RejectedAt = &now
	case OrderInTransit:
		tl.ShippedAt = &now
	case OrderDelivered:
		tl.DeliveredAt = &now
	case OrderCancelled:
		tl.CancelledAt = &now
	}
}

// StatusMeta is display metadata keyed by the closed status enum, used
// by clients for badges and progress bars.
type StatusMeta struct {
	Badge    string `json:"badge"`
	Progress int    `json:"progress"`
}

var orderStatusMeta = map[OrderStatus]StatusMeta{
	OrderPlaced:    {Badge: "blue", Progress: 25},
	OrderConfirmed: {Badge: "indigo", Progress: 50},
	OrderInTransit: {Badge: "orange", Progress: 75},
	OrderDelivered: {Badge: "green", Progress: 100},
	OrderRejected:  {Badge: "red", Progress: 0},
	OrderCancelled: {Badge: "gray", Progress: 0},
}

func MetaFor(s OrderStatus) StatusMeta {
	return orderStatusMeta[s]
}
