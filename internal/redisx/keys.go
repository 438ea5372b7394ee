package redisx

import "time"

const (
	// Cache for order status reads: order_status:{order_id} -> {"status": "..."}
	// Invalidated on every state transition.
	KeyOrderStatus = "order_status:%s"

	// Cache for quote status reads: quote_status:{quote_id} -> {"status": "..."}
	KeyQuoteStatus = "quote_status:%s"

	// Dedup for notification delivery: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
