package market

import "time"

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated identity performing an operation. Identity
// itself comes from the upstream auth layer; the core only enforces
// ownership and role rules against it.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type ProductStatus string

const (
	ProductPending  ProductStatus = "pending"
	ProductApproved ProductStatus = "approved"
	ProductRejected ProductStatus = "rejected"
)

// Product stock is only ever mutated through the inventory ledger's
// conditional updates, so it can never go negative.
type Product struct {
	ID         string        `json:"id"`
	SupplierID string        `json:"supplier_id"`
	Name       string        `json:"name"`
	PriceCents int64         `json:"price_cents"`
	Unit       string        `json:"unit"`
	Stock      int           `json:"stock"`
	Negotiable bool          `json:"negotiable"`
	Status     ProductStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPendingReview PaymentStatus = "pending_review"
	PaymentCompleted     PaymentStatus = "completed"
	PaymentFailed        PaymentStatus = "failed"
)

// OrderItem is an immutable snapshot taken at order creation; later
// product price or name changes never touch existing orders.
type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Unit           string `json:"unit"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// DeliveryTimeline keeps one nullable timestamp per lifecycle step.
type DeliveryTimeline struct {
	PlacedAt    *time.Time `json:"placed_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type ActivityEntry struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ActorID   string    `json:"actor_id"`
	ActorRole Role      `json:"actor_role"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID                   string           `json:"id"`
	Reference            string           `json:"reference"`
	BuyerID              string           `json:"buyer_id"`
	SupplierID           string           `json:"supplier_id"`
	Items                []OrderItem      `json:"items"`
	TotalCents           int64            `json:"total_cents"`
	Status               OrderStatus      `json:"status"`
	PaymentMethod        string           `json:"payment_method"`
	PaymentStatus        PaymentStatus    `json:"payment_status"`
	PaymentProof         string           `json:"payment_proof,omitempty"`
	StockReserved        bool             `json:"stock_reserved"`
	DeliveryAddress      string           `json:"delivery_address"`
	TrackingNumber       string           `json:"tracking_number,omitempty"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date,omitempty"`
	Timeline             DeliveryTimeline `json:"timeline"`
	Activity             []ActivityEntry  `json:"activity,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// ProductSnapshot is the frozen name/unit/price a quote negotiates
// against, captured when the quote is created.
type ProductSnapshot struct {
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	PriceCents int64  `json:"price_cents"`
}

type Quote struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyer_id"`
	SupplierID        string          `json:"supplier_id"`
	ProductID         string          `json:"product_id"`
	Product           ProductSnapshot `json:"product"`
	QuantityRequested int             `json:"quantity_requested"`
	Notes             string          `json:"notes,omitempty"`
	CounterPriceCents *int64          `json:"counter_price_cents,omitempty"`
	CounterMinimumQty *int            `json:"counter_minimum_qty,omitempty"`
	SupplierMessage   string          `json:"supplier_message,omitempty"`
	Status            QuoteStatus     `json:"status"`
	OrderID           string          `json:"order_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// FinalPriceCents is the effective per-unit price a conversion uses:
// the supplier's counter when one exists, otherwise the frozen snapshot
// price. Live product price is deliberately not consulted.
func (q *Quote) FinalPriceCents() int64 {
	if q.CounterPriceCents != nil {
		return *q.CounterPriceCents
	}
	return q.Product.PriceCents
}

type CartItem struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineTotals computes the snapshot subtotals and order total for a set
// of items. Totals are fixed at creation and never recomputed.
func LineTotals(items []OrderItem) int64 {
	var total int64
	for i := range items {
		items[i].SubtotalCents = items[i].UnitPriceCents * int64(items[i].Quantity)
		total += items[i].SubtotalCents
	}
	return total
}
