package httpx

import "github.com/pasoklink/pasoklink/internal/market"

// cachedStatus is what the status endpoints keep in redis. The party
// ids ride along so a cache hit enforces the same ownership rule as
// the database path; they are never written to the response.
type cachedStatus struct {
	BuyerID    string             `json:"buyer_id"`
	SupplierID string             `json:"supplier_id"`
	Status     string             `json:"status"`
	Meta       *market.StatusMeta `json:"meta,omitempty"`
}

func (c cachedStatus) readableBy(a market.Actor) bool {
	return a.Role == market.RoleAdmin || a.ID == c.BuyerID || a.ID == c.SupplierID
}

type statusResponse struct {
	Status string             `json:"status"`
	Meta   *market.StatusMeta `json:"meta,omitempty"`
}

func (c cachedStatus) response() statusResponse {
	return statusResponse{Status: c.Status, Meta: c.Meta}
}
