package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/pasoklink/pasoklink/internal/invoice"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/orders"
	"github.com/pasoklink/pasoklink/internal/redisx"
)

type OrdersHandler struct {
	Svc   *orders.Service
	Redis *redis.Client
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.place)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/status", h.status)
	r.Get("/orders/{id}/invoice", h.invoice)
	r.Post("/orders/{id}/accept", h.event(market.EventAccept))
	r.Post("/orders/{id}/reject", h.event(market.EventReject))
	r.Post("/orders/{id}/cancel", h.event(market.EventCancel))
	r.Post("/orders/{id}/ship", h.ship)
	r.Post("/orders/{id}/deliver", h.event(market.EventDeliver))
	r.Post("/orders/{id}/payment-proof", h.paymentProof)
	r.Post("/orders/{id}/payment/confirm", h.paymentConfirm)
	r.Post("/orders/{id}/payment/reject", h.paymentReject)
}

func (h *OrdersHandler) place(w http.ResponseWriter, r *http.Request) {
	var in orders.PlaceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.Place(ctx, actorFrom(r), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ord)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Svc.List(ctx, actorFrom(r), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ord, err := h.Svc.Get(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

// status serves the hot polling path from cache, falling back to the
// order row and repriming the cache. The cached entry carries the
// party ids, so a hit applies the same ownership rule as Get.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	actor := actorFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if b, err := h.Redis.Get(ctx, key).Bytes(); err == nil {
			var cs cachedStatus
			if json.Unmarshal(b, &cs) == nil {
				if !cs.readableBy(actor) {
					writeErr(w, market.ErrForbidden)
					return
				}
				writeJSON(w, http.StatusOK, cs.response())
				return
			}
		}
	}

	ord, err := h.Svc.Get(ctx, actor, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	meta := market.MetaFor(ord.Status)
	cs := cachedStatus{
		BuyerID:    ord.BuyerID,
		SupplierID: ord.SupplierID,
		Status:     string(ord.Status),
		Meta:       &meta,
	}
	if h.Redis != nil {
		if b, err := json.Marshal(cs); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, cs.response())
}

func (h *OrdersHandler) event(ev market.OrderEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			ord *market.Order
			err error
		)
		actor, id := actorFrom(r), chi.URLParam(r, "id")
		switch ev {
		case market.EventAccept:
			ord, err = h.Svc.Accept(ctx, actor, id)
		case market.EventReject:
			ord, err = h.Svc.Reject(ctx, actor, id)
		case market.EventCancel:
			ord, err = h.Svc.Cancel(ctx, actor, id)
		case market.EventDeliver:
			ord, err = h.Svc.Deliver(ctx, actor, id)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ord)
	}
}

func (h *OrdersHandler) ship(w http.ResponseWriter, r *http.Request) {
	var in orders.ShipInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.Ship(ctx, actorFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (h *OrdersHandler) paymentProof(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProofRef string `json:"proof_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.SubmitPaymentProof(ctx, actorFrom(r), chi.URLParam(r, "id"), in.ProofRef)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (h *OrdersHandler) paymentConfirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.ConfirmPayment(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (h *OrdersHandler) paymentReject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.RejectPayment(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (h *OrdersHandler) invoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.Get(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	pdf, err := invoice.Render(ord)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=invoice-"+ord.Reference+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
