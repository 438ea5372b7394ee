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

	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/quotes"
	"github.com/pasoklink/pasoklink/internal/redisx"
)

type QuotesHandler struct {
	Svc   *quotes.Service
	Redis *redis.Client
}

func (h *QuotesHandler) Register(r chi.Router) {
	r.Post("/quotes", h.create)
	r.Get("/quotes", h.list)
	r.Get("/quotes/{id}", h.get)
	r.Get("/quotes/{id}/status", h.status)
	r.Post("/quotes/{id}/counter", h.counter)
	r.Post("/quotes/{id}/accept", h.supplierAccept)
	r.Post("/quotes/{id}/reject", h.reject)
	r.Post("/quotes/{id}/buyer-accept", h.buyerAccept)
	r.Post("/quotes/{id}/cancel", h.buyerCancel)
	r.Post("/quotes/{id}/convert", h.convert)
}

func (h *QuotesHandler) create(w http.ResponseWriter, r *http.Request) {
	var in quotes.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.Svc.Create(ctx, actorFrom(r), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *QuotesHandler) list(w http.ResponseWriter, r *http.Request) {
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

func (h *QuotesHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q, err := h.Svc.Get(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// status is the quote-side polling endpoint, cached the same way the
// order one is and invalidated by the service on every transition.
func (h *QuotesHandler) status(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "id")
	actor := actorFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyQuoteStatus, quoteID)
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

	q, err := h.Svc.Get(ctx, actor, quoteID)
	if err != nil {
		writeErr(w, err)
		return
	}
	cs := cachedStatus{BuyerID: q.BuyerID, SupplierID: q.SupplierID, Status: string(q.Status)}
	if h.Redis != nil {
		if b, err := json.Marshal(cs); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, cs.response())
}

func (h *QuotesHandler) counter(w http.ResponseWriter, r *http.Request) {
	var in quotes.CounterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.Svc.Counter(ctx, actorFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type messageBody struct {
	Message string `json:"message"`
}

func (h *QuotesHandler) supplierAccept(w http.ResponseWriter, r *http.Request) {
	var in messageBody
	_ = json.NewDecoder(r.Body).Decode(&in)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.Svc.Accept(ctx, actorFrom(r), chi.URLParam(r, "id"), in.Message)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuotesHandler) reject(w http.ResponseWriter, r *http.Request) {
	var in messageBody
	_ = json.NewDecoder(r.Body).Decode(&in)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.Svc.Reject(ctx, actorFrom(r), chi.URLParam(r, "id"), in.Message)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuotesHandler) buyerAccept(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.Svc.BuyerAccept(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuotesHandler) buyerCancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := h.Svc.BuyerCancel(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuotesHandler) convert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.Convert(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ord)
}
