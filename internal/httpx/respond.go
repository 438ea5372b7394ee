package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pasoklink/pasoklink/internal/market"
)

type errBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain taxonomy onto HTTP codes. Anything outside
// the taxonomy is an internal error and not echoed to the client.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, market.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, market.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, market.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, market.ErrInsufficientStock):
		code = http.StatusConflict
	case errors.Is(err, market.ErrInvalidQuantity),
		errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidInput),
		errors.Is(err, market.ErrMissingDeliveryAddress):
		code = http.StatusBadRequest
	case errors.Is(err, market.ErrCrossSupplierCart),
		errors.Is(err, market.ErrNotNegotiable):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeJSON(w, code, errBody{Error: "internal error"})
		return
	}
	writeJSON(w, code, errBody{Error: err.Error(), Retryable: market.Retryable(err)})
}
