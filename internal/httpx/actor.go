package httpx

import (
	"context"
	"net/http"

	"github.com/pasoklink/pasoklink/internal/market"
)

type ctxKey int

const actorKey ctxKey = iota

// WithActor trusts the identity headers set by the auth gateway in
// front of this service and makes the actor an explicit argument for
// every core operation. Requests without an identity are rejected
// before reaching any handler.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-Id")
		role := market.Role(r.Header.Get("X-User-Role"))
		switch role {
		case market.RoleBuyer, market.RoleSupplier, market.RoleAdmin:
		default:
			writeJSON(w, http.StatusUnauthorized, errBody{Error: "unknown role"})
			return
		}
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errBody{Error: "missing identity"})
			return
		}
		ctx := context.WithValue(r.Context(), actorKey, market.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) market.Actor {
	a, _ := r.Context().Value(actorKey).(market.Actor)
	return a
}
