package api

import (
	"context"
	"net/http"

	"github.com/bookwise/webhook-service/internal/auth"
)

type contextKey string

const callerKey contextKey = "caller"

// requireCaller rejects requests that arrive without the gateway identity
// headers and stashes the caller in the request context.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := auth.CallerFromRequest(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "missing caller identity")
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(r *http.Request) auth.Caller {
	caller, _ := r.Context().Value(callerKey).(auth.Caller)
	return caller
}
