package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

// tokenMiddleware enforces the shared bearer token required by both
// endpoints, passed as the ?token= query parameter. A mismatch or missing
// token returns 401 Unauthorized.
func tokenMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// requestIDMiddleware tags every response with an opaque per-request
// handle, echoed back in X-Request-Id so a client-reported failure can be
// located in the node's logs.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}
