// Package chi provides Chi-compatible middleware for x402 payment gating.
// Chi middleware uses the stdlib http.Handler signature, so this is a thin
// wrapper over the shared http package middleware with an OPTIONS bypass for
// CORS preflight requests.
package chi

import (
	"net/http"

	httpx402 "github.com/x402labs/x402-go/http"
)

// NewMiddleware creates a Chi-compatible payment middleware. OPTIONS requests
// bypass payment gating so CORS preflights succeed without payment headers.
func NewMiddleware(server *httpx402.Server, config *httpx402.MiddlewareConfig) func(http.Handler) http.Handler {
	inner := httpx402.NewMiddleware(server, config)

	return func(next http.Handler) http.Handler {
		gated := inner(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}
