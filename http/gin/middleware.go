// Package gin provides Gin-compatible middleware for x402 payment gating.
// It is a thin adapter translating gin.Context to the shared http package,
// which owns all verification and settlement logic.
package gin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	httpx402 "github.com/x402labs/x402-go/http"
)

// ContextPaymentKey is the gin context key under which the verified payment
// payload is stored.
const ContextPaymentKey = "x402_payment"

// NewMiddleware creates a Gin middleware gating routes through the given
// payment server. Verified requests run the handler chain; settlement happens
// at the moment the handler commits a success status. Handler failures
// (status >= 400) skip settlement.
func NewMiddleware(server *httpx402.Server, config *httpx402.MiddlewareConfig) gin.HandlerFunc {
	if config == nil {
		config = &httpx402.MiddlewareConfig{}
	}

	return func(c *gin.Context) {
		reqCtx := httpx402.RequestContext{
			Adapter: httpx402.NewRequestAdapter(c.Request),
			Path:    c.Request.URL.Path,
			Method:  c.Request.Method,
		}

		result := server.ProcessRequest(c.Request.Context(), reqCtx)
		switch result.Type {
		case httpx402.ResultNoPaymentRequired:
			c.Next()
			return

		case httpx402.ResultPaymentError:
			writeGinResponse(c, result.Response)
			c.Abort()
			return
		}

		c.Set(ContextPaymentKey, result.Payload)
		ctx := context.WithValue(c.Request.Context(), httpx402.PaymentContextKey, result.Payload)
		c.Request = c.Request.WithContext(ctx)

		base := c.Writer
		c.Writer = &settlementWriter{
			ResponseWriter: base,
			settle: func() bool {
				if config.VerifyOnly {
					return true
				}
				settle := server.ProcessSettlement(c.Request.Context(), *result.Payload, *result.Requirements)
				if !settle.Success {
					base.Header().Set("Content-Type", "application/json")
					base.WriteHeader(http.StatusPaymentRequired)
					_ = json.NewEncoder(base).Encode(map[string]string{
						"error": "Payment settlement failed: " + settle.ErrorReason,
					})
					return false
				}
				for name, value := range settle.Headers {
					base.Header().Set(name, value)
				}
				return true
			},
		}

		c.Next()
	}
}

// settlementWriter delays settlement to the moment the handler commits its
// status. Error statuses pass through without settling; a failed settlement
// hijacks the response and discards the handler's payload.
type settlementWriter struct {
	gin.ResponseWriter
	settle    func() bool
	committed bool
	hijacked  bool
}

func (w *settlementWriter) WriteHeader(code int) {
	if w.committed {
		return
	}
	w.committed = true

	if code >= 400 {
		w.ResponseWriter.WriteHeader(code)
		return
	}

	if !w.settle() {
		w.hijacked = true
		return
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *settlementWriter) Write(b []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	if w.hijacked {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *settlementWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func writeGinResponse(c *gin.Context, instructions *httpx402.ResponseInstructions) {
	for name, value := range instructions.Headers {
		c.Header(name, value)
	}
	if instructions.IsHTML {
		if body, ok := instructions.Body.(string); ok {
			c.Data(instructions.Status, "text/html; charset=utf-8", []byte(body))
			return
		}
	}
	if instructions.Body == nil {
		c.Status(instructions.Status)
		return
	}
	c.JSON(instructions.Status, instructions.Body)
}
