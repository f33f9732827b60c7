// Package pocketbase provides PocketBase-compatible middleware for x402
// payment gating. Bind the returned function to a route or group with
// BindFunc; payment logic lives in the shared http package.
package pocketbase

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	httpx402 "github.com/x402labs/x402-go/http"
)

// EventPaymentKey is the request event store key under which the verified
// payment payload is stored.
const EventPaymentKey = "x402_payment"

// NewMiddleware creates a PocketBase route middleware gating requests through
// the given payment server. Settlement runs when the handler commits a
// success status; handler errors skip settlement.
func NewMiddleware(server *httpx402.Server, config *httpx402.MiddlewareConfig) func(*core.RequestEvent) error {
	if config == nil {
		config = &httpx402.MiddlewareConfig{}
	}

	return func(e *core.RequestEvent) error {
		reqCtx := httpx402.RequestContext{
			Adapter: httpx402.NewRequestAdapter(e.Request),
			Path:    e.Request.URL.Path,
			Method:  e.Request.Method,
		}

		result := server.ProcessRequest(e.Request.Context(), reqCtx)
		switch result.Type {
		case httpx402.ResultNoPaymentRequired:
			return e.Next()

		case httpx402.ResultPaymentError:
			return writeEventResponse(e, result.Response)
		}

		e.Set(EventPaymentKey, result.Payload)
		ctx := context.WithValue(e.Request.Context(), httpx402.PaymentContextKey, result.Payload)
		e.Request = e.Request.WithContext(ctx)

		base := e.Response
		e.Response = httpx402.NewSettlementWriter(base, func() bool {
			if config.VerifyOnly {
				return true
			}
			settle := server.ProcessSettlement(e.Request.Context(), *result.Payload, *result.Requirements)
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
		})

		return e.Next()
	}
}

func writeEventResponse(e *core.RequestEvent, instructions *httpx402.ResponseInstructions) error {
	for name, value := range instructions.Headers {
		e.Response.Header().Set(name, value)
	}
	if instructions.IsHTML {
		if body, ok := instructions.Body.(string); ok {
			return e.HTML(instructions.Status, body)
		}
	}
	if instructions.Body == nil {
		return e.NoContent(instructions.Status)
	}
	return e.JSON(instructions.Status, instructions.Body)
}
