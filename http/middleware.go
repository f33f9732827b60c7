package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	x402 "github.com/x402labs/x402-go"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PaymentContextKey is the context key under which the verified payment
// payload is stored for handler access.
const PaymentContextKey = contextKey("x402_payment")

// MiddlewareConfig tunes the net/http middleware.
type MiddlewareConfig struct {
	// VerifyOnly skips settlement; payments are verified but never executed.
	VerifyOnly bool
}

// PaymentFromContext returns the verified payment payload stored by the
// middleware, or nil when the request was not payment-gated.
func PaymentFromContext(ctx context.Context) *x402.PaymentPayload {
	payload, _ := ctx.Value(PaymentContextKey).(*x402.PaymentPayload)
	return payload
}

// NewMiddleware wraps handlers with payment gating. Requests to gated routes
// without a valid payment get a 402 challenge; verified requests run the
// handler, and settlement happens at the moment the handler commits a
// success status. Handler failures (status >= 400) skip settlement entirely.
func NewMiddleware(server *Server, config *MiddlewareConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = &MiddlewareConfig{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := RequestContext{
				Adapter: NewRequestAdapter(r),
				Path:    r.URL.Path,
				Method:  r.Method,
			}

			result := server.ProcessRequest(r.Context(), reqCtx)
			switch result.Type {
			case ResultNoPaymentRequired:
				next.ServeHTTP(w, r)
				return

			case ResultPaymentError:
				WriteResponse(w, result.Response)
				return
			}

			// Payment verified. Expose it to the handler and defer
			// settlement until the handler commits success.
			r = r.WithContext(context.WithValue(r.Context(), PaymentContextKey, result.Payload))

			interceptor := &settlementInterceptor{
				w: w,
				settleFunc: func() bool {
					if config.VerifyOnly {
						return true
					}

					settle := server.ProcessSettlement(r.Context(), *result.Payload, *result.Requirements)
					if !settle.Success {
						writeSettlementFailure(w, settle)
						return false
					}
					for name, value := range settle.Headers {
						w.Header().Set(name, value)
					}
					return true
				},
			}
			next.ServeHTTP(interceptor, r)
		})
	}
}

// WriteResponse writes response instructions to a net/http ResponseWriter.
func WriteResponse(w http.ResponseWriter, instructions *ResponseInstructions) {
	for name, value := range instructions.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(instructions.Status)
	if instructions.Body == nil {
		return
	}
	if instructions.IsHTML {
		if body, ok := instructions.Body.(string); ok {
			_, _ = w.Write([]byte(body))
			return
		}
	}
	_ = json.NewEncoder(w).Encode(instructions.Body)
}

func writeSettlementFailure(w http.ResponseWriter, settle *SettleResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "Payment settlement failed: " + settle.ErrorReason,
	})
}

// NewSettlementWriter wraps a ResponseWriter so that settleFunc runs at the
// moment a success status is committed. Error statuses pass through without
// settling. When settleFunc returns false it must already have written an
// error response; the handler's own output is then discarded. Framework
// adapters that expose a raw ResponseWriter use this to keep the
// settle-on-success ordering.
func NewSettlementWriter(w http.ResponseWriter, settleFunc func() bool) http.ResponseWriter {
	return &settlementInterceptor{w: w, settleFunc: settleFunc}
}

// settlementInterceptor wraps the ResponseWriter to intercept the moment the
// handler commits a response status.
type settlementInterceptor struct {
	w http.ResponseWriter
	// settleFunc performs settlement; returning false means it already wrote
	// an error response and the handler's output must be discarded.
	settleFunc func() bool
	committed  bool
	hijacked   bool
}

func (i *settlementInterceptor) Header() http.Header {
	return i.w.Header()
}

func (i *settlementInterceptor) Write(b []byte) (int, error) {
	// A Write without WriteHeader implies 200 OK.
	if !i.committed {
		i.WriteHeader(http.StatusOK)
	}

	// Settlement failed and the error response is already on the wire.
	// Discard the handler's payload to avoid a mixed response.
	if i.hijacked {
		return len(b), nil
	}

	return i.w.Write(b)
}

func (i *settlementInterceptor) WriteHeader(statusCode int) {
	if i.committed {
		return
	}
	i.committed = true

	// Handler errors pass through untouched; no settlement.
	if statusCode >= 400 {
		i.w.WriteHeader(statusCode)
		return
	}

	if !i.settleFunc() {
		i.hijacked = true
		return
	}

	i.w.WriteHeader(statusCode)
}

// Flush implements http.Flusher to support streaming responses.
func (i *settlementInterceptor) Flush() {
	if flusher, ok := i.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker to support connection hijacking.
func (i *settlementInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := i.w.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("hijacking not supported")
}

// Push implements http.Pusher to support HTTP/2 server push.
func (i *settlementInterceptor) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := i.w.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}
