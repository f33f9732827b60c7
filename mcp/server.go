package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/logger"
)

// Server is an MCP server whose tools can require payment. Free tools pass
// straight through; payable tools are declared with resource configs and
// enforced by the HTTP handler.
type Server struct {
	mcpServer  *mcpserver.MCPServer
	payments   *x402.ResourceServer
	tools      map[string][]x402.ResourceConfig
	timeouts   x402.TimeoutConfig
	verifyOnly bool
	log        logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithVerifyOnly verifies payments without settling them. The receipt in
// result._meta reports Success=false to signal settlement was skipped.
func WithVerifyOnly() ServerOption {
	return func(s *Server) { s.verifyOnly = true }
}

// WithTimeouts overrides the verify and settle deadlines.
func WithTimeouts(timeouts x402.TimeoutConfig) ServerOption {
	return func(s *Server) { s.timeouts = timeouts }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer builds a payment-gated MCP server on top of a resource server.
func NewServer(name, version string, payments *x402.ResourceServer, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(name, version),
		payments:  payments,
		tools:     make(map[string][]x402.ResourceConfig),
		timeouts:  x402.DefaultTimeouts,
		log:       logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTool registers a free tool.
func (s *Server) AddTool(tool mcpproto.Tool, handler mcpserver.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
}

// AddPayableTool registers a tool that requires payment before execution.
// At least one resource config is required.
func (s *Server) AddPayableTool(tool mcpproto.Tool, handler mcpserver.ToolHandlerFunc, configs ...x402.ResourceConfig) error {
	if len(configs) == 0 {
		return fmt.Errorf("payable tool %s needs at least one resource config", tool.Name)
	}
	s.tools[tool.Name] = configs
	s.mcpServer.AddTool(tool, handler)
	return nil
}

// Handler returns the streamable HTTP handler with payment enforcement on
// tools/call requests.
func (s *Server) Handler() http.Handler {
	return &paymentHandler{
		base:   mcpserver.NewStreamableHTTPServer(s.mcpServer),
		server: s,
	}
}

// paymentHandler intercepts tools/call JSON-RPC requests and enforces
// payment before forwarding them to the MCP server.
type paymentHandler struct {
	base   http.Handler
	server *Server
}

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

func (h *paymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only POST carries JSON-RPC calls.
	if r.Method != http.MethodPost {
		h.base.ServeHTTP(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, nil, -32700, "Parse error", nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var req jsonrpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, -32700, "Parse error", nil)
		return
	}
	if req.Method != "tools/call" {
		h.base.ServeHTTP(w, r)
		return
	}

	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, -32602, "Invalid params", nil)
		return
	}

	configs, gated := h.server.tools[params.Name]
	if !gated {
		h.base.ServeHTTP(w, r)
		return
	}

	requirements, err := h.server.payments.BuildRequirements(r.Context(), configs...)
	if err != nil {
		h.server.log.Error("build requirements failed", map[string]any{"tool": params.Name, "error": err.Error()})
		writeError(w, req.ID, -32603, "Internal error", nil)
		return
	}
	resource := &x402.ResourceInfo{URL: toolResource(params.Name)}

	payment := extractPayment(req.Params)
	if payment == nil {
		challenge := h.server.payments.CreateChallenge(requirements, resource, "Payment required to call this tool")
		writeError(w, req.ID, http.StatusPaymentRequired, "Payment required", challenge)
		return
	}

	matched := h.server.payments.FindMatchingRequirements(requirements, *payment)
	if matched == nil {
		challenge := h.server.payments.CreateChallenge(requirements, resource, "Payment does not match any accepted requirements")
		writeError(w, req.ID, http.StatusPaymentRequired, "Payment invalid", challenge)
		return
	}

	verifyCtx, cancel := context.WithTimeout(r.Context(), h.server.timeouts.VerifyTimeout)
	verifyResp, err := h.server.payments.VerifyPayment(verifyCtx, *payment, *matched)
	cancel()
	if err != nil {
		writeError(w, req.ID, -32603, fmt.Sprintf("Verification failed: %v", err), nil)
		return
	}
	if !verifyResp.IsValid {
		challenge := h.server.payments.CreateChallenge(requirements, resource, verifyResp.InvalidReason)
		writeError(w, req.ID, http.StatusPaymentRequired, "Payment invalid: "+verifyResp.InvalidReason, challenge)
		return
	}

	h.forwardAndSettle(w, r, body, req.ID, *payment, *matched, verifyResp)
}

// forwardAndSettle runs the tool and settles the payment only when the tool
// call succeeded. The settlement receipt is injected into result._meta so
// the client can read the transaction hash.
func (h *paymentHandler) forwardAndSettle(w http.ResponseWriter, r *http.Request, body []byte, id interface{}, payment x402.PaymentPayload, matched x402.PaymentRequirements, verifyResp *x402.VerifyResponse) {
	recorder := &responseRecorder{header: make(http.Header), status: http.StatusOK}
	r.Body = io.NopCloser(bytes.NewReader(body))
	h.base.ServeHTTP(recorder, r)

	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   interface{}     `json:"error,omitempty"`
		ID      interface{}     `json:"id"`
	}
	if err := json.Unmarshal(recorder.body.Bytes(), &resp); err != nil || resp.Error != nil {
		// Tool failed or the response is opaque. No settlement; forward
		// whatever the MCP server produced.
		recorder.copyTo(w)
		return
	}

	receipt := &x402.SettleResponse{
		Success: false,
		Network: matched.Network,
		Payer:   verifyResp.Payer,
	}
	if !h.server.verifyOnly {
		settleCtx, cancel := context.WithTimeout(r.Context(), h.server.timeouts.SettleTimeout)
		settleResp, err := h.server.payments.SettlePayment(settleCtx, payment, matched)
		cancel()
		if err != nil || !settleResp.Success {
			reason := "settlement failed"
			if err != nil {
				reason = err.Error()
			} else if settleResp.ErrorReason != "" {
				reason = settleResp.ErrorReason
			}
			receipt.ErrorReason = reason
			writeError(w, id, -32603, "Settlement failed: "+reason, map[string]interface{}{
				MetaKeyPaymentResponse: receipt,
			})
			return
		}
		receipt = settleResp
	}

	if resp.Result != nil {
		var result map[string]interface{}
		if err := json.Unmarshal(resp.Result, &result); err == nil {
			meta, ok := result["_meta"].(map[string]interface{})
			if !ok {
				meta = make(map[string]interface{})
			}
			meta[MetaKeyPaymentResponse] = receipt
			result["_meta"] = meta
			if modified, err := json.Marshal(result); err == nil {
				resp.Result = modified
			}
		}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	for k, v := range recorder.header {
		w.Header()[k] = v
	}
	w.WriteHeader(recorder.status)
	_, _ = w.Write(out)
}

// extractPayment pulls the payment payload from params._meta, or nil when
// the request carries none.
func extractPayment(params json.RawMessage) *x402.PaymentPayload {
	var envelope struct {
		Meta map[string]interface{} `json:"_meta"`
	}
	if err := json.Unmarshal(params, &envelope); err != nil {
		return nil
	}
	raw, ok := envelope.Meta[MetaKeyPayment]
	if !ok {
		return nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var payment x402.PaymentPayload
	if err := json.Unmarshal(data, &payment); err != nil {
		return nil
	}
	return &payment
}

// writeError writes a JSON-RPC error. JSON-RPC errors ride on HTTP 200.
func writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		errObj["data"] = data
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   errObj,
	})
}

// responseRecorder buffers the MCP server's response so the settlement
// receipt can be stitched into the result before it reaches the wire.
type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

func (r *responseRecorder) WriteHeader(status int) { r.status = status }

func (r *responseRecorder) copyTo(w http.ResponseWriter) {
	for k, v := range r.header {
		w.Header()[k] = v
	}
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body.Bytes())
}
