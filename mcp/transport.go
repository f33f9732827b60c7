package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client/transport"
	mcpproto "github.com/mark3labs/mcp-go/mcp"

	x402 "github.com/x402labs/x402-go"
)

// Transport wraps an MCP transport and pays JSON-RPC 402 errors using an
// x402 payment client. It implements the mcp-go transport.Interface so it
// drops into any mcp-go client.
type Transport struct {
	base     transport.Interface
	payments *x402.Client

	onAttempt x402.PaymentCallback
	onSuccess x402.PaymentCallback
	onFailure x402.PaymentCallback
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBaseTransport replaces the default streamable HTTP transport.
func WithBaseTransport(base transport.Interface) TransportOption {
	return func(t *Transport) { t.base = base }
}

// WithPaymentCallbacks registers payment lifecycle observers.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure x402.PaymentCallback) TransportOption {
	return func(t *Transport) {
		t.onAttempt = onAttempt
		t.onSuccess = onSuccess
		t.onFailure = onFailure
	}
}

// NewTransport builds a paying MCP transport against a server URL.
func NewTransport(serverURL string, payments *x402.Client, opts ...TransportOption) (*Transport, error) {
	t := &Transport{payments: payments}
	for _, opt := range opts {
		opt(t)
	}

	if t.base == nil {
		base, err := transport.NewStreamableHTTP(serverURL)
		if err != nil {
			return nil, fmt.Errorf("create base transport: %w", err)
		}
		t.base = base
	}
	return t, nil
}

// Start implements transport.Interface.
func (t *Transport) Start(ctx context.Context) error {
	return t.base.Start(ctx)
}

// SendRequest implements transport.Interface. A 402 error triggers one
// payment and one retry; any other response passes through.
func (t *Transport) SendRequest(ctx context.Context, req transport.JSONRPCRequest) (*transport.JSONRPCResponse, error) {
	resp, err := t.base.SendRequest(ctx, req)
	if err != nil || resp.Error == nil || resp.Error.Code != 402 {
		return resp, err
	}

	challenge, err := parseChallenge(resp.Error.Data)
	if err != nil {
		return resp, err
	}

	started := time.Now()
	t.fire(t.onAttempt, x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: started,
		Method:    "MCP",
		URL:       challengeResource(challenge),
	})

	payment, err := t.payments.CreatePayment(ctx, *challenge)
	if err != nil {
		t.fire(t.onFailure, x402.PaymentEvent{
			Type:      x402.PaymentEventFailure,
			Timestamp: time.Now(),
			Method:    "MCP",
			URL:       challengeResource(challenge),
			Error:     err,
			Duration:  time.Since(started),
		})
		return resp, err
	}

	paid, err := injectPayment(req, payment)
	if err != nil {
		return resp, err
	}

	retried, err := t.base.SendRequest(ctx, paid)
	event := x402.PaymentEvent{
		Timestamp: time.Now(),
		Method:    "MCP",
		URL:       challengeResource(challenge),
		Network:   payment.Accepted.Network,
		Scheme:    payment.Accepted.Scheme,
		Amount:    payment.Accepted.Amount,
		Asset:     payment.Accepted.Asset,
		Recipient: payment.Accepted.PayTo,
		Duration:  time.Since(started),
	}
	if err != nil || (retried != nil && retried.Error != nil) {
		event.Type = x402.PaymentEventFailure
		if err != nil {
			event.Error = err
		} else {
			event.Error = fmt.Errorf("mcp error %d: %s", retried.Error.Code, retried.Error.Message)
		}
		t.fire(t.onFailure, event)
		return retried, err
	}

	event.Type = x402.PaymentEventSuccess
	if receipt := extractReceipt(retried); receipt != nil {
		event.Transaction = receipt.Transaction
		event.Payer = receipt.Payer
	}
	t.fire(t.onSuccess, event)
	return retried, nil
}

// SendNotification implements transport.Interface.
func (t *Transport) SendNotification(ctx context.Context, notif mcpproto.JSONRPCNotification) error {
	return t.base.SendNotification(ctx, notif)
}

// SetNotificationHandler implements transport.Interface.
func (t *Transport) SetNotificationHandler(handler func(mcpproto.JSONRPCNotification)) {
	t.base.SetNotificationHandler(handler)
}

// Close implements transport.Interface.
func (t *Transport) Close() error {
	return t.base.Close()
}

// GetSessionId implements transport.Interface.
func (t *Transport) GetSessionId() string {
	return t.base.GetSessionId()
}

func (t *Transport) fire(cb x402.PaymentCallback, event x402.PaymentEvent) {
	if cb != nil {
		cb(event)
	}
}

// parseChallenge decodes the PaymentRequired challenge out of a 402 error's
// data field.
func parseChallenge(data interface{}) (*x402.PaymentRequired, error) {
	if data == nil {
		return nil, x402.ErrNoMatchingRequirements
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal error data: %w", err)
	}

	var challenge x402.PaymentRequired
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrMalformedHeader, err)
	}
	if challenge.X402Version != x402.ProtocolVersion && challenge.X402Version != x402.ProtocolVersionLegacy {
		return nil, x402.ErrUnsupportedVersion
	}
	if len(challenge.Accepts) == 0 {
		return nil, x402.ErrNoMatchingRequirements
	}
	return &challenge, nil
}

func challengeResource(challenge *x402.PaymentRequired) string {
	if challenge.Resource != nil {
		return challenge.Resource.URL
	}
	return ""
}

// injectPayment copies the request with the payment placed in params._meta.
func injectPayment(req transport.JSONRPCRequest, payment *x402.PaymentPayload) (transport.JSONRPCRequest, error) {
	params, ok := req.Params.(map[string]interface{})
	if !ok {
		params = make(map[string]interface{})
		if req.Params != nil {
			data, err := json.Marshal(req.Params)
			if err != nil {
				return req, fmt.Errorf("marshal params: %w", err)
			}
			if err := json.Unmarshal(data, &params); err != nil {
				return req, fmt.Errorf("unmarshal params: %w", err)
			}
		}
	}

	meta, ok := params["_meta"].(map[string]interface{})
	if !ok {
		meta = make(map[string]interface{})
	}
	meta[MetaKeyPayment] = payment
	params["_meta"] = meta

	paid := req
	paid.Params = params
	return paid, nil
}

// extractReceipt reads the settlement receipt out of result._meta, or nil.
func extractReceipt(resp *transport.JSONRPCResponse) *x402.SettleResponse {
	if resp == nil || resp.Result == nil {
		return nil
	}
	var result struct {
		Meta map[string]json.RawMessage `json:"_meta"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil
	}
	raw, ok := result.Meta[MetaKeyPaymentResponse]
	if !ok {
		return nil
	}
	var receipt x402.SettleResponse
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil
	}
	return &receipt
}
