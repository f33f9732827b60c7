package mcp

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	x402 "github.com/x402labs/x402-go"
)

// The cash scheme is a fake capability used across these tests: two-decimal
// banknotes on the "cash:main" network.

const (
	cashScheme                 = "exact"
	cashNetwork   x402.Network = "cash:main"
	cashFamily    x402.Network = "cash:*"
	cashAsset                  = "note"
	cashRecipient              = "till-7"
)

type cashClient struct{}

func (c *cashClient) Scheme() string        { return cashScheme }
func (c *cashClient) Network() x402.Network { return cashFamily }

func (c *cashClient) CreatePaymentPayload(_ context.Context, requirements x402.PaymentRequirements) (*x402.PaymentPayload, error) {
	return &x402.PaymentPayload{
		Payload: map[string]interface{}{"note": requirements.Amount},
	}, nil
}

type cashServer struct{}

func (s *cashServer) Scheme() string        { return cashScheme }
func (s *cashServer) Network() x402.Network { return cashFamily }

func (s *cashServer) ParsePrice(price x402.Price, network x402.Network) (*x402.AssetAmount, error) {
	return x402.ResolvePrice([]x402.MoneyParser{cashParser}, price, network)
}

func (s *cashServer) EnhancePaymentRequirements(_ context.Context, _ *x402.PaymentRequirements, _ x402.SupportedResponse) error {
	return nil
}

func cashParser(amount decimal.Decimal, network x402.Network) (*x402.AssetAmount, error) {
	if network.Namespace() != "cash" {
		return nil, nil
	}
	units := amount.Shift(2)
	if !units.IsInteger() {
		return nil, fmt.Errorf("%w: cash has two decimals", x402.ErrInvalidPrice)
	}
	return &x402.AssetAmount{Asset: cashAsset, Amount: units.String()}, nil
}

type stubFacilitator struct {
	verifyFn func(payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerifyResponse, error)
	settleFn func(payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettleResponse, error)

	verifyCalls int
	settleCalls int
}

func (f *stubFacilitator) Verify(_ context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	f.verifyCalls++
	if f.verifyFn != nil {
		return f.verifyFn(payload, requirements)
	}
	return &x402.VerifyResponse{IsValid: true, Payer: "customer-1"}, nil
}

func (f *stubFacilitator) Settle(_ context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettleResponse, error) {
	f.settleCalls++
	if f.settleFn != nil {
		return f.settleFn(payload, requirements)
	}
	return &x402.SettleResponse{
		Success:     true,
		Payer:       "customer-1",
		Transaction: "receipt-42",
		Network:     requirements.Network,
	}, nil
}

func (f *stubFacilitator) GetSupported(_ context.Context) (x402.SupportedResponse, error) {
	return x402.SupportedResponse{
		Kinds: []x402.SupportedKind{
			{X402Version: x402.ProtocolVersion, Scheme: cashScheme, Network: cashFamily},
		},
	}, nil
}

// cashRequirements mirrors what the payments engine builds for a $1.50 tool.
func cashRequirements() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            cashScheme,
		Network:           cashNetwork,
		Asset:             cashAsset,
		Amount:            "150",
		PayTo:             cashRecipient,
		MaxTimeoutSeconds: x402.DefaultMaxTimeoutSeconds,
	}
}

func cashPayload(accepted x402.PaymentRequirements) *x402.PaymentPayload {
	return &x402.PaymentPayload{
		X402Version: x402.ProtocolVersion,
		Payload:     map[string]interface{}{"note": accepted.Amount},
		Accepted:    accepted,
	}
}

// newForecastServer builds a payment-gated MCP server with one payable tool
// named "forecast" priced at $1.50, plus a stub base handler the payment
// handler forwards to.
func newForecastServer(t *testing.T, facilitator x402.FacilitatorClient, opts ...ServerOption) *Server {
	t.Helper()

	payments := x402.NewResourceServer(x402.WithFacilitatorClient(facilitator))
	payments.Register(&cashServer{})

	s := NewServer("weather", "1.0.0", payments, opts...)

	tool := mcpproto.NewTool("forecast")
	handler := func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		return mcpproto.NewToolResultText("sunny"), nil
	}
	err := s.AddPayableTool(tool, handler, x402.ResourceConfig{
		Scheme:  cashScheme,
		PayTo:   cashRecipient,
		Price:   "$1.50",
		Network: cashNetwork,
	})
	if err != nil {
		t.Fatalf("AddPayableTool() error = %v", err)
	}
	return s
}

// stubBase stands in for the mcp-go streamable HTTP server.
type stubBase struct {
	calls   int
	respond http.HandlerFunc
}

func (b *stubBase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.calls++
	if b.respond != nil {
		b.respond(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"sunny"}]}}`))
}
