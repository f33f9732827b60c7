package http

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
)

// The cash scheme is a fake capability used across these tests: two-decimal
// banknotes on the "cash:main" network, verified by comparing the payload's
// note value to the required amount.

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

// stubFacilitator is an in-process x402.FacilitatorClient with injectable
// behavior and call counters.
type stubFacilitator struct {
	verifyFn    func(payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerifyResponse, error)
	settleFn    func(payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettleResponse, error)
	supportedFn func() (x402.SupportedResponse, error)

	verifyCalls    int
	settleCalls    int
	supportedCalls int
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
	f.supportedCalls++
	if f.supportedFn != nil {
		return f.supportedFn()
	}
	return x402.SupportedResponse{
		Kinds: []x402.SupportedKind{
			{X402Version: x402.ProtocolVersion, Scheme: cashScheme, Network: cashFamily},
		},
	}, nil
}

// cashNoteFacilitator is a SchemeNetworkFacilitator that accepts a payment
// when the payload's note covers the required amount.
type cashNoteFacilitator struct{}

func (f *cashNoteFacilitator) Scheme() string        { return cashScheme }
func (f *cashNoteFacilitator) Network() x402.Network { return cashFamily }
func (f *cashNoteFacilitator) CaipFamily() string    { return "cash" }

func (f *cashNoteFacilitator) Verify(_ context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	note, ok := payload.Payload["note"].(string)
	if !ok || note != requirements.Amount {
		return &x402.VerifyResponse{IsValid: false, InvalidReason: "note does not cover the amount"}, nil
	}
	return &x402.VerifyResponse{IsValid: true, Payer: "customer-1"}, nil
}

func (f *cashNoteFacilitator) Settle(_ context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettleResponse, error) {
	result, err := f.Verify(context.Background(), payload, requirements)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return &x402.SettleResponse{Success: false, ErrorReason: result.InvalidReason}, nil
	}
	return &x402.SettleResponse{
		Success:     true,
		Payer:       result.Payer,
		Transaction: "receipt-42",
		Network:     requirements.Network,
	}, nil
}

func (f *cashNoteFacilitator) GetExtra(_ x402.Network) map[string]interface{} { return nil }
func (f *cashNoteFacilitator) GetSigners(_ x402.Network) []string             { return []string{cashRecipient} }

// cashRoutes gates GET /api/* behind a $1.50 cash payment.
func cashRoutes() RoutesConfig {
	return RoutesConfig{
		"GET /api/*": {
			Accepts: []PaymentOption{
				{Scheme: cashScheme, PayTo: cashRecipient, Price: "$1.50", Network: cashNetwork},
			},
		},
	}
}

func newCashServer(t *testing.T, routes RoutesConfig, facilitator x402.FacilitatorClient, httpOpts ...ServerOption) *Server {
	t.Helper()
	server := NewServer(routes, []x402.ResourceServerOption{
		x402.WithFacilitatorClient(facilitator),
	}, httpOpts...)
	server.Register(&cashServer{})
	return server
}

// cashRequirements mirrors what the server builds for cashRoutes.
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

func cashPayload(accepted x402.PaymentRequirements) x402.PaymentPayload {
	return x402.PaymentPayload{
		X402Version: x402.ProtocolVersion,
		Payload:     map[string]interface{}{"note": accepted.Amount},
		Accepted:    accepted,
	}
}

func cashPaymentHeader(t *testing.T, accepted x402.PaymentRequirements) string {
	t.Helper()
	header, err := encoding.EncodePayment(cashPayload(accepted))
	if err != nil {
		t.Fatalf("EncodePayment() error = %v", err)
	}
	return header
}
