package x402

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// The cash scheme is a fake capability used across tests: two-decimal
// banknotes on the "cash:main" network, verified by comparing the payload's
// note value to the required amount.

const (
	cashScheme            = "exact"
	cashNetwork   Network = "cash:main"
	cashFamily    Network = "cash:*"
	cashAsset             = "note"
	cashRecipient         = "till-7"
)

type cashClient struct {
	failWith error
}

func (c *cashClient) Scheme() string   { return cashScheme }
func (c *cashClient) Network() Network { return cashFamily }

func (c *cashClient) CreatePaymentPayload(_ context.Context, requirements PaymentRequirements) (*PaymentPayload, error) {
	if c.failWith != nil {
		return nil, c.failWith
	}
	return &PaymentPayload{
		Payload: map[string]interface{}{"note": requirements.Amount},
	}, nil
}

type cashServer struct{}

func (s *cashServer) Scheme() string   { return cashScheme }
func (s *cashServer) Network() Network { return cashFamily }

func (s *cashServer) ParsePrice(price Price, network Network) (*AssetAmount, error) {
	return ResolvePrice([]MoneyParser{cashParser}, price, network)
}

func (s *cashServer) EnhancePaymentRequirements(_ context.Context, requirements *PaymentRequirements, supported SupportedResponse) error {
	for _, kind := range supported.Kinds {
		if kind.Scheme == cashScheme && requirements.Network.Match(kind.Network) {
			if till, ok := kind.Extra["till"].(string); ok {
				if requirements.Extra == nil {
					requirements.Extra = map[string]interface{}{}
				}
				requirements.Extra["till"] = till
			}
		}
	}
	return nil
}

// cashParser converts dollars to two-decimal cash units.
func cashParser(amount decimal.Decimal, network Network) (*AssetAmount, error) {
	if network.Namespace() != "cash" {
		return nil, nil
	}
	units := amount.Shift(2)
	if !units.IsInteger() {
		return nil, fmt.Errorf("%w: cash has two decimals", ErrInvalidPrice)
	}
	return &AssetAmount{Asset: cashAsset, Amount: units.String()}, nil
}

type cashFacilitator struct {
	signers     []string
	verifyCalls int
	settleCalls int
}

func (f *cashFacilitator) Scheme() string     { return cashScheme }
func (f *cashFacilitator) Network() Network   { return cashFamily }
func (f *cashFacilitator) CaipFamily() string { return "cash" }

func (f *cashFacilitator) Verify(_ context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error) {
	f.verifyCalls++
	note, _ := payload.Payload["note"].(string)
	if note != requirements.Amount {
		return &VerifyResponse{IsValid: false, InvalidReason: "wrong note value"}, nil
	}
	return &VerifyResponse{IsValid: true, Payer: "customer-1"}, nil
}

func (f *cashFacilitator) Settle(_ context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error) {
	f.settleCalls++
	return &SettleResponse{
		Success:     true,
		Payer:       "customer-1",
		Transaction: "receipt-42",
		Network:     requirements.Network,
	}, nil
}

func (f *cashFacilitator) GetExtra(Network) map[string]interface{} {
	return map[string]interface{}{"till": cashRecipient}
}

func (f *cashFacilitator) GetSigners(Network) []string { return f.signers }

// mockFacilitatorClient is a scriptable FacilitatorClient with call counts.
type mockFacilitatorClient struct {
	verifyFn    func(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error)
	settleFn    func(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error)
	supportedFn func(ctx context.Context) (SupportedResponse, error)

	verifyCalls    int
	settleCalls    int
	supportedCalls int
}

func (m *mockFacilitatorClient) Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error) {
	m.verifyCalls++
	if m.verifyFn != nil {
		return m.verifyFn(ctx, payload, requirements)
	}
	return &VerifyResponse{IsValid: true}, nil
}

func (m *mockFacilitatorClient) Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error) {
	m.settleCalls++
	if m.settleFn != nil {
		return m.settleFn(ctx, payload, requirements)
	}
	return &SettleResponse{Success: true, Network: requirements.Network}, nil
}

func (m *mockFacilitatorClient) GetSupported(ctx context.Context) (SupportedResponse, error) {
	m.supportedCalls++
	if m.supportedFn != nil {
		return m.supportedFn(ctx)
	}
	return SupportedResponse{
		Kinds: []SupportedKind{
			{X402Version: ProtocolVersion, Scheme: cashScheme, Network: cashFamily},
		},
	}, nil
}

// cashRequirements builds a ready requirement for direct use in tests.
func cashRequirements(amount string) PaymentRequirements {
	return PaymentRequirements{
		Scheme:            cashScheme,
		Network:           cashNetwork,
		Asset:             cashAsset,
		Amount:            amount,
		PayTo:             cashRecipient,
		MaxTimeoutSeconds: 60,
	}
}
