package x402

import (
	"context"

	"github.com/shopspring/decimal"
)

// SchemeNetworkClient creates signed payment payloads for one
// (scheme, network family) combination. Implementations hold whatever key
// material the scheme needs.
type SchemeNetworkClient interface {
	// Scheme returns the payment scheme this client implements.
	Scheme() string

	// Network returns the network or network family this client serves.
	// A wildcard such as "eip155:*" covers every chain in the namespace.
	Network() Network

	// CreatePaymentPayload produces the scheme-specific payload for the
	// given requirements. The orchestrator stamps version, accepted
	// requirements and resource onto the result.
	CreatePaymentPayload(ctx context.Context, requirements PaymentRequirements) (*PaymentPayload, error)
}

// SchemeNetworkServer converts human prices into scheme-specific payment
// requirements on the resource-server side.
type SchemeNetworkServer interface {
	// Scheme returns the payment scheme this server implements.
	Scheme() string

	// Network returns the network or network family this server serves.
	Network() Network

	// ParsePrice converts a price (string, AssetAmount, or numeric) into an
	// asset and smallest-unit amount for the given network.
	ParsePrice(price Price, network Network) (*AssetAmount, error)

	// EnhancePaymentRequirements fills scheme-specific fields (signature
	// domains, fee payers) on requirements built from a ResourceConfig.
	EnhancePaymentRequirements(ctx context.Context, requirements *PaymentRequirements, supported SupportedResponse) error
}

// SchemeNetworkFacilitator validates and executes payments for one
// (scheme, network family) combination.
type SchemeNetworkFacilitator interface {
	// Scheme returns the payment scheme this facilitator implements.
	Scheme() string

	// Network returns the network or network family this facilitator serves.
	Network() Network

	// CaipFamily returns the CAIP-2 namespace ("eip155", "solana") used to
	// group signer addresses in the supported response.
	CaipFamily() string

	// Verify checks a payment payload against requirements without moving
	// funds. A semantic rejection returns IsValid=false with a reason and a
	// nil error.
	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error)

	// Settle executes the payment on chain. A failed settlement returns
	// Success=false with an error reason and a nil error.
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error)

	// GetExtra returns scheme metadata advertised in the supported
	// response, or nil.
	GetExtra(network Network) map[string]interface{}

	// GetSigners returns the signer addresses this facilitator settles
	// with on the given network.
	GetSigners(network Network) []string
}

// FacilitatorClient is the resource server's view of a facilitator, local or
// remote. The HTTP implementation lives in the http package; Facilitator in
// this package composes SchemeNetworkFacilitator values into a local one.
type FacilitatorClient interface {
	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error)
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error)
	GetSupported(ctx context.Context) (SupportedResponse, error)
}

// MoneyParser converts a decimal money amount into an asset and
// smallest-unit amount for a network. Returning (nil, nil) passes the amount
// to the next parser in the chain.
type MoneyParser func(amount decimal.Decimal, network Network) (*AssetAmount, error)
