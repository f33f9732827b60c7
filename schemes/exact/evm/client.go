// Package evm implements the "exact" payment scheme for EVM chains.
//
// Client-side it signs EIP-3009 transferWithAuthorization messages with
// EIP-712, producing payloads a facilitator can submit without holding the
// payer's key. Server-side it converts prices into USDC payment requirements
// and stamps the EIP-712 signing domain onto them.
package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/x402labs/x402-go"
)

// SchemeName identifies the exact payment scheme.
const SchemeName = "exact"

// Client signs exact-scheme payments for any eip155 network. It implements
// x402.SchemeNetworkClient.
type Client struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	maxAmount  *big.Int
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient builds an EVM exact-scheme client. Exactly one key source option
// is required: WithPrivateKey, WithKeystore, or WithMnemonic.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.privateKey == nil {
		return nil, x402.ErrInvalidKey
	}
	c.address = crypto.PubkeyToAddress(c.privateKey.PublicKey)

	return c, nil
}

// WithMaxAmount caps the smallest-unit amount this client will sign for in a
// single payment.
func WithMaxAmount(amount string) ClientOption {
	return func(c *Client) error {
		max, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return x402.ErrInvalidAmount
		}
		c.maxAmount = max
		return nil
	}
}

// Scheme implements x402.SchemeNetworkClient.
func (c *Client) Scheme() string { return SchemeName }

// Network implements x402.SchemeNetworkClient. One client serves every
// eip155 chain; the chain ID is taken from the requirements at signing time.
func (c *Client) Network() x402.Network { return x402.NetworkFamilyEVM }

// Address returns the payer address derived from the configured key.
func (c *Client) Address() common.Address { return c.address }

// CreatePaymentPayload implements x402.SchemeNetworkClient. It signs an
// EIP-3009 authorization for the requirements' amount, recipient and
// asset contract.
func (c *Client) CreatePaymentPayload(_ context.Context, requirements x402.PaymentRequirements) (*x402.PaymentPayload, error) {
	chainID, err := ChainID(requirements.Network)
	if err != nil {
		return nil, err
	}

	amount, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return nil, x402.ErrInvalidAmount
	}
	if c.maxAmount != nil && amount.Cmp(c.maxAmount) > 0 {
		return nil, x402.ErrAmountExceeded
	}

	name, version, err := signingDomain(requirements)
	if err != nil {
		return nil, err
	}

	timeout := requirements.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = x402.DefaultMaxTimeoutSeconds
	}

	auth, err := NewTransferAuthorization(c.address, common.HexToAddress(requirements.PayTo), amount, timeout)
	if err != nil {
		return nil, err
	}

	signature, err := SignTransferAuthorization(c.privateKey, common.HexToAddress(requirements.Asset), chainID, auth, name, version)
	if err != nil {
		return nil, err
	}

	return &x402.PaymentPayload{
		Payload: map[string]interface{}{
			"signature": signature,
			"authorization": map[string]interface{}{
				"from":        auth.From.Hex(),
				"to":          auth.To.Hex(),
				"value":       auth.Value.String(),
				"validAfter":  auth.ValidAfter.String(),
				"validBefore": auth.ValidBefore.String(),
				"nonce":       auth.Nonce.Hex(),
			},
		},
	}, nil
}

// ChainID extracts the numeric chain ID from an eip155 CAIP-2 network.
func ChainID(network x402.Network) (*big.Int, error) {
	namespace, reference, err := network.Parse()
	if err != nil || namespace != "eip155" {
		return nil, x402.ErrUnsupportedNetwork
	}
	id, err := strconv.ParseInt(reference, 10, 64)
	if err != nil {
		return nil, x402.ErrUnsupportedNetwork
	}
	return big.NewInt(id), nil
}

// signingDomain resolves the EIP-712 domain name and version for the
// requirements' asset. The enhance step on the server side normally stamps
// both into Extra; the chain catalog covers bare USDC requirements.
func signingDomain(requirements x402.PaymentRequirements) (name, version string, err error) {
	if n, ok := requirements.Extra["name"].(string); ok && n != "" {
		name = n
	}
	if v, ok := requirements.Extra["version"].(string); ok && v != "" {
		version = v
	}
	if name != "" && version != "" {
		return name, version, nil
	}

	if chain, ok := x402.USDCAsset(requirements.Network); ok && equalAddress(chain.USDCAddress, requirements.Asset) {
		if name == "" {
			name = chain.USDCName
		}
		if version == "" {
			version = chain.USDCVersion
		}
		return name, version, nil
	}

	return "", "", x402.NewPaymentError(x402.ErrCodeMissingField, "requirements missing EIP-712 domain name and version", nil)
}

func equalAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}
