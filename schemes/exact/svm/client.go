// Package svm implements the "exact" payment scheme for Solana networks.
//
// The client builds a partially signed SPL token transfer: the payer signs
// the transaction, the facilitator named as fee payer countersigns and
// submits it. The server converts prices into USDC requirements and requires
// a fee payer from the facilitator's advertisement.
package svm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/x402labs/x402-go"
)

// SchemeName identifies the exact payment scheme.
const SchemeName = "exact"

// BlockhashSource supplies a recent blockhash for transaction assembly.
type BlockhashSource func(ctx context.Context, network x402.Network) (solana.Hash, error)

// Client signs exact-scheme payments for any solana network. It implements
// x402.SchemeNetworkClient.
type Client struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	blockhash  BlockhashSource
	maxAmount  *big.Int
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient builds a Solana exact-scheme client. A key source option is
// required: WithPrivateKey or WithKeygenFile. Without a blockhash option the
// client queries the network's public RPC endpoint.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if len(c.privateKey) == 0 {
		return nil, x402.ErrInvalidKey
	}
	c.publicKey = c.privateKey.PublicKey()

	if c.blockhash == nil {
		c.blockhash = rpcBlockhashSource("")
	}
	return c, nil
}

// WithPrivateKey loads the signing key from a base58 string.
func WithPrivateKey(base58Key string) ClientOption {
	return func(c *Client) error {
		key, err := solana.PrivateKeyFromBase58(base58Key)
		if err != nil {
			return x402.ErrInvalidKey
		}
		c.privateKey = key
		return nil
	}
}

// WithKeygenFile loads the signing key from a solana-keygen JSON file, the
// byte-array format written by `solana-keygen new`.
func WithKeygenFile(path string) ClientOption {
	return func(c *Client) error {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
		}
		if len(key) != 64 {
			return fmt.Errorf("%w: invalid key length", x402.ErrInvalidKeystore)
		}

		c.privateKey = key
		return nil
	}
}

// WithBlockhashSource replaces the default RPC blockhash lookup. Tests use
// this to sign against a fixed hash without touching the network.
func WithBlockhashSource(source BlockhashSource) ClientOption {
	return func(c *Client) error {
		c.blockhash = source
		return nil
	}
}

// WithRPCEndpoint fetches recent blockhashes from a specific RPC endpoint
// instead of the network's public one.
func WithRPCEndpoint(url string) ClientOption {
	return func(c *Client) error {
		c.blockhash = rpcBlockhashSource(url)
		return nil
	}
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

// Network implements x402.SchemeNetworkClient.
func (c *Client) Network() x402.Network { return x402.NetworkFamilySVM }

// Address returns the payer public key in base58 form.
func (c *Client) Address() string { return c.publicKey.String() }

// CreatePaymentPayload implements x402.SchemeNetworkClient. It assembles and
// partially signs the token transfer described by the requirements.
func (c *Client) CreatePaymentPayload(ctx context.Context, requirements x402.PaymentRequirements) (*x402.PaymentPayload, error) {
	if requirements.Network.Namespace() != "solana" {
		return nil, x402.ErrUnsupportedNetwork
	}

	amount, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok || !amount.IsUint64() {
		return nil, x402.ErrInvalidAmount
	}
	if c.maxAmount != nil && amount.Cmp(c.maxAmount) > 0 {
		return nil, x402.ErrAmountExceeded
	}

	mint, err := solana.PublicKeyFromBase58(requirements.Asset)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}
	recipient, err := solana.PublicKeyFromBase58(requirements.PayTo)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	feePayer, err := FeePayer(requirements)
	if err != nil {
		return nil, err
	}
	decimals, err := assetDecimals(requirements)
	if err != nil {
		return nil, err
	}

	blockhash, err := c.blockhash(ctx, requirements.Network)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}

	txBase64, err := BuildTransfer(c.privateKey, mint, recipient, amount.Uint64(), decimals, feePayer, blockhash)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build transaction", err)
	}

	return &x402.PaymentPayload{
		Payload: map[string]interface{}{
			"transaction": txBase64,
		},
	}, nil
}

// FeePayer extracts the facilitator fee payer address stamped into the
// requirements by the enhance step.
func FeePayer(requirements x402.PaymentRequirements) (solana.PublicKey, error) {
	raw, ok := requirements.Extra["feePayer"].(string)
	if !ok || raw == "" {
		return solana.PublicKey{}, x402.NewPaymentError(x402.ErrCodeMissingField, "requirements missing feePayer", nil)
	}
	feePayer, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid feePayer address: %w", err)
	}
	return feePayer, nil
}

// assetDecimals resolves the mint's decimals for TransferChecked. The chain
// catalog covers USDC; other mints must carry "decimals" in Extra.
func assetDecimals(requirements x402.PaymentRequirements) (uint8, error) {
	if chain, ok := x402.USDCAsset(requirements.Network); ok && chain.USDCAddress == requirements.Asset {
		return uint8(chain.USDCDecimals), nil
	}
	switch v := requirements.Extra["decimals"].(type) {
	case float64:
		return uint8(v), nil
	case int:
		return uint8(v), nil
	case json.Number:
		n, err := v.Int64()
		if err == nil {
			return uint8(n), nil
		}
	}
	return 0, x402.NewPaymentError(x402.ErrCodeMissingField, "requirements missing asset decimals", nil)
}

// rpcBlockhashSource builds a BlockhashSource over a Solana RPC endpoint.
// With an empty URL the network's public endpoint is used.
func rpcBlockhashSource(url string) BlockhashSource {
	return func(ctx context.Context, network x402.Network) (solana.Hash, error) {
		endpoint := url
		if endpoint == "" {
			var err error
			if endpoint, err = publicEndpoint(network); err != nil {
				return solana.Hash{}, err
			}
		}
		recent, err := rpc.New(endpoint).GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return solana.Hash{}, err
		}
		return recent.Value.Blockhash, nil
	}
}

func publicEndpoint(network x402.Network) (string, error) {
	switch network {
	case x402.NetworkSolana:
		return rpc.MainNetBeta_RPC, nil
	case x402.NetworkSolanaDevnet:
		return rpc.DevNet_RPC, nil
	default:
		return "", x402.ErrUnsupportedNetwork
	}
}
