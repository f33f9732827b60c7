package evm

import (
	"context"

	x402 "github.com/x402labs/x402-go"
)

// Server converts prices into exact-scheme requirements for eip155 networks.
// It implements x402.SchemeNetworkServer.
type Server struct {
	parsers []x402.MoneyParser
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// NewServer builds an EVM exact-scheme server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithMoneyParser appends a parser to the price resolution chain. Parsers run
// in registration order; the first non-nil result wins and the network's
// USDC asset is the fallback.
func WithMoneyParser(parser x402.MoneyParser) ServerOption {
	return func(s *Server) {
		s.parsers = append(s.parsers, parser)
	}
}

// Scheme implements x402.SchemeNetworkServer.
func (s *Server) Scheme() string { return SchemeName }

// Network implements x402.SchemeNetworkServer.
func (s *Server) Network() x402.Network { return x402.NetworkFamilyEVM }

// ParsePrice implements x402.SchemeNetworkServer.
func (s *Server) ParsePrice(price x402.Price, network x402.Network) (*x402.AssetAmount, error) {
	if _, err := ChainID(network); err != nil {
		return nil, err
	}
	return x402.ResolvePrice(s.parsers, price, network)
}

// EnhancePaymentRequirements implements x402.SchemeNetworkServer. It stamps
// the EIP-712 domain name and version a payer needs to sign against the
// asset contract: facilitator-advertised values win over the chain catalog,
// and values already present on the requirements are kept.
func (s *Server) EnhancePaymentRequirements(_ context.Context, requirements *x402.PaymentRequirements, supported x402.SupportedResponse) error {
	domain := map[string]interface{}{}
	if chain, ok := x402.USDCAsset(requirements.Network); ok && equalAddress(chain.USDCAddress, requirements.Asset) {
		domain["name"] = chain.USDCName
		domain["version"] = chain.USDCVersion
	}

	for _, kind := range supported.Kinds {
		if kind.Scheme != SchemeName || !requirements.Network.Match(kind.Network) {
			continue
		}
		for _, key := range []string{"name", "version"} {
			if v, ok := kind.Extra[key].(string); ok && v != "" {
				domain[key] = v
			}
		}
	}

	if len(domain) == 0 {
		return nil
	}
	if requirements.Extra == nil {
		requirements.Extra = map[string]interface{}{}
	}
	for key, value := range domain {
		if _, exists := requirements.Extra[key]; !exists {
			requirements.Extra[key] = value
		}
	}
	return nil
}
