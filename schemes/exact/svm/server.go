package svm

import (
	"context"

	x402 "github.com/x402labs/x402-go"
)

// Server converts prices into exact-scheme requirements for solana networks.
// It implements x402.SchemeNetworkServer.
type Server struct {
	parsers []x402.MoneyParser
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// NewServer builds a Solana exact-scheme server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithMoneyParser appends a parser to the price resolution chain.
func WithMoneyParser(parser x402.MoneyParser) ServerOption {
	return func(s *Server) {
		s.parsers = append(s.parsers, parser)
	}
}

// Scheme implements x402.SchemeNetworkServer.
func (s *Server) Scheme() string { return SchemeName }

// Network implements x402.SchemeNetworkServer.
func (s *Server) Network() x402.Network { return x402.NetworkFamilySVM }

// ParsePrice implements x402.SchemeNetworkServer.
func (s *Server) ParsePrice(price x402.Price, network x402.Network) (*x402.AssetAmount, error) {
	if network.Namespace() != "solana" {
		return nil, x402.ErrUnsupportedNetwork
	}
	return x402.ResolvePrice(s.parsers, price, network)
}

// EnhancePaymentRequirements implements x402.SchemeNetworkServer. Solana
// transactions name their fee payer up front, so requirements are unusable
// until the facilitator's fee payer address is stamped into Extra. A
// facilitator that advertises the network without a fee payer is an error.
func (s *Server) EnhancePaymentRequirements(_ context.Context, requirements *x402.PaymentRequirements, supported x402.SupportedResponse) error {
	if _, ok := requirements.Extra["feePayer"].(string); ok {
		return nil
	}

	for _, kind := range supported.Kinds {
		if kind.Scheme != SchemeName || !requirements.Network.Match(kind.Network) {
			continue
		}
		if feePayer, ok := kind.Extra["feePayer"].(string); ok && feePayer != "" {
			if requirements.Extra == nil {
				requirements.Extra = map[string]interface{}{}
			}
			requirements.Extra["feePayer"] = feePayer
			return nil
		}
	}

	return x402.NewPaymentError(x402.ErrCodeMissingField,
		"no facilitator advertises a feePayer for "+string(requirements.Network), nil)
}
