package x402

import (
	"context"
	"fmt"

	"github.com/x402labs/x402-go/logger"
)

// Facilitator composes scheme/network facilitators into a local
// FacilitatorClient. It is used by servers that verify and settle in-process
// instead of calling a remote facilitator service, and by facilitator
// services themselves as the engine behind their HTTP endpoints.
type Facilitator struct {
	impls      *Registry[SchemeNetworkFacilitator]
	extensions []string
	log        logger.Logger
}

// FacilitatorOption configures a Facilitator.
type FacilitatorOption func(*Facilitator)

// WithExtensions advertises extension identifiers in the supported response.
func WithExtensions(extensions ...string) FacilitatorOption {
	return func(f *Facilitator) {
		f.extensions = append(f.extensions, extensions...)
	}
}

// WithFacilitatorLogger sets the facilitator's logger.
func WithFacilitatorLogger(log logger.Logger) FacilitatorOption {
	return func(f *Facilitator) { f.log = log }
}

// NewFacilitator creates a local facilitator.
func NewFacilitator(opts ...FacilitatorOption) *Facilitator {
	f := &Facilitator{
		impls: NewRegistry[SchemeNetworkFacilitator](),
		log:   logger.Noop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a scheme/network facilitator implementation.
func (f *Facilitator) Register(impl SchemeNetworkFacilitator) *Facilitator {
	f.impls.Register(impl.Scheme(), impl.Network(), impl)
	return f
}

func (f *Facilitator) lookup(scheme string, network Network) (SchemeNetworkFacilitator, error) {
	impl, ok := f.impls.Lookup(scheme, network)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoFacilitator, scheme, network)
	}
	return impl, nil
}

// Verify validates a payment payload against requirements.
func (f *Facilitator) Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error) {
	if payload.X402Version != ProtocolVersion && payload.X402Version != ProtocolVersionLegacy {
		return &VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("unsupported x402 version %d", payload.X402Version),
		}, nil
	}

	impl, err := f.lookup(requirements.Scheme, requirements.Network)
	if err != nil {
		return nil, err
	}

	result, err := impl.Verify(ctx, payload, requirements)
	if err != nil {
		return nil, err
	}
	f.log.Debug("payment verified", map[string]any{
		"scheme":  requirements.Scheme,
		"network": requirements.Network,
		"isValid": result.IsValid,
	})
	return result, nil
}

// Settle executes a payment.
func (f *Facilitator) Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error) {
	impl, err := f.lookup(requirements.Scheme, requirements.Network)
	if err != nil {
		return nil, err
	}

	result, err := impl.Settle(ctx, payload, requirements)
	if err != nil {
		return nil, err
	}
	f.log.Info("payment settled", map[string]any{
		"scheme":      requirements.Scheme,
		"network":     requirements.Network,
		"success":     result.Success,
		"transaction": result.Transaction,
	})
	return result, nil
}

// GetSupported assembles the capability advertisement from the registered
// implementations. Signer addresses are grouped by CAIP-2 namespace family.
func (f *Facilitator) GetSupported(ctx context.Context) (SupportedResponse, error) {
	resp := SupportedResponse{
		Extensions: f.extensions,
		Signers:    make(map[string][]string),
	}
	if resp.Extensions == nil {
		resp.Extensions = []string{}
	}

	for _, pair := range f.impls.Pairs() {
		impl, _ := f.impls.Lookup(pair.Scheme, pair.Network)
		kind := SupportedKind{
			X402Version: ProtocolVersion,
			Scheme:      pair.Scheme,
			Network:     pair.Network,
			Extra:       impl.GetExtra(pair.Network),
		}
		resp.Kinds = append(resp.Kinds, kind)

		family := impl.CaipFamily() + ":*"
		for _, signer := range impl.GetSigners(pair.Network) {
			if !containsString(resp.Signers[family], signer) {
				resp.Signers[family] = append(resp.Signers[family], signer)
			}
		}
	}
	return resp, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
