package x402

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/x402labs/x402-go/logger"
	"github.com/x402labs/x402-go/metrics"
)

// ResourceServer is the seller-side engine. It builds payment requirements
// from resource configs, matches incoming payloads against them, and runs
// verify and settle through the configured facilitators.
//
// Register scheme servers and facilitator clients before serving traffic;
// the first payment operation triggers a one-time Initialize that queries
// each facilitator's supported kinds and freezes the routing tables.
type ResourceServer struct {
	schemes      *Registry[SchemeNetworkServer]
	facilitators []FacilitatorClient

	// Populated by Initialize, read-only afterwards.
	routes    *Registry[FacilitatorClient]
	supported []SupportedResponse

	hooks   *Hooks
	log     logger.Logger
	metrics metrics.Recorder

	initOnce sync.Once
	initErr  error
}

// ResourceServerOption configures a ResourceServer.
type ResourceServerOption func(*ResourceServer)

// WithFacilitatorClient adds a facilitator. Multiple facilitators may be
// configured; routing is decided by each one's supported kinds.
func WithFacilitatorClient(client FacilitatorClient) ResourceServerOption {
	return func(s *ResourceServer) {
		s.facilitators = append(s.facilitators, client)
	}
}

// WithHooks sets verify/settle lifecycle hooks.
func WithHooks(hooks *Hooks) ResourceServerOption {
	return func(s *ResourceServer) { s.hooks = hooks }
}

// WithLogger sets the server's logger.
func WithLogger(log logger.Logger) ResourceServerOption {
	return func(s *ResourceServer) { s.log = log }
}

// WithMetrics sets the server's metrics recorder.
func WithMetrics(rec metrics.Recorder) ResourceServerOption {
	return func(s *ResourceServer) { s.metrics = rec }
}

// NewResourceServer creates a resource server.
func NewResourceServer(opts ...ResourceServerOption) *ResourceServer {
	s := &ResourceServer{
		schemes: NewRegistry[SchemeNetworkServer](),
		routes:  NewRegistry[FacilitatorClient](),
		log:     logger.Noop(),
		metrics: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a scheme server. Must be called before the first payment
// operation.
func (s *ResourceServer) Register(schemeServer SchemeNetworkServer) *ResourceServer {
	s.schemes.Register(schemeServer.Scheme(), schemeServer.Network(), schemeServer)
	return s
}

// Initialize queries every facilitator's supported kinds once and builds the
// verify/settle routing table. It runs at most once for the life of the
// server; later payment operations reuse the cached results. Callers may
// invoke it eagerly at startup to surface configuration errors early.
func (s *ResourceServer) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		for _, client := range s.facilitators {
			supported, err := client.GetSupported(ctx)
			if err != nil {
				s.initErr = fmt.Errorf("%w: get supported: %v", ErrFacilitatorUnavailable, err)
				return
			}
			s.supported = append(s.supported, supported)
			for _, kind := range supported.Kinds {
				// First facilitator advertising a kind wins.
				if _, exists := s.routes.Lookup(kind.Scheme, kind.Network); !exists {
					s.routes.Register(kind.Scheme, kind.Network, client)
				}
			}
		}
		s.log.Info("resource server initialized", map[string]any{
			"facilitators": len(s.facilitators),
			"kinds":        s.routes.Len(),
		})
	})
	return s.initErr
}

// Supported returns the cached supported responses from every facilitator.
// Initialize must have run.
func (s *ResourceServer) Supported() []SupportedResponse {
	return s.supported
}

// supportedResponseFor returns the full supported response of the facilitator
// advertising the given kind.
func (s *ResourceServer) supportedResponseFor(scheme string, network Network) SupportedResponse {
	for _, resp := range s.supported {
		for _, kind := range resp.Kinds {
			if kind.Scheme == scheme && network.Match(kind.Network) {
				return resp
			}
		}
	}
	return SupportedResponse{}
}

// BuildRequirements expands resource configs into concrete payment
// requirements. Each config resolves its price through the scheme server's
// parser chain and is then enhanced with facilitator-advertised metadata.
func (s *ResourceServer) BuildRequirements(ctx context.Context, configs ...ResourceConfig) ([]PaymentRequirements, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	out := make([]PaymentRequirements, 0, len(configs))
	for _, config := range configs {
		req, err := s.buildOne(ctx, config)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}

func (s *ResourceServer) buildOne(ctx context.Context, config ResourceConfig) (*PaymentRequirements, error) {
	schemeServer, ok := s.schemes.Lookup(config.Scheme, config.Network)
	if !ok {
		return nil, NewPaymentError(ErrCodeUnsupportedScheme,
			fmt.Sprintf("no scheme server for %s on %s", config.Scheme, config.Network),
			ErrUnsupportedScheme)
	}

	asset, err := schemeServer.ParsePrice(config.Price, config.Network)
	if err != nil {
		return nil, err
	}

	timeout := config.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultMaxTimeoutSeconds
	}

	req := &PaymentRequirements{
		Scheme:            config.Scheme,
		Network:           config.Network,
		Asset:             asset.Asset,
		Amount:            asset.Amount,
		PayTo:             config.PayTo,
		MaxTimeoutSeconds: timeout,
		Extra:             asset.Extra,
	}

	supported := s.supportedResponseFor(config.Scheme, config.Network)
	if err := schemeServer.EnhancePaymentRequirements(ctx, req, supported); err != nil {
		return nil, err
	}
	return req, nil
}

// CreateChallenge assembles the 402 challenge body for a set of
// requirements.
func (s *ResourceServer) CreateChallenge(requirements []PaymentRequirements, resource *ResourceInfo, errorMsg string) PaymentRequired {
	s.metrics.IncCounter(metrics.CounterChallenge, nil)
	return PaymentRequired{
		X402Version: ProtocolVersion,
		Error:       errorMsg,
		Resource:    resource,
		Accepts:     requirements,
	}
}

// FindMatchingRequirements locates the offered requirement the payload
// claims to satisfy. The payload's accepted copy must agree with an offered
// entry on scheme, network, amount, asset and payee; anything else is no
// match.
func (s *ResourceServer) FindMatchingRequirements(available []PaymentRequirements, payload PaymentPayload) *PaymentRequirements {
	for i := range available {
		req := &available[i]
		if payload.Accepted.Scheme == req.Scheme &&
			payload.Accepted.Network == req.Network &&
			payload.Accepted.Amount == req.Amount &&
			payload.Accepted.Asset == req.Asset &&
			payload.Accepted.PayTo == req.PayTo {
			return req
		}
	}
	return nil
}

// VerifyPayment routes a verification to the facilitator advertising the
// payload's kind. A semantic rejection comes back as IsValid=false with a nil
// error; a non-nil error means the check itself could not run.
func (s *ResourceServer) VerifyPayment(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	vc := &VerifyContext{Payload: payload, Requirements: requirements}
	if err := s.hooks.beforeVerify(ctx, vc); err != nil {
		return nil, err
	}

	client, ok := s.routes.Lookup(requirements.Scheme, requirements.Network)
	if !ok {
		vc.Err = fmt.Errorf("%w: %s on %s", ErrNoFacilitator, requirements.Scheme, requirements.Network)
		s.hooks.afterVerify(ctx, vc)
		return nil, vc.Err
	}

	labels := map[string]string{"scheme": requirements.Scheme, "network": string(requirements.Network)}
	start := time.Now()
	result, err := client.Verify(ctx, payload, requirements)
	s.metrics.ObserveLatency(metrics.LatencyVerify, time.Since(start), labels)

	vc.Result, vc.Err = result, err
	s.hooks.afterVerify(ctx, vc)

	switch {
	case err != nil:
		s.metrics.IncCounter(metrics.CounterVerifyError, labels)
		s.log.Error("verification error", map[string]any{
			"scheme":  requirements.Scheme,
			"network": requirements.Network,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	case !result.IsValid:
		s.metrics.IncCounter(metrics.CounterVerifyReject, labels)
		s.log.Info("payment rejected", map[string]any{
			"scheme":  requirements.Scheme,
			"network": requirements.Network,
			"reason":  result.InvalidReason,
		})
	default:
		s.metrics.IncCounter(metrics.CounterVerifyOK, labels)
	}
	return result, nil
}

// SettlePayment routes a settlement to the facilitator advertising the
// payload's kind. A failed settlement comes back as Success=false with a nil
// error; a non-nil error means the attempt could not run.
func (s *ResourceServer) SettlePayment(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	sc := &SettleContext{Payload: payload, Requirements: requirements}
	if err := s.hooks.beforeSettle(ctx, sc); err != nil {
		return nil, err
	}

	client, ok := s.routes.Lookup(requirements.Scheme, requirements.Network)
	if !ok {
		sc.Err = fmt.Errorf("%w: %s on %s", ErrNoFacilitator, requirements.Scheme, requirements.Network)
		s.hooks.afterSettle(ctx, sc)
		return nil, sc.Err
	}

	labels := map[string]string{"scheme": requirements.Scheme, "network": string(requirements.Network)}
	start := time.Now()
	result, err := client.Settle(ctx, payload, requirements)
	s.metrics.ObserveLatency(metrics.LatencySettle, time.Since(start), labels)

	sc.Result, sc.Err = result, err
	s.hooks.afterSettle(ctx, sc)

	switch {
	case err != nil:
		s.metrics.IncCounter(metrics.CounterSettleError, labels)
		s.log.Error("settlement error", map[string]any{
			"scheme":  requirements.Scheme,
			"network": requirements.Network,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	case !result.Success:
		s.metrics.IncCounter(metrics.CounterSettleFail, labels)
		s.log.Warn("settlement failed", map[string]any{
			"scheme":  requirements.Scheme,
			"network": requirements.Network,
			"reason":  result.ErrorReason,
		})
	default:
		s.metrics.IncCounter(metrics.CounterSettleOK, labels)
		s.log.Info("payment settled", map[string]any{
			"scheme":      requirements.Scheme,
			"network":     requirements.Network,
			"transaction": result.Transaction,
		})
	}
	return result, nil
}
