package x402

import (
	"context"
	"fmt"

	"github.com/x402labs/x402-go/logger"
)

// Client orchestrates payment creation. It holds registered scheme/network
// clients and turns a server's payment challenge into a signed payload.
type Client struct {
	clients  *Registry[SchemeNetworkClient]
	selector RequirementsSelector
	policies []PaymentPolicy
	hooks    *ClientHooks
	log      logger.Logger
}

// ClientHooks are optional callbacks around payment payload creation.
type ClientHooks struct {
	BeforeCreate func(ctx context.Context, requirements PaymentRequirements) error
	AfterCreate  func(ctx context.Context, requirements PaymentRequirements, payload *PaymentPayload)
	OnFailure    func(ctx context.Context, requirements PaymentRequirements, err error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSelector sets a custom requirements selector.
func WithSelector(selector RequirementsSelector) ClientOption {
	return func(c *Client) { c.selector = selector }
}

// WithPolicy appends a payment policy. Policies run in the order given.
func WithPolicy(policy PaymentPolicy) ClientOption {
	return func(c *Client) { c.policies = append(c.policies, policy) }
}

// WithClientHooks sets lifecycle hooks around payment creation.
func WithClientHooks(hooks *ClientHooks) ClientOption {
	return func(c *Client) { c.hooks = hooks }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(log logger.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a payment client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		clients:  NewRegistry[SchemeNetworkClient](),
		selector: FirstRequirementSelector,
		log:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a scheme/network client. Re-registering the same pair
// replaces the earlier client.
func (c *Client) Register(client SchemeNetworkClient) *Client {
	c.clients.Register(client.Scheme(), client.Network(), client)
	return c
}

// SelectRequirements picks the requirement to pay from a challenge's accepts
// list. Unsupported entries are dropped, policies filter the remainder, and
// the selector picks from what is left. There is no fallback past the
// selected entry.
func (c *Client) SelectRequirements(accepts []PaymentRequirements) (PaymentRequirements, error) {
	var supported []PaymentRequirements
	for _, req := range accepts {
		if _, ok := c.clients.Lookup(req.Scheme, req.Network); ok {
			supported = append(supported, req)
		}
	}
	if len(supported) == 0 {
		return PaymentRequirements{}, fmt.Errorf("%w: none of %d offered requirements supported", ErrNoMatchingRequirements, len(accepts))
	}

	filtered := supported
	for _, policy := range c.policies {
		filtered = policy(filtered)
		if len(filtered) == 0 {
			return PaymentRequirements{}, fmt.Errorf("%w: all candidates filtered by policy", ErrNoMatchingRequirements)
		}
	}

	return c.selector(filtered), nil
}

// CreatePayment selects a requirement from the challenge and produces a
// signed payment payload for it. The returned payload carries the exact
// selected requirements in its Accepted field and echoes the challenge's
// resource.
func (c *Client) CreatePayment(ctx context.Context, challenge PaymentRequired) (*PaymentPayload, error) {
	selected, err := c.SelectRequirements(challenge.Accepts)
	if err != nil {
		return nil, err
	}
	return c.CreatePaymentFor(ctx, selected, challenge.Resource)
}

// CreatePaymentFor produces a signed payment payload for one already-selected
// requirement.
func (c *Client) CreatePaymentFor(ctx context.Context, requirements PaymentRequirements, resource *ResourceInfo) (*PaymentPayload, error) {
	if c.hooks != nil && c.hooks.BeforeCreate != nil {
		if err := c.hooks.BeforeCreate(ctx, requirements); err != nil {
			return nil, err
		}
	}

	impl, ok := c.clients.Lookup(requirements.Scheme, requirements.Network)
	if !ok {
		err := fmt.Errorf("%w: %s on %s", ErrUnsupportedScheme, requirements.Scheme, requirements.Network)
		c.creationFailed(ctx, requirements, err)
		return nil, err
	}

	payload, err := impl.CreatePaymentPayload(ctx, requirements)
	if err != nil {
		c.log.Error("payment creation failed", map[string]any{
			"scheme":  requirements.Scheme,
			"network": requirements.Network,
			"error":   err.Error(),
		})
		c.creationFailed(ctx, requirements, err)
		return nil, NewPaymentError(ErrCodeSigningFailed, "failed to create payment payload", err)
	}

	payload.X402Version = ProtocolVersion
	payload.Accepted = requirements
	payload.Resource = resource

	c.log.Debug("payment payload created", map[string]any{
		"scheme":  requirements.Scheme,
		"network": requirements.Network,
	})

	if c.hooks != nil && c.hooks.AfterCreate != nil {
		c.hooks.AfterCreate(ctx, requirements, payload)
	}
	return payload, nil
}

func (c *Client) creationFailed(ctx context.Context, requirements PaymentRequirements, err error) {
	if c.hooks != nil && c.hooks.OnFailure != nil {
		c.hooks.OnFailure(ctx, requirements, err)
	}
}
