// Package http adapts the x402 payment engine to HTTP: middleware for
// net/http and popular frameworks, a payment-aware client transport, and a
// facilitator client speaking the verify/settle/supported endpoints.
package http

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
	"github.com/x402labs/x402-go/validation"
)

// PayToFunc resolves the recipient address per request.
type PayToFunc func(ctx context.Context, reqCtx RequestContext) (string, error)

// PriceFunc resolves the price per request.
type PriceFunc func(ctx context.Context, reqCtx RequestContext) (x402.Price, error)

// PaymentOption is one way a client can pay for a route. PayTo and Price may
// be static values or PayToFunc/PriceFunc for per-request resolution.
type PaymentOption struct {
	Scheme            string
	PayTo             interface{}
	Price             interface{}
	Network           x402.Network
	MaxTimeoutSeconds int
}

// UnpaidResponse is a custom body for unpaid API requests, returned instead
// of the default empty 402.
type UnpaidResponse struct {
	ContentType string
	Body        interface{}
}

// UnpaidResponseFunc generates a custom 402 body for API clients. Browser
// requests get the paywall HTML instead.
type UnpaidResponseFunc func(ctx context.Context, reqCtx RequestContext) (*UnpaidResponse, error)

// RouteConfig defines payment configuration for one route pattern.
type RouteConfig struct {
	Accepts []PaymentOption

	Description       string
	MimeType          string
	CustomPaywallHTML string
	UnpaidResponse    UnpaidResponseFunc
}

// RoutesConfig maps route patterns ("GET /api/*", "/weather/[city]") to
// configurations.
type RoutesConfig map[string]RouteConfig

type compiledRoute struct {
	verb   string
	regex  *regexp.Regexp
	config RouteConfig
}

// RequestContext carries the adapter and the request coordinates through
// payment processing.
type RequestContext struct {
	Adapter Adapter
	Path    string
	Method  string
}

// ResponseInstructions tells the framework adapter how to respond.
type ResponseInstructions struct {
	Status  int
	Headers map[string]string
	Body    interface{}
	IsHTML  bool
}

// ResultType classifies the outcome of ProcessRequest.
type ResultType string

const (
	// ResultNoPaymentRequired means the route is not payment-gated.
	ResultNoPaymentRequired ResultType = "no-payment-required"

	// ResultPaymentVerified means a valid payment was presented; serve the
	// resource, then settle via ProcessSettlement.
	ResultPaymentVerified ResultType = "payment-verified"

	// ResultPaymentError means the request must be answered with the
	// attached response instructions instead of the resource.
	ResultPaymentError ResultType = "payment-error"
)

// ProcessResult is the outcome of payment processing for one request.
type ProcessResult struct {
	Type         ResultType
	Response     *ResponseInstructions
	Payload      *x402.PaymentPayload
	Requirements *x402.PaymentRequirements
}

// SettleResult is the outcome of settlement processing.
type SettleResult struct {
	Success     bool
	Headers     map[string]string
	ErrorReason string
	Transaction string
	Network     x402.Network
	Payer       string
}

// Server layers HTTP route matching, header codecs and response shaping on
// top of a resource server.
type Server struct {
	*x402.ResourceServer
	routes  []compiledRoute
	paywall *PaywallConfig
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPaywall enables the HTML paywall for browser requests.
func WithPaywall(config *PaywallConfig) ServerOption {
	return func(s *Server) { s.paywall = config }
}

// NewServer creates an HTTP resource server with its own payment engine.
// Engine options (facilitators, hooks, logging) are passed through.
func NewServer(routes RoutesConfig, opts []x402.ResourceServerOption, httpOpts ...ServerOption) *Server {
	return WrapServer(routes, x402.NewResourceServer(opts...), httpOpts...)
}

// WrapServer layers HTTP handling on an existing payment engine.
func WrapServer(routes RoutesConfig, engine *x402.ResourceServer, httpOpts ...ServerOption) *Server {
	s := &Server{ResourceServer: engine}
	for pattern, config := range routes {
		verb, regex := parseRoutePattern(pattern)
		s.routes = append(s.routes, compiledRoute{verb: verb, regex: regex, config: config})
	}
	for _, opt := range httpOpts {
		opt(s)
	}
	return s
}

// RequiresPayment reports whether a request path and method hit a
// payment-gated route.
func (s *Server) RequiresPayment(reqCtx RequestContext) bool {
	return s.routeConfig(reqCtx.Path, reqCtx.Method) != nil
}

// ProcessRequest runs the payment state machine for one request: build the
// route's requirements, extract and decode the payment header, match, verify.
// It never settles; call ProcessSettlement after the handler has produced a
// success status.
func (s *Server) ProcessRequest(ctx context.Context, reqCtx RequestContext) ProcessResult {
	routeConfig := s.routeConfig(reqCtx.Path, reqCtx.Method)
	if routeConfig == nil || len(routeConfig.Accepts) == 0 {
		return ProcessResult{Type: ResultNoPaymentRequired}
	}

	requirements, err := s.buildRouteRequirements(ctx, routeConfig.Accepts, reqCtx)
	if err != nil {
		return ProcessResult{
			Type: ResultPaymentError,
			Response: &ResponseInstructions{
				Status:  500,
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    map[string]string{"error": err.Error()},
			},
		}
	}

	resource := &x402.ResourceInfo{
		URL:         reqCtx.Adapter.GetURL(),
		Description: routeConfig.Description,
		MimeType:    routeConfig.MimeType,
	}

	// A payment header that cannot be decoded is answered with the same
	// challenge an unpaid request gets, so the client can retry with a
	// well-formed payment.
	payload, err := extractPayment(reqCtx.Adapter)
	if err != nil {
		challenge := s.CreateChallenge(requirements, resource, err.Error())
		return ProcessResult{
			Type:     ResultPaymentError,
			Response: s.challengeResponse(ctx, reqCtx, routeConfig, challenge, false),
		}
	}

	if payload == nil {
		challenge := s.CreateChallenge(requirements, resource, "Payment required")
		return ProcessResult{
			Type:     ResultPaymentError,
			Response: s.challengeResponse(ctx, reqCtx, routeConfig, challenge, isWebBrowser(reqCtx.Adapter)),
		}
	}

	matched := s.FindMatchingRequirements(requirements, *payload)
	if matched == nil {
		challenge := s.CreateChallenge(requirements, resource, "No matching payment requirements")
		return ProcessResult{
			Type:     ResultPaymentError,
			Response: s.challengeResponse(ctx, reqCtx, routeConfig, challenge, false),
		}
	}

	verifyResp, err := s.VerifyPayment(ctx, *payload, *matched)
	if err != nil {
		return ProcessResult{
			Type: ResultPaymentError,
			Response: &ResponseInstructions{
				Status:  500,
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    map[string]string{"error": "Payment verification failed"},
			},
		}
	}
	if !verifyResp.IsValid {
		challenge := s.CreateChallenge(requirements, resource, verifyResp.InvalidReason)
		return ProcessResult{
			Type:     ResultPaymentError,
			Response: s.challengeResponse(ctx, reqCtx, routeConfig, challenge, false),
		}
	}

	return ProcessResult{
		Type:         ResultPaymentVerified,
		Payload:      payload,
		Requirements: matched,
	}
}

// ProcessSettlement settles a verified payment and returns the headers to
// attach to the success response.
func (s *Server) ProcessSettlement(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) *SettleResult {
	settleResp, err := s.SettlePayment(ctx, payload, requirements)
	if err != nil {
		return &SettleResult{Success: false, ErrorReason: err.Error()}
	}
	if !settleResp.Success {
		return &SettleResult{Success: false, ErrorReason: settleResp.ErrorReason}
	}

	headers := map[string]string{}
	if encoded, err := encoding.EncodeSettlement(*settleResp); err == nil {
		headers[HeaderPaymentResponse] = encoded
		headers[HeaderPaymentResponseLegacy] = encoded
	}
	return &SettleResult{
		Success:     true,
		Headers:     headers,
		Transaction: settleResp.Transaction,
		Network:     settleResp.Network,
		Payer:       settleResp.Payer,
	}
}

// buildRouteRequirements resolves a route's payment options into concrete
// requirements, calling PayToFunc/PriceFunc values once per request.
func (s *Server) buildRouteRequirements(ctx context.Context, options []PaymentOption, reqCtx RequestContext) ([]x402.PaymentRequirements, error) {
	configs := make([]x402.ResourceConfig, 0, len(options))
	for _, option := range options {
		var payTo string
		switch v := option.PayTo.(type) {
		case PayToFunc:
			resolved, err := v(ctx, reqCtx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dynamic payTo: %w", err)
			}
			payTo = resolved
		case func(context.Context, RequestContext) (string, error):
			resolved, err := v(ctx, reqCtx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dynamic payTo: %w", err)
			}
			payTo = resolved
		case string:
			payTo = v
		default:
			return nil, fmt.Errorf("payTo must be string or PayToFunc, got %T", option.PayTo)
		}

		var price x402.Price
		switch v := option.Price.(type) {
		case PriceFunc:
			resolved, err := v(ctx, reqCtx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dynamic price: %w", err)
			}
			price = resolved
		case func(context.Context, RequestContext) (x402.Price, error):
			resolved, err := v(ctx, reqCtx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dynamic price: %w", err)
			}
			price = resolved
		default:
			price = option.Price
		}

		configs = append(configs, x402.ResourceConfig{
			Scheme:            option.Scheme,
			PayTo:             payTo,
			Price:             price,
			Network:           option.Network,
			MaxTimeoutSeconds: option.MaxTimeoutSeconds,
		})
	}

	requirements, err := s.BuildRequirements(ctx, configs...)
	if err != nil {
		return nil, err
	}
	for _, requirement := range requirements {
		if err := validation.ValidatePaymentRequirements(requirement); err != nil {
			return nil, err
		}
	}
	return requirements, nil
}

// challengeResponse shapes a 402 for the caller: paywall HTML for browsers,
// header plus JSON body for API clients.
func (s *Server) challengeResponse(ctx context.Context, reqCtx RequestContext, routeConfig *RouteConfig, challenge x402.PaymentRequired, browser bool) *ResponseInstructions {
	if browser {
		return &ResponseInstructions{
			Status:  402,
			Headers: map[string]string{"Content-Type": "text/html"},
			Body:    generatePaywallHTML(challenge, s.paywall, routeConfig.CustomPaywallHTML),
			IsHTML:  true,
		}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if encoded, err := encoding.EncodeChallenge(challenge); err == nil {
		headers[HeaderPaymentRequired] = encoded
	}

	var body interface{} = challenge
	if routeConfig.UnpaidResponse != nil {
		if unpaid, err := routeConfig.UnpaidResponse(ctx, reqCtx); err == nil && unpaid != nil {
			headers["Content-Type"] = unpaid.ContentType
			body = unpaid.Body
		}
	}

	return &ResponseInstructions{Status: 402, Headers: headers, Body: body}
}

func (s *Server) routeConfig(path, method string) *RouteConfig {
	normalized := normalizePath(path)
	upper := strings.ToUpper(method)
	for _, route := range s.routes {
		if route.regex.MatchString(normalized) && (route.verb == "*" || route.verb == upper) {
			config := route.config
			return &config
		}
	}
	return nil
}

// extractPayment decodes the payment payload from the request headers. The
// PAYMENT-SIGNATURE header wins over the legacy X-PAYMENT header when both
// are present. A missing header returns (nil, nil).
func extractPayment(adapter Adapter) (*x402.PaymentPayload, error) {
	header := adapter.GetHeader(HeaderPaymentSignature)
	if header == "" {
		header = adapter.GetHeader(HeaderPaymentLegacy)
	}
	if header == "" {
		return nil, nil
	}

	payload, err := encoding.DecodePayment(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrMalformedHeader, err)
	}
	if payload.X402Version != x402.ProtocolVersion && payload.X402Version != x402.ProtocolVersionLegacy {
		return nil, fmt.Errorf("%w: version %d", x402.ErrUnsupportedVersion, payload.X402Version)
	}
	if err := validation.ValidatePaymentPayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrMalformedHeader, err)
	}
	return &payload, nil
}

// isWebBrowser reports whether the request looks like an interactive browser
// navigation rather than an API call.
func isWebBrowser(adapter Adapter) bool {
	return strings.Contains(adapter.GetAcceptHeader(), "text/html") &&
		strings.Contains(adapter.GetUserAgent(), "Mozilla")
}

// parseRoutePattern parses a route pattern like "GET /api/*" into a verb and
// path regexp. Patterns without a verb match every method; "*" segments match
// any path suffix and "[param]" segments match one path element.
func parseRoutePattern(pattern string) (string, *regexp.Regexp) {
	parts := strings.Fields(pattern)

	var verb, path string
	if len(parts) == 2 {
		verb = strings.ToUpper(parts[0])
		path = parts[1]
	} else {
		verb = "*"
		path = pattern
	}

	regexPattern := "^" + regexp.QuoteMeta(path)
	regexPattern = strings.ReplaceAll(regexPattern, `\*`, `.*?`)
	paramRegex := regexp.MustCompile(`\\\[([^\]]+)\\\]`)
	regexPattern = paramRegex.ReplaceAllString(regexPattern, `[^/]+`)
	regexPattern += "$"

	return verb, regexp.MustCompile(regexPattern)
}

// normalizePath strips query and fragment, decodes percent escapes and
// collapses slashes so route matching sees a canonical path.
func normalizePath(path string) string {
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	path = strings.ReplaceAll(path, `\`, `/`)
	multiSlash := regexp.MustCompile(`/+`)
	path = multiSlash.ReplaceAllString(path, `/`)
	path = strings.TrimSuffix(path, `/`)

	if path == "" {
		path = "/"
	}

	return path
}
