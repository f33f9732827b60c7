package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
	"github.com/x402labs/x402-go/retry"
)

// AuthorizationProvider returns an Authorization header value for facilitator
// requests. Use it for tokens that need periodic refresh; static values can
// use the Authorization field directly.
type AuthorizationProvider func(ctx context.Context) (string, error)

// FacilitatorClient talks to a remote facilitator service over HTTP. It
// implements x402.FacilitatorClient.
type FacilitatorClient struct {
	// BaseURL is the facilitator endpoint, without a trailing slash.
	BaseURL string

	// Client is the underlying HTTP client. Defaults to http.DefaultClient.
	Client *http.Client

	// Timeouts holds per-operation deadlines.
	Timeouts x402.TimeoutConfig

	// Authorization is a static Authorization header value, e.g.
	// "Bearer api-key".
	Authorization string

	// AuthorizationProvider supplies the Authorization header dynamically.
	// Takes precedence over Authorization when set.
	AuthorizationProvider AuthorizationProvider

	// Retry configures backoff for supported and verify calls. Settle is
	// never retried. Zero value disables retries.
	Retry retry.Config
}

// NewFacilitatorClient creates a facilitator client with default timeouts.
func NewFacilitatorClient(baseURL string) *FacilitatorClient {
	return &FacilitatorClient{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Client:   http.DefaultClient,
		Timeouts: x402.DefaultTimeouts,
	}
}

// facilitatorRequest is the body of verify and settle calls. The payment
// payload travels in its base64 wire form; the requirements are the server's
// own reconstruction, never the client's copy.
type facilitatorRequest struct {
	X402Version int                      `json:"x402Version"`
	Payload     string                   `json:"payload"`
	Details     x402.PaymentRequirements `json:"details"`
}

// Verify checks a payment with the facilitator's /verify endpoint.
func (c *FacilitatorClient) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	opCtx, cancel := context.WithTimeout(ctx, c.verifyTimeout())
	defer cancel()

	run := func() (*x402.VerifyResponse, error) {
		var out x402.VerifyResponse
		if err := c.post(opCtx, "/verify", payload, requirements, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	if c.Retry.MaxAttempts > 1 {
		return retry.WithRetry(opCtx, c.Retry, isTransient, run)
	}
	return run()
}

// Settle executes a payment with the facilitator's /settle endpoint. Settle
// calls are never retried; a lost response is indistinguishable from a lost
// request and a retry could pay twice.
func (c *FacilitatorClient) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettleResponse, error) {
	opCtx, cancel := context.WithTimeout(ctx, c.settleTimeout())
	defer cancel()

	var out x402.SettleResponse
	if err := c.post(opCtx, "/settle", payload, requirements, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSupported queries the facilitator's capability advertisement.
func (c *FacilitatorClient) GetSupported(ctx context.Context) (x402.SupportedResponse, error) {
	opCtx, cancel := context.WithTimeout(ctx, c.requestTimeout())
	defer cancel()

	run := func() (x402.SupportedResponse, error) {
		var out x402.SupportedResponse

		req, err := http.NewRequestWithContext(opCtx, http.MethodGet, c.BaseURL+"/supported", nil)
		if err != nil {
			return out, fmt.Errorf("failed to create request: %w", err)
		}
		if err := c.authorize(opCtx, req); err != nil {
			return out, err
		}

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return out, fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return out, fmt.Errorf("%w: supported returned %d: %s", x402.ErrFacilitatorUnavailable, resp.StatusCode, body)
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return out, fmt.Errorf("failed to decode supported response: %w", err)
		}
		return out, nil
	}

	if c.Retry.MaxAttempts > 1 {
		return retry.WithRetry(opCtx, c.Retry, isTransient, run)
	}
	return run()
}

func (c *FacilitatorClient) post(ctx context.Context, path string, payload x402.PaymentPayload, requirements x402.PaymentRequirements, out interface{}) error {
	encoded, err := encoding.EncodePayment(payload)
	if err != nil {
		return err
	}

	body, err := json.Marshal(facilitatorRequest{
		X402Version: x402.ProtocolVersion,
		Payload:     encoded,
		Details:     requirements,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s returned %d: %s", x402.ErrFacilitatorUnavailable, path, resp.StatusCode, respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *FacilitatorClient) authorize(ctx context.Context, req *http.Request) error {
	if c.AuthorizationProvider != nil {
		value, err := c.AuthorizationProvider(ctx)
		if err != nil {
			return fmt.Errorf("authorization provider: %w", err)
		}
		req.Header.Set("Authorization", value)
		return nil
	}
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}
	return nil
}

func (c *FacilitatorClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *FacilitatorClient) verifyTimeout() time.Duration {
	if c.Timeouts.VerifyTimeout > 0 {
		return c.Timeouts.VerifyTimeout
	}
	return x402.DefaultTimeouts.VerifyTimeout
}

func (c *FacilitatorClient) settleTimeout() time.Duration {
	if c.Timeouts.SettleTimeout > 0 {
		return c.Timeouts.SettleTimeout
	}
	return x402.DefaultTimeouts.SettleTimeout
}

func (c *FacilitatorClient) requestTimeout() time.Duration {
	if c.Timeouts.RequestTimeout > 0 {
		return c.Timeouts.RequestTimeout
	}
	return x402.DefaultTimeouts.RequestTimeout
}

// isTransient reports whether an error is worth retrying: facilitator
// unreachable, but not semantic rejections.
func isTransient(err error) bool {
	return errors.Is(err, x402.ErrFacilitatorUnavailable)
}
