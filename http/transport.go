package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
)

// Transport is a RoundTripper that handles x402 payment flows. It wraps an
// existing http.RoundTripper; on a 402 response it decodes the challenge,
// creates a payment through the payment client and retries the request once
// with the payment header attached.
type Transport struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Payments selects requirements and signs payloads.
	Payments *x402.Client

	// OnPaymentAttempt is called when a payment attempt is made.
	OnPaymentAttempt x402.PaymentCallback

	// OnPaymentSuccess is called when a payment settles.
	OnPaymentSuccess x402.PaymentCallback

	// OnPaymentFailure is called when a payment fails.
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper. It makes the initial request, and
// on 402 Payment Required signs a payment and retries once. Request bodies
// are buffered so the retry can replay them.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Base == nil {
		t.Base = http.DefaultTransport
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
	}

	resp, err := t.Base.RoundTrip(requestWithBody(req, bodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	challenge, err := parseChallenge(resp)
	resp.Body.Close()
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayment, "failed to parse payment challenge", err)
	}

	startTime := time.Now()
	payload, err := t.Payments.CreatePayment(req.Context(), *challenge)
	if err != nil {
		t.fireFailure(req, err, time.Since(startTime))
		return nil, err
	}

	t.fireAttempt(req, payload, startTime)

	paymentHeader, err := encoding.EncodePayment(*payload)
	if err != nil {
		t.fireFailure(req, err, time.Since(startTime))
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build payment header", err)
	}

	reqRetry := requestWithBody(req, bodyBytes)
	reqRetry.Header.Set(HeaderPaymentSignature, paymentHeader)
	reqRetry.Header.Set(HeaderPaymentLegacy, paymentHeader)

	respRetry, err := t.Base.RoundTrip(reqRetry)
	duration := time.Since(startTime)
	if err != nil {
		t.fireFailure(req, err, duration)
		return nil, err
	}

	if settlement := GetSettlement(respRetry); settlement != nil && settlement.Success && t.OnPaymentSuccess != nil {
		t.OnPaymentSuccess(x402.PaymentEvent{
			Type:        x402.PaymentEventSuccess,
			Timestamp:   time.Now(),
			Method:      "HTTP",
			URL:         req.URL.String(),
			Network:     payload.Accepted.Network,
			Scheme:      payload.Accepted.Scheme,
			Amount:      payload.Accepted.Amount,
			Asset:       payload.Accepted.Asset,
			Recipient:   payload.Accepted.PayTo,
			Transaction: settlement.Transaction,
			Payer:       settlement.Payer,
			Duration:    duration,
		})
	}

	return respRetry, nil
}

func (t *Transport) fireAttempt(req *http.Request, payload *x402.PaymentPayload, startTime time.Time) {
	if t.OnPaymentAttempt == nil {
		return
	}
	t.OnPaymentAttempt(x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: startTime,
		Method:    "HTTP",
		URL:       req.URL.String(),
		Network:   payload.Accepted.Network,
		Scheme:    payload.Accepted.Scheme,
		Amount:    payload.Accepted.Amount,
		Asset:     payload.Accepted.Asset,
		Recipient: payload.Accepted.PayTo,
	})
}

func (t *Transport) fireFailure(req *http.Request, err error, duration time.Duration) {
	if t.OnPaymentFailure == nil {
		return
	}
	t.OnPaymentFailure(x402.PaymentEvent{
		Type:      x402.PaymentEventFailure,
		Timestamp: time.Now(),
		Method:    "HTTP",
		URL:       req.URL.String(),
		Error:     err,
		Duration:  duration,
	})
}

// parseChallenge extracts the payment challenge from a 402 response. The
// PAYMENT-REQUIRED header is authoritative when present; the JSON body is the
// fallback for servers that only send the body form.
func parseChallenge(resp *http.Response) (*x402.PaymentRequired, error) {
	if header := resp.Header.Get(HeaderPaymentRequired); header != "" {
		challenge, err := encoding.DecodeChallenge(header)
		if err != nil {
			return nil, fmt.Errorf("failed to decode challenge header: %w", err)
		}
		return &challenge, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var challenge x402.PaymentRequired
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, fmt.Errorf("failed to parse challenge JSON: %w", err)
	}
	if len(challenge.Accepts) == 0 {
		return nil, fmt.Errorf("no payment requirements in response")
	}
	return &challenge, nil
}

// GetSettlement extracts settlement information from an HTTP response.
// Returns nil if no settlement header is present or parsing fails.
func GetSettlement(resp *http.Response) *x402.SettleResponse {
	header := resp.Header.Get(HeaderPaymentResponse)
	if header == "" {
		header = resp.Header.Get(HeaderPaymentResponseLegacy)
	}
	if header == "" {
		return nil
	}

	settlement, err := encoding.DecodeSettlement(header)
	if err != nil {
		return nil
	}
	return &settlement
}

// requestWithBody clones a request with a replayable body.
func requestWithBody(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
	}
	return clone
}
