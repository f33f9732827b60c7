package x402

import (
	"errors"
	"fmt"
)

// Sentinel errors for protocol-level failures.
var (
	// ErrMalformedHeader indicates a payment header that could not be decoded.
	ErrMalformedHeader = errors.New("malformed payment header")

	// ErrUnsupportedVersion indicates an unsupported x402 protocol version.
	ErrUnsupportedVersion = errors.New("unsupported x402 version")

	// ErrUnsupportedScheme indicates no capability is registered for the
	// requested payment scheme.
	ErrUnsupportedScheme = errors.New("unsupported payment scheme")

	// ErrUnsupportedNetwork indicates no capability is registered for the
	// requested network.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrNoMatchingRequirements indicates that none of the offered payment
	// requirements can be satisfied or matched.
	ErrNoMatchingRequirements = errors.New("no matching payment requirements")

	// ErrInvalidPrice indicates a price that could not be parsed.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidAmount indicates an amount that is not a valid smallest-unit
	// integer string.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoFacilitator indicates no facilitator client covers the requested
	// (scheme, network) combination.
	ErrNoFacilitator = errors.New("no facilitator for scheme/network")

	// ErrFacilitatorUnavailable indicates the facilitator could not be
	// reached or answered with a transport-level failure.
	ErrFacilitatorUnavailable = errors.New("facilitator unavailable")

	// ErrVerificationFailed indicates the verify call failed at the
	// infrastructure level (distinct from a semantic isValid=false).
	ErrVerificationFailed = errors.New("verification failed")

	// ErrSettlementFailed indicates settlement did not complete.
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrInvalidKey indicates missing or malformed signing key material.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidKeystore indicates a keystore file that could not be read
	// or decrypted.
	ErrInvalidKeystore = errors.New("invalid keystore")

	// ErrInvalidMnemonic indicates a BIP-39 phrase that failed validation
	// or key derivation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrAmountExceeded indicates a required amount above the signer's
	// configured per-payment limit.
	ErrAmountExceeded = errors.New("amount exceeds configured maximum")
)

// Error codes carried by PaymentError for programmatic branching.
const (
	ErrCodeUnsupportedScheme  = "unsupported_scheme"
	ErrCodeUnsupportedNetwork = "unsupported_network"
	ErrCodeInvalidPayment     = "invalid_payment"
	ErrCodeInvalidPrice       = "invalid_price"
	ErrCodeMissingField       = "missing_field"
	ErrCodeNoFacilitator      = "no_facilitator"
	ErrCodeSigningFailed      = "signing_failed"
	ErrCodeSettlementFailed   = "settlement_failed"
)

// PaymentError is a structured protocol error with a stable code and optional
// detail fields. It is used for configuration and per-request failures that
// callers may want to branch on.
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is/errors.As on the wrapped cause.
func (e *PaymentError) Unwrap() error { return e.Err }

// WithDetail attaches a detail field and returns the error for chaining.
func (e *PaymentError) WithDetail(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewPaymentError creates a PaymentError wrapping an optional cause.
func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}
