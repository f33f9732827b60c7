// Package validation checks payment requirements and payloads before they hit
// the wire. Struct-level rules run through go-playground/validator with custom
// validators for networks and chain addresses.
package validation

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/go-playground/validator/v10"

	x402 "github.com/x402labs/x402-go"
)

var (
	// evmAddressRegex matches Ethereum-style addresses (0x followed by 40 hex chars)
	evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

	// solanaAddressRegex matches Solana base58 addresses (32-44 chars, base58 charset)
	solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

	// caip2Regex matches namespace:reference network identifiers, wildcards included
	caip2Regex = regexp.MustCompile(`^[a-z0-9]+:[a-zA-Z0-9*_-]+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("caip2", func(fl validator.FieldLevel) bool {
		return caip2Regex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("units", func(fl validator.FieldLevel) bool {
		n, ok := new(big.Int).SetString(fl.Field().String(), 10)
		return ok && n.Sign() > 0
	})
	return v
}

// requirementRules mirrors the wire shape of PaymentRequirements with
// validator tags.
type requirementRules struct {
	Scheme  string `validate:"required"`
	Network string `validate:"required,caip2"`
	Asset   string `validate:"required"`
	Amount  string `validate:"required,units"`
	PayTo   string `validate:"required"`
	Timeout int    `validate:"gte=0"`
}

// ValidateAmount validates that an amount string is a positive integer in
// smallest units.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}

	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount format: %s", amount)
	}

	if amt.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0, got: %s", amount)
	}

	return nil
}

// ValidateAddress validates an address against the network's address format.
func ValidateAddress(address string, network x402.Network) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	networkType, ok := x402.GetNetworkType(network)
	if !ok {
		return fmt.Errorf("cannot validate address: unknown network %q", network)
	}

	switch networkType {
	case x402.NetworkTypeEVM:
		if !evmAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid EVM address format: %s (expected 0x followed by 40 hex characters)", address)
		}
		return nil

	case x402.NetworkTypeSVM:
		if !solanaAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid Solana address format: %s (expected base58 string 32-44 chars)", address)
		}
		return nil

	default:
		return fmt.Errorf("unsupported network type for address validation: %s", networkType)
	}
}

// ValidatePaymentRequirements checks a requirement's fields, network and
// addresses before it is served in a challenge.
func ValidatePaymentRequirements(req x402.PaymentRequirements) error {
	rules := requirementRules{
		Scheme:  req.Scheme,
		Network: string(req.Network),
		Asset:   req.Asset,
		Amount:  req.Amount,
		PayTo:   req.PayTo,
		Timeout: req.MaxTimeoutSeconds,
	}
	if err := validate.Struct(rules); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	// Address formats are only checked for network families the chain
	// catalog knows about. Unknown families still get the structural rules.
	if _, ok := x402.GetNetworkType(req.Network); !ok {
		return nil
	}

	if err := ValidateAddress(req.PayTo, req.Network); err != nil {
		return fmt.Errorf("invalid requirement: payTo %w", err)
	}

	if err := ValidateAddress(req.Asset, req.Network); err != nil {
		return fmt.Errorf("invalid requirement: asset %w", err)
	}

	return nil
}

// ValidatePaymentPayload checks a decoded payload's version and structure
// before verification.
func ValidatePaymentPayload(payment x402.PaymentPayload) error {
	if payment.X402Version != x402.ProtocolVersion && payment.X402Version != x402.ProtocolVersionLegacy {
		return fmt.Errorf("unsupported x402 version: %d", payment.X402Version)
	}

	if payment.Accepted.Scheme == "" {
		return fmt.Errorf("accepted scheme cannot be empty")
	}

	if payment.Accepted.Network == "" {
		return fmt.Errorf("accepted network cannot be empty")
	}

	if !caip2Regex.MatchString(string(payment.Accepted.Network)) {
		return fmt.Errorf("invalid network: %s", payment.Accepted.Network)
	}

	if payment.Payload == nil {
		return fmt.Errorf("payload cannot be nil")
	}

	return nil
}
