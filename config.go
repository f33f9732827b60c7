package x402

import (
	"fmt"
	"time"
)

// TimeoutConfig holds per-operation timeouts for facilitator calls. Verify is
// a fast signature check; settle submits an on-chain transaction and needs a
// much longer window.
type TimeoutConfig struct {
	// VerifyTimeout bounds verify calls.
	VerifyTimeout time.Duration

	// SettleTimeout bounds settle calls.
	SettleTimeout time.Duration

	// RequestTimeout bounds everything else, including supported-kind
	// discovery.
	RequestTimeout time.Duration
}

// DefaultTimeouts provides sensible defaults for facilitator operations.
var DefaultTimeouts = TimeoutConfig{
	VerifyTimeout:  5 * time.Second,
	SettleTimeout:  60 * time.Second,
	RequestTimeout: 120 * time.Second,
}

// Validate checks the timeout configuration for consistency.
func (c TimeoutConfig) Validate() error {
	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("verify timeout must be positive, got %v", c.VerifyTimeout)
	}
	if c.SettleTimeout <= 0 {
		return fmt.Errorf("settle timeout must be positive, got %v", c.SettleTimeout)
	}
	if c.SettleTimeout < c.VerifyTimeout {
		return fmt.Errorf("settle timeout (%v) must not be less than verify timeout (%v)", c.SettleTimeout, c.VerifyTimeout)
	}
	return nil
}

// WithVerifyTimeout returns a copy with the verify timeout replaced.
func (c TimeoutConfig) WithVerifyTimeout(d time.Duration) TimeoutConfig {
	c.VerifyTimeout = d
	return c
}

// WithSettleTimeout returns a copy with the settle timeout replaced.
func (c TimeoutConfig) WithSettleTimeout(d time.Duration) TimeoutConfig {
	c.SettleTimeout = d
	return c
}

// WithRequestTimeout returns a copy with the request timeout replaced.
func (c TimeoutConfig) WithRequestTimeout(d time.Duration) TimeoutConfig {
	c.RequestTimeout = d
	return c
}
