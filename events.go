package x402

import "time"

// PaymentEventType represents the type of payment lifecycle event.
type PaymentEventType string

const (
	PaymentEventAttempt PaymentEventType = "payment_attempt"
	PaymentEventSuccess PaymentEventType = "payment_success"
	PaymentEventFailure PaymentEventType = "payment_failure"
)

// PaymentEvent describes one payment lifecycle event on the client side.
type PaymentEvent struct {
	Type        PaymentEventType
	Timestamp   time.Time
	Method      string
	URL         string
	Network     Network
	Scheme      string
	Amount      string
	Asset       string
	Recipient   string
	Transaction string
	Payer       string
	Error       error
	Duration    time.Duration
}

// PaymentCallback receives payment lifecycle events.
type PaymentCallback func(event PaymentEvent)
