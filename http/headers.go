package http

// Protocol header names. The PAYMENT-* names are the current wire form; the
// X-PAYMENT names are the legacy form still accepted and emitted for older
// clients.
const (
	// HeaderPaymentSignature carries the base64-encoded payment payload on
	// requests.
	HeaderPaymentSignature = "PAYMENT-SIGNATURE"

	// HeaderPaymentLegacy is the legacy request header for payment payloads.
	// When both headers are present, HeaderPaymentSignature wins.
	HeaderPaymentLegacy = "X-PAYMENT"

	// HeaderPaymentRequired carries the base64-encoded challenge on 402
	// responses, alongside the JSON body.
	HeaderPaymentRequired = "PAYMENT-REQUIRED"

	// HeaderPaymentResponse carries the base64-encoded settlement result on
	// successful responses.
	HeaderPaymentResponse = "PAYMENT-RESPONSE"

	// HeaderPaymentResponseLegacy is the legacy settlement result header,
	// set alongside HeaderPaymentResponse.
	HeaderPaymentResponseLegacy = "X-PAYMENT-RESPONSE"
)
