package x402

// Version constants for the x402 protocol.
const (
	// ProtocolVersion is the current x402 protocol version.
	ProtocolVersion = 2

	// ProtocolVersionLegacy is the previous protocol version, still accepted
	// on the wire for backward compatibility.
	ProtocolVersionLegacy = 1
)

// Price is what a route charges for access. It is a tagged union:
//
//   - a string such as "$0.10" or "0.10" (a decimal currency amount),
//   - a float64 or int decimal currency amount,
//   - an AssetAmount (or *AssetAmount) already expressed in smallest units.
//
// String and numeric prices are converted by the scheme's money parser;
// AssetAmount prices bypass parsing entirely.
type Price interface{}

// AssetAmount is an exact amount of a specific on-chain asset.
type AssetAmount struct {
	// Asset is the token contract address (EVM) or mint address (SVM).
	Asset string `json:"asset"`

	// Amount is the value in the asset's smallest unit, as a decimal string.
	Amount string `json:"amount"`

	// Extra carries scheme-specific metadata for the asset.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequirements describes one acceptable way to pay for a resource.
// Values are immutable once built; a resource may advertise several, one per
// accepted (scheme, network) combination.
type PaymentRequirements struct {
	// Scheme is the payment scheme identifier (e.g. "exact").
	Scheme string `json:"scheme"`

	// Network is the CAIP-2 network identifier.
	Network Network `json:"network"`

	// Asset is the token contract or mint address.
	Asset string `json:"asset"`

	// Amount is the payment amount in the asset's smallest unit.
	Amount string `json:"amount"`

	// PayTo is the recipient address.
	PayTo string `json:"payTo"`

	// MaxTimeoutSeconds bounds how long the payment authorization stays valid.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Extra carries scheme-specific data (EIP-712 domain parameters, fee
	// payer addresses, and the like).
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// ResourceInfo describes the resource a payment buys access to.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentRequired is the body of a 402 challenge: the set of payment methods
// the server will accept for a resource.
type PaymentRequired struct {
	X402Version int                    `json:"x402Version"`
	Error       string                 `json:"error,omitempty"`
	Resource    *ResourceInfo          `json:"resource,omitempty"`
	Accepts     []PaymentRequirements  `json:"accepts"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// PaymentPayload is a client's proof of payment: a scheme-specific signed
// payload plus a copy of the requirements it was built against.
type PaymentPayload struct {
	X402Version int `json:"x402Version"`

	// Payload contains the scheme-specific signed payment data, e.g. an
	// EIP-3009 signature and authorization, or an encoded transaction.
	Payload map[string]interface{} `json:"payload"`

	// Accepted is the PaymentRequirements entry this payload was built
	// against. Servers match on it but never trust it without reconstructing
	// their own requirements.
	Accepted PaymentRequirements `json:"accepted"`

	Resource   *ResourceInfo          `json:"resource,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// VerifyResponse is the facilitator's verdict on a payment payload. A nil
// error with IsValid=false is a semantic rejection; transport and
// infrastructure failures are reported as errors instead.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the facilitator's settlement result.
type SettleResponse struct {
	Success     bool    `json:"success"`
	ErrorReason string  `json:"errorReason,omitempty"`
	Payer       string  `json:"payer,omitempty"`
	Transaction string  `json:"transaction"`
	Network     Network `json:"network"`
}

// SupportedKind advertises one (scheme, network) combination a facilitator
// can verify and settle.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     Network                `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse is a facilitator's capability advertisement.
type SupportedResponse struct {
	Kinds      []SupportedKind     `json:"kinds"`
	Extensions []string            `json:"extensions"`
	Signers    map[string][]string `json:"signers"`
}

// ResourceConfig is the pricing declaration for a protected resource on one
// (scheme, network) combination.
type ResourceConfig struct {
	Scheme            string  `json:"scheme"`
	PayTo             string  `json:"payTo"`
	Price             Price   `json:"price"`
	Network           Network `json:"network"`
	MaxTimeoutSeconds int     `json:"maxTimeoutSeconds,omitempty"`
}

// DefaultMaxTimeoutSeconds is applied when a ResourceConfig does not specify
// an authorization validity window.
const DefaultMaxTimeoutSeconds = 300
