// Package x402 implements the x402 payment protocol: an HTTP-native flow in
// which a resource server demands payment for content, a client produces a
// signed payment payload, and a facilitator verifies and settles that payload
// against a blockchain network.
//
// The package contains the protocol engine only. It is organized around three
// participants, each with its own capability interface implemented per
// (scheme, network) pair:
//
//   - SchemeNetworkClient creates signed payment payloads (client side).
//   - SchemeNetworkServer converts prices into payment requirements and
//     enriches them with scheme-specific data (resource-server side).
//   - SchemeNetworkFacilitator verifies and settles payloads (facilitator
//     side).
//
// Concrete scheme implementations live in schemes/, HTTP plumbing in http/,
// and framework adapters in http/gin, http/chi and http/pocketbase. The
// engine itself performs no blockchain RPC, holds no keys, and keeps no state
// across requests.
package x402
