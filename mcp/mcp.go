// Package mcp gates MCP tool calls behind x402 payments. The server side
// wraps an mcp-go streamable HTTP server and answers unpaid tools/call
// requests with a JSON-RPC 402 error carrying payment requirements; the
// client side wraps an mcp-go transport and pays such errors transparently.
//
// Payments ride in the JSON-RPC envelope rather than HTTP headers: the
// payment payload in params._meta["x402/payment"] and the settlement
// receipt in result._meta["x402/payment-response"].
package mcp

// Metadata keys inside the JSON-RPC params and result envelopes.
const (
	MetaKeyPayment         = "x402/payment"
	MetaKeyPaymentResponse = "x402/payment-response"
)

// toolResource names a tool in challenge and receipt metadata.
func toolResource(name string) string {
	return "mcp://tools/" + name
}
