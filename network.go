package x402

import (
	"fmt"
	"strings"
)

// Network identifies a blockchain network in CAIP-2 form, "namespace:reference"
// (e.g. "eip155:8453" for Base, "solana:mainnet"). A reference of "*" makes the
// network a wildcard pattern matching every network in its namespace.
type Network string

// Parse splits the network into its namespace and reference components.
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.SplitN(string(n), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid network identifier %q: want namespace:reference", string(n))
	}
	return parts[0], parts[1], nil
}

// IsWildcard reports whether the network is a wildcard pattern like "eip155:*".
func (n Network) IsWildcard() bool {
	return strings.HasSuffix(string(n), ":*")
}

// Namespace returns the CAIP-2 namespace, or "" if the identifier is malformed.
func (n Network) Namespace() string {
	ns, _, err := n.Parse()
	if err != nil {
		return ""
	}
	return ns
}

// Match reports whether this network matches the given pattern. An exact match
// always succeeds; a wildcard on either side matches any network that shares
// its namespace.
func (n Network) Match(pattern Network) bool {
	if n == pattern {
		return true
	}
	if pattern.IsWildcard() {
		prefix := strings.TrimSuffix(string(pattern), "*")
		return strings.HasPrefix(string(n), prefix)
	}
	if n.IsWildcard() {
		prefix := strings.TrimSuffix(string(n), "*")
		return strings.HasPrefix(string(pattern), prefix)
	}
	return false
}
