package x402

import "fmt"

// Registry maps (scheme, network) pairs to capability implementations.
// Lookups resolve exact network matches before wildcard family matches, and
// registering the same pair twice overwrites the earlier entry.
//
// Registries are populated during setup and read-only afterwards, so lookups
// take no locks. Do not register entries while requests are being served.
type Registry[T any] struct {
	entries map[string]T
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

func registryKey(scheme string, network Network) string {
	return fmt.Sprintf("%s|%s", scheme, network)
}

// Register adds an implementation for the given scheme and network. The
// network may be a wildcard family such as "eip155:*". Later registrations
// for the same pair win.
func (r *Registry[T]) Register(scheme string, network Network, impl T) {
	key := registryKey(scheme, network)
	if _, exists := r.entries[key]; !exists {
		r.order = append(r.order, key)
	}
	r.entries[key] = impl
}

// Lookup resolves an implementation for the scheme and a concrete network.
// An exact entry wins over a wildcard entry for the same namespace.
func (r *Registry[T]) Lookup(scheme string, network Network) (T, bool) {
	if impl, ok := r.entries[registryKey(scheme, network)]; ok {
		return impl, true
	}
	if ns := network.Namespace(); ns != "" {
		if impl, ok := r.entries[registryKey(scheme, Network(ns+":*"))]; ok {
			return impl, true
		}
	}
	var zero T
	return zero, false
}

// Entries returns all registered implementations in registration order.
func (r *Registry[T]) Entries() []T {
	out := make([]T, 0, len(r.entries))
	for _, key := range r.order {
		out = append(out, r.entries[key])
	}
	return out
}

// Pairs returns the registered (scheme, network) pairs in registration order.
func (r *Registry[T]) Pairs() []SchemeNetwork {
	out := make([]SchemeNetwork, 0, len(r.order))
	for _, key := range r.order {
		var scheme, network string
		for i := 0; i < len(key); i++ {
			if key[i] == '|' {
				scheme, network = key[:i], key[i+1:]
				break
			}
		}
		out = append(out, SchemeNetwork{Scheme: scheme, Network: Network(network)})
	}
	return out
}

// Len returns the number of registered entries.
func (r *Registry[T]) Len() int { return len(r.entries) }

// SchemeNetwork identifies one registered capability.
type SchemeNetwork struct {
	Scheme  string
	Network Network
}
