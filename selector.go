package x402

// PaymentPolicy filters or reorders candidate payment requirements before
// selection. Policies run in registration order; an empty result aborts
// payment creation.
type PaymentPolicy func(candidates []PaymentRequirements) []PaymentRequirements

// RequirementsSelector picks the requirement to pay from a non-empty,
// policy-filtered candidate list.
type RequirementsSelector func(candidates []PaymentRequirements) PaymentRequirements

// FirstRequirementSelector takes the first candidate, preserving the server's
// preference order. It is the default selector.
func FirstRequirementSelector(candidates []PaymentRequirements) PaymentRequirements {
	return candidates[0]
}

// NetworkPolicy keeps only requirements on networks matching one of the given
// patterns. Patterns may be wildcards like "eip155:*".
func NetworkPolicy(patterns ...Network) PaymentPolicy {
	return func(candidates []PaymentRequirements) []PaymentRequirements {
		var out []PaymentRequirements
		for _, req := range candidates {
			for _, p := range patterns {
				if req.Network.Match(p) {
					out = append(out, req)
					break
				}
			}
		}
		return out
	}
}

// SchemePolicy keeps only requirements using one of the given schemes.
func SchemePolicy(schemes ...string) PaymentPolicy {
	return func(candidates []PaymentRequirements) []PaymentRequirements {
		var out []PaymentRequirements
		for _, req := range candidates {
			for _, s := range schemes {
				if req.Scheme == s {
					out = append(out, req)
					break
				}
			}
		}
		return out
	}
}

// MaxAmountPolicy keeps only requirements whose smallest-unit amount does not
// exceed the limit. Requirements with unparseable amounts are dropped.
func MaxAmountPolicy(limit string) PaymentPolicy {
	return func(candidates []PaymentRequirements) []PaymentRequirements {
		max, ok := parseUnits(limit)
		if !ok {
			return nil
		}
		var out []PaymentRequirements
		for _, req := range candidates {
			amount, ok := parseUnits(req.Amount)
			if !ok {
				continue
			}
			if amount.Cmp(max) <= 0 {
				out = append(out, req)
			}
		}
		return out
	}
}
