package x402

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// parseUnits parses a smallest-unit amount string as a non-negative integer.
func parseUnits(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// ParseMoney normalizes a human price string into a decimal amount. Accepted
// forms are "$1.50", "1.50", "1.50 USD" and "1.50 USDC"; currency markers are
// stripped, the numeric part must be a valid non-negative decimal.
func ParseMoney(price string) (decimal.Decimal, error) {
	s := strings.TrimSpace(price)
	s = strings.TrimPrefix(s, "$")
	for _, suffix := range []string{" USDC", " USD", "USDC", "USD"} {
		if strings.HasSuffix(strings.ToUpper(s), suffix) {
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty price %q", ErrInvalidPrice, price)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, price)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative price %q", ErrInvalidPrice, price)
	}
	return amount, nil
}

// AsAssetAmount detects a price already expressed as an asset and
// smallest-unit amount. It accepts an AssetAmount value, a pointer to one, or
// a decoded JSON map with "asset" and "amount" keys. Any other value returns
// (nil, false).
func AsAssetAmount(price Price) (*AssetAmount, bool) {
	switch v := price.(type) {
	case AssetAmount:
		return &v, true
	case *AssetAmount:
		if v == nil {
			return nil, false
		}
		cp := *v
		return &cp, true
	case map[string]interface{}:
		asset, okA := v["asset"].(string)
		amount, okB := v["amount"].(string)
		if !okA || !okB {
			return nil, false
		}
		aa := &AssetAmount{Asset: asset, Amount: amount}
		if extra, ok := v["extra"].(map[string]interface{}); ok {
			aa.Extra = extra
		}
		return aa, true
	}
	return nil, false
}

// RunMoneyParsers resolves a decimal amount through an ordered parser chain.
// The first parser returning a non-nil result wins; a parser error aborts the
// chain. When every parser passes, the network's default USDC asset is used.
func RunMoneyParsers(parsers []MoneyParser, amount decimal.Decimal, network Network) (*AssetAmount, error) {
	for _, parse := range parsers {
		result, err := parse(amount, network)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return DefaultUSDCParser(amount, network)
}

// DefaultUSDCParser converts a decimal amount to the network's built-in USDC
// asset at its native decimals. It is the tail of every parser chain.
func DefaultUSDCParser(amount decimal.Decimal, network Network) (*AssetAmount, error) {
	cfg, ok := USDCAsset(network)
	if !ok {
		return nil, fmt.Errorf("%w: no default asset for network %q", ErrInvalidPrice, network)
	}
	units := amount.Shift(cfg.USDCDecimals)
	if !units.IsInteger() {
		return nil, fmt.Errorf("%w: %s exceeds %d decimals for %s", ErrInvalidPrice, amount, cfg.USDCDecimals, network)
	}
	aa := &AssetAmount{
		Asset:  cfg.USDCAddress,
		Amount: units.String(),
	}
	if cfg.USDCName != "" {
		aa.Extra = map[string]interface{}{"name": cfg.USDCName}
		if cfg.USDCVersion != "" {
			aa.Extra["version"] = cfg.USDCVersion
		}
	}
	return aa, nil
}

// ResolvePrice turns an arbitrary Price into an asset and smallest-unit
// amount for a network. An AssetAmount-shaped price passes through untouched;
// anything else is coerced to a decimal and resolved through the parser
// chain. Scheme servers call this from ParsePrice.
func ResolvePrice(parsers []MoneyParser, price Price, network Network) (*AssetAmount, error) {
	aa, amount, err := coercePrice(price)
	if err != nil {
		return nil, err
	}
	if aa != nil {
		return aa, nil
	}
	return RunMoneyParsers(parsers, amount, network)
}

// coercePrice turns an arbitrary Price value into either a ready AssetAmount
// or a decimal amount for the parser chain.
func coercePrice(price Price) (*AssetAmount, decimal.Decimal, error) {
	if aa, ok := AsAssetAmount(price); ok {
		return aa, decimal.Zero, nil
	}
	switch v := price.(type) {
	case string:
		amount, err := ParseMoney(v)
		return nil, amount, err
	case float64:
		return nil, decimal.NewFromFloat(v), nil
	case int:
		return nil, decimal.NewFromInt(int64(v)), nil
	case int64:
		return nil, decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return nil, v, nil
	case json.Number:
		amount, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, v)
		}
		return nil, amount, nil
	}
	return nil, decimal.Zero, fmt.Errorf("%w: unsupported price type %T", ErrInvalidPrice, price)
}
