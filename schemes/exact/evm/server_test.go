package evm

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	x402 "github.com/x402labs/x402-go"
)

func TestServerParsePrice(t *testing.T) {
	server := NewServer()

	t.Run("dollar string resolves to USDC", func(t *testing.T) {
		asset, err := server.ParsePrice("$1.50", x402.NetworkBase)
		if err != nil {
			t.Fatalf("ParsePrice() error = %v", err)
		}
		if asset.Asset != baseUSDCAddress {
			t.Errorf("Asset = %s, want base USDC", asset.Asset)
		}
		if asset.Amount != "1500000" {
			t.Errorf("Amount = %s, want 1500000", asset.Amount)
		}
	})

	t.Run("asset amount passes through", func(t *testing.T) {
		in := x402.AssetAmount{Asset: "0x1", Amount: "42"}
		asset, err := server.ParsePrice(in, x402.NetworkBase)
		if err != nil {
			t.Fatalf("ParsePrice() error = %v", err)
		}
		if asset.Asset != "0x1" || asset.Amount != "42" {
			t.Errorf("ParsePrice() = %+v", asset)
		}
	})

	t.Run("non-evm network rejected", func(t *testing.T) {
		if _, err := server.ParsePrice("$1", x402.NetworkSolana); !errors.Is(err, x402.ErrUnsupportedNetwork) {
			t.Errorf("ParsePrice() error = %v, want ErrUnsupportedNetwork", err)
		}
	})

	t.Run("custom parser wins", func(t *testing.T) {
		custom := func(amount decimal.Decimal, network x402.Network) (*x402.AssetAmount, error) {
			return &x402.AssetAmount{Asset: "0xDAI", Amount: amount.Shift(18).String()}, nil
		}
		server := NewServer(WithMoneyParser(custom))
		asset, err := server.ParsePrice("$2", x402.NetworkBase)
		if err != nil {
			t.Fatalf("ParsePrice() error = %v", err)
		}
		if asset.Asset != "0xDAI" {
			t.Errorf("Asset = %s, want custom parser result", asset.Asset)
		}
	})
}

func TestServerEnhancePaymentRequirements(t *testing.T) {
	server := NewServer()

	t.Run("catalog stamps domain for USDC", func(t *testing.T) {
		req := baseRequirements("1000000")
		if err := server.EnhancePaymentRequirements(context.Background(), &req, x402.SupportedResponse{}); err != nil {
			t.Fatalf("EnhancePaymentRequirements() error = %v", err)
		}
		if req.Extra["name"] != "USD Coin" || req.Extra["version"] != "2" {
			t.Errorf("Extra = %+v, want catalog domain", req.Extra)
		}
	})

	t.Run("facilitator extra overrides catalog", func(t *testing.T) {
		req := baseRequirements("1000000")
		supported := x402.SupportedResponse{
			Kinds: []x402.SupportedKind{{
				X402Version: x402.ProtocolVersion,
				Scheme:      SchemeName,
				Network:     x402.NetworkFamilyEVM,
				Extra:       map[string]interface{}{"name": "USDC", "version": "3"},
			}},
		}
		if err := server.EnhancePaymentRequirements(context.Background(), &req, supported); err != nil {
			t.Fatalf("EnhancePaymentRequirements() error = %v", err)
		}
		if req.Extra["name"] != "USDC" || req.Extra["version"] != "3" {
			t.Errorf("Extra = %+v, want facilitator domain", req.Extra)
		}
	})

	t.Run("existing extra is kept", func(t *testing.T) {
		req := baseRequirements("1000000")
		req.Extra = map[string]interface{}{"name": "Pinned"}
		if err := server.EnhancePaymentRequirements(context.Background(), &req, x402.SupportedResponse{}); err != nil {
			t.Fatalf("EnhancePaymentRequirements() error = %v", err)
		}
		if req.Extra["name"] != "Pinned" {
			t.Errorf("Extra name = %v, want existing value kept", req.Extra["name"])
		}
		if req.Extra["version"] != "2" {
			t.Errorf("Extra version = %v, want catalog fill for missing key", req.Extra["version"])
		}
	})

	t.Run("unknown asset without advertisement is untouched", func(t *testing.T) {
		req := baseRequirements("1000000")
		req.Asset = "0x0000000000000000000000000000000000000001"
		if err := server.EnhancePaymentRequirements(context.Background(), &req, x402.SupportedResponse{}); err != nil {
			t.Fatalf("EnhancePaymentRequirements() error = %v", err)
		}
		if req.Extra != nil {
			t.Errorf("Extra = %+v, want nil", req.Extra)
		}
	})

	t.Run("mismatched kind ignored", func(t *testing.T) {
		req := baseRequirements("1000000")
		req.Asset = "0x0000000000000000000000000000000000000001"
		supported := x402.SupportedResponse{
			Kinds: []x402.SupportedKind{{
				Scheme:  SchemeName,
				Network: x402.NetworkSolana,
				Extra:   map[string]interface{}{"name": "Wrong", "version": "9"},
			}},
		}
		if err := server.EnhancePaymentRequirements(context.Background(), &req, supported); err != nil {
			t.Fatalf("EnhancePaymentRequirements() error = %v", err)
		}
		if req.Extra != nil {
			t.Errorf("Extra = %+v, want nil for kind on another family", req.Extra)
		}
	})
}
