package x402

import (
	"context"
	"errors"
	"testing"
)

func TestFacilitatorVerifyAndSettle(t *testing.T) {
	impl := &cashFacilitator{}
	f := NewFacilitator().Register(impl)

	ctx := context.Background()
	good := PaymentPayload{
		X402Version: ProtocolVersion,
		Payload:     map[string]interface{}{"note": "100"},
		Accepted:    cashRequirements("100"),
	}

	resp, err := f.Verify(ctx, good, cashRequirements("100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsValid || resp.Payer != "customer-1" {
		t.Errorf("unexpected verify response %+v", resp)
	}

	bad := good
	bad.Payload = map[string]interface{}{"note": "50"}
	resp, err = f.Verify(ctx, bad, cashRequirements("100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.IsValid {
		t.Error("short payment should be rejected")
	}

	settle, err := f.Settle(ctx, good, cashRequirements("100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !settle.Success || settle.Transaction != "receipt-42" {
		t.Errorf("unexpected settle response %+v", settle)
	}
}

func TestFacilitatorRejectsUnknownVersion(t *testing.T) {
	f := NewFacilitator().Register(&cashFacilitator{})

	resp, err := f.Verify(context.Background(), PaymentPayload{X402Version: 99}, cashRequirements("100"))
	if err != nil {
		t.Fatalf("version rejection is semantic, not an error: %v", err)
	}
	if resp.IsValid {
		t.Error("unknown protocol version must be rejected")
	}
}

func TestFacilitatorUnknownKind(t *testing.T) {
	f := NewFacilitator().Register(&cashFacilitator{})

	other := cashRequirements("100")
	other.Network = NetworkBase
	_, err := f.Verify(context.Background(), PaymentPayload{X402Version: ProtocolVersion}, other)
	if !errors.Is(err, ErrNoFacilitator) {
		t.Fatalf("expected ErrNoFacilitator, got %v", err)
	}
	if _, err := f.Settle(context.Background(), PaymentPayload{}, other); !errors.Is(err, ErrNoFacilitator) {
		t.Fatalf("expected ErrNoFacilitator, got %v", err)
	}
}

func TestFacilitatorGetSupported(t *testing.T) {
	f := NewFacilitator(WithExtensions("bazaar")).Register(&cashFacilitator{
		signers: []string{"till-key-1", "till-key-1", "till-key-2"},
	})

	resp, err := f.GetSupported(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Kinds) != 1 {
		t.Fatalf("expected one kind, got %d", len(resp.Kinds))
	}
	kind := resp.Kinds[0]
	if kind.Scheme != cashScheme || kind.Network != cashFamily || kind.X402Version != ProtocolVersion {
		t.Errorf("unexpected kind %+v", kind)
	}
	if kind.Extra["till"] != cashRecipient {
		t.Errorf("kind should carry scheme extra, got %v", kind.Extra)
	}

	if len(resp.Extensions) != 1 || resp.Extensions[0] != "bazaar" {
		t.Errorf("unexpected extensions %v", resp.Extensions)
	}

	signers := resp.Signers["cash:*"]
	if len(signers) != 2 {
		t.Errorf("signers should be grouped by family and deduplicated, got %v", signers)
	}
}
