package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/x402labs/x402-go"
)

// Well-known development key (hardhat account 0).
const (
	testKeyHex      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress     = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testMnemonic    = "test test test test test test test test test test test junk"
	baseUSDCAddress = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

func testClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	client, err := NewClient(append([]ClientOption{WithPrivateKey(testKeyHex)}, opts...)...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func baseRequirements(amount string) x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            SchemeName,
		Network:           x402.NetworkBase,
		Asset:             baseUSDCAddress,
		Amount:            amount,
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		MaxTimeoutSeconds: 60,
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, x402.ErrInvalidKey) {
		t.Errorf("NewClient() error = %v, want ErrInvalidKey", err)
	}
}

func TestWithPrivateKey(t *testing.T) {
	t.Run("bare hex", func(t *testing.T) {
		client := testClient(t)
		if got := client.Address().Hex(); got != testAddress {
			t.Errorf("Address() = %s, want %s", got, testAddress)
		}
	})

	t.Run("0x prefix", func(t *testing.T) {
		client, err := NewClient(WithPrivateKey("0x" + testKeyHex))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if got := client.Address().Hex(); got != testAddress {
			t.Errorf("Address() = %s, want %s", got, testAddress)
		}
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := NewClient(WithPrivateKey("not-a-key"))
		if !errors.Is(err, x402.ErrInvalidKey) {
			t.Errorf("NewClient() error = %v, want ErrInvalidKey", err)
		}
	})
}

func TestWithMnemonic(t *testing.T) {
	t.Run("standard derivation", func(t *testing.T) {
		client, err := NewClient(WithMnemonic(testMnemonic, 0))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if got := client.Address().Hex(); got != testAddress {
			t.Errorf("Address() = %s, want %s", got, testAddress)
		}
	})

	t.Run("distinct account index", func(t *testing.T) {
		client, err := NewClient(WithMnemonic(testMnemonic, 1))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if got := client.Address().Hex(); got == testAddress {
			t.Error("account 1 derived the same address as account 0")
		}
	})

	t.Run("invalid phrase", func(t *testing.T) {
		_, err := NewClient(WithMnemonic("definitely not a mnemonic", 0))
		if !errors.Is(err, x402.ErrInvalidMnemonic) {
			t.Errorf("NewClient() error = %v, want ErrInvalidMnemonic", err)
		}
	})
}

func TestWithKeystore(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatal(err)
	}

	cryptoJSON, err := keystore.EncryptDataV3(crypto.FromECDSA(key), []byte("passw0rd"), keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatalf("EncryptDataV3() error = %v", err)
	}
	data, err := json.Marshal(map[string]interface{}{"crypto": cryptoJSON})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "keystore.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("correct password", func(t *testing.T) {
		client, err := NewClient(WithKeystore(path, "passw0rd"))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if got := client.Address().Hex(); got != testAddress {
			t.Errorf("Address() = %s, want %s", got, testAddress)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := NewClient(WithKeystore(path, "wrong"))
		if !errors.Is(err, x402.ErrInvalidKeystore) {
			t.Errorf("NewClient() error = %v, want ErrInvalidKeystore", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewClient(WithKeystore(filepath.Join(t.TempDir(), "nope.json"), "x"))
		if !errors.Is(err, x402.ErrInvalidKeystore) {
			t.Errorf("NewClient() error = %v, want ErrInvalidKeystore", err)
		}
	})
}

func TestChainID(t *testing.T) {
	tests := []struct {
		network x402.Network
		want    int64
		wantErr bool
	}{
		{x402.NetworkBase, 8453, false},
		{"eip155:1", 1, false},
		{"solana:mainnet", 0, true},
		{"eip155:abc", 0, true},
		{"base", 0, true},
	}

	for _, tt := range tests {
		got, err := ChainID(tt.network)
		if tt.wantErr {
			if !errors.Is(err, x402.ErrUnsupportedNetwork) {
				t.Errorf("ChainID(%q) error = %v, want ErrUnsupportedNetwork", tt.network, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ChainID(%q) error = %v", tt.network, err)
			continue
		}
		if got.Int64() != tt.want {
			t.Errorf("ChainID(%q) = %d, want %d", tt.network, got.Int64(), tt.want)
		}
	}
}

func TestSigningDomain(t *testing.T) {
	t.Run("extra wins", func(t *testing.T) {
		req := baseRequirements("1000000")
		req.Extra = map[string]interface{}{"name": "Custom Token", "version": "7"}
		name, version, err := signingDomain(req)
		if err != nil {
			t.Fatalf("signingDomain() error = %v", err)
		}
		if name != "Custom Token" || version != "7" {
			t.Errorf("signingDomain() = %q/%q", name, version)
		}
	})

	t.Run("catalog fallback for USDC", func(t *testing.T) {
		name, version, err := signingDomain(baseRequirements("1000000"))
		if err != nil {
			t.Fatalf("signingDomain() error = %v", err)
		}
		if name != "USD Coin" || version != "2" {
			t.Errorf("signingDomain() = %q/%q, want USD Coin/2", name, version)
		}
	})

	t.Run("unknown asset without extra", func(t *testing.T) {
		req := baseRequirements("1000000")
		req.Asset = "0x0000000000000000000000000000000000000001"
		_, _, err := signingDomain(req)
		var paymentErr *x402.PaymentError
		if !errors.As(err, &paymentErr) || paymentErr.Code != x402.ErrCodeMissingField {
			t.Errorf("signingDomain() error = %v, want missing_field payment error", err)
		}
	})
}

func TestSignRecoverRoundtrip(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatal(err)
	}

	auth := &TransferAuthorization{
		From:        common.HexToAddress(testAddress),
		To:          common.HexToAddress("0x209693Bc6afc0C5328bA36FaF03C514EF312287C"),
		Value:       big.NewInt(1000000),
		ValidAfter:  big.NewInt(1700000000),
		ValidBefore: big.NewInt(1700000600),
		Nonce:       common.HexToHash("0x0102030405060708091011121314151617181920212223242526272829303132"),
	}
	token := common.HexToAddress(baseUSDCAddress)
	chainID := big.NewInt(8453)

	signature, err := SignTransferAuthorization(key, token, chainID, auth, "USD Coin", "2")
	if err != nil {
		t.Fatalf("SignTransferAuthorization() error = %v", err)
	}
	if len(signature) != 132 {
		t.Fatalf("signature length = %d, want 0x plus 65 bytes", len(signature))
	}

	recovered, err := RecoverTransferAuthorization(signature, token, chainID, auth, "USD Coin", "2")
	if err != nil {
		t.Fatalf("RecoverTransferAuthorization() error = %v", err)
	}
	if recovered.Hex() != testAddress {
		t.Errorf("recovered = %s, want %s", recovered.Hex(), testAddress)
	}

	t.Run("tampered value recovers another signer", func(t *testing.T) {
		tampered := *auth
		tampered.Value = big.NewInt(9000000)
		recovered, err := RecoverTransferAuthorization(signature, token, chainID, &tampered, "USD Coin", "2")
		if err == nil && recovered.Hex() == testAddress {
			t.Error("tampered authorization still recovered the original signer")
		}
	})

	t.Run("malformed signature", func(t *testing.T) {
		if _, err := RecoverTransferAuthorization("0x1234", token, chainID, auth, "USD Coin", "2"); err == nil {
			t.Error("RecoverTransferAuthorization() error = nil, want malformed signature error")
		}
	})
}

func TestNewTransferAuthorization(t *testing.T) {
	from := common.HexToAddress(testAddress)
	to := common.HexToAddress("0x209693Bc6afc0C5328bA36FaF03C514EF312287C")

	first, err := NewTransferAuthorization(from, to, big.NewInt(100), 60)
	if err != nil {
		t.Fatalf("NewTransferAuthorization() error = %v", err)
	}
	second, err := NewTransferAuthorization(from, to, big.NewInt(100), 60)
	if err != nil {
		t.Fatalf("NewTransferAuthorization() error = %v", err)
	}

	if first.Nonce == (common.Hash{}) {
		t.Error("nonce is zero")
	}
	if first.Nonce == second.Nonce {
		t.Error("two authorizations share a nonce")
	}

	window := new(big.Int).Sub(first.ValidBefore, first.ValidAfter).Int64()
	if window != 70 {
		t.Errorf("validity window = %d, want 70 (timeout plus 10s backdate)", window)
	}
}

func TestCreatePaymentPayload(t *testing.T) {
	client := testClient(t)
	requirements := baseRequirements("1000000")

	payload, err := client.CreatePaymentPayload(context.Background(), requirements)
	if err != nil {
		t.Fatalf("CreatePaymentPayload() error = %v", err)
	}

	signature, ok := payload.Payload["signature"].(string)
	if !ok || len(signature) != 132 {
		t.Fatalf("payload signature = %v", payload.Payload["signature"])
	}

	authMap, ok := payload.Payload["authorization"].(map[string]interface{})
	if !ok {
		t.Fatalf("payload authorization = %T", payload.Payload["authorization"])
	}
	if authMap["from"] != testAddress {
		t.Errorf("authorization from = %v, want %s", authMap["from"], testAddress)
	}
	if authMap["value"] != "1000000" {
		t.Errorf("authorization value = %v, want 1000000", authMap["value"])
	}

	// The signature must recover to the client's address when reassembled
	// from the wire form.
	auth := &TransferAuthorization{
		From:  common.HexToAddress(authMap["from"].(string)),
		To:    common.HexToAddress(authMap["to"].(string)),
		Nonce: common.HexToHash(authMap["nonce"].(string)),
	}
	auth.Value, _ = new(big.Int).SetString(authMap["value"].(string), 10)
	auth.ValidAfter, _ = new(big.Int).SetString(authMap["validAfter"].(string), 10)
	auth.ValidBefore, _ = new(big.Int).SetString(authMap["validBefore"].(string), 10)

	recovered, err := RecoverTransferAuthorization(signature, common.HexToAddress(requirements.Asset), big.NewInt(8453), auth, "USD Coin", "2")
	if err != nil {
		t.Fatalf("RecoverTransferAuthorization() error = %v", err)
	}
	if recovered != client.Address() {
		t.Errorf("recovered = %s, want %s", recovered.Hex(), client.Address().Hex())
	}
}

func TestCreatePaymentPayloadErrors(t *testing.T) {
	t.Run("non-evm network", func(t *testing.T) {
		client := testClient(t)
		req := baseRequirements("1000000")
		req.Network = x402.NetworkSolana
		if _, err := client.CreatePaymentPayload(context.Background(), req); !errors.Is(err, x402.ErrUnsupportedNetwork) {
			t.Errorf("CreatePaymentPayload() error = %v, want ErrUnsupportedNetwork", err)
		}
	})

	t.Run("unparseable amount", func(t *testing.T) {
		client := testClient(t)
		req := baseRequirements("1.5")
		if _, err := client.CreatePaymentPayload(context.Background(), req); !errors.Is(err, x402.ErrInvalidAmount) {
			t.Errorf("CreatePaymentPayload() error = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("amount over cap", func(t *testing.T) {
		client := testClient(t, WithMaxAmount("500000"))
		if _, err := client.CreatePaymentPayload(context.Background(), baseRequirements("1000000")); !errors.Is(err, x402.ErrAmountExceeded) {
			t.Errorf("CreatePaymentPayload() error = %v, want ErrAmountExceeded", err)
		}
	})

	t.Run("bad max amount", func(t *testing.T) {
		_, err := NewClient(WithPrivateKey(testKeyHex), WithMaxAmount("lots"))
		if !errors.Is(err, x402.ErrInvalidAmount) {
			t.Errorf("NewClient() error = %v, want ErrInvalidAmount", err)
		}
	})
}
