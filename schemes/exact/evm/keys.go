package evm

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	x402 "github.com/x402labs/x402-go"
)

// WithPrivateKey loads the signing key from a hex string, with or without a
// 0x prefix.
func WithPrivateKey(hexKey string) ClientOption {
	return func(c *Client) error {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return x402.ErrInvalidKey
		}
		c.privateKey = key
		return nil
	}
}

// WithKeystore loads the signing key from an encrypted geth keystore file.
func WithKeystore(path, password string) ClientOption {
	return func(c *Client) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
		}

		var keyJSON struct {
			Crypto keystore.CryptoJSON `json:"crypto"`
		}
		if err := json.Unmarshal(data, &keyJSON); err != nil {
			return fmt.Errorf("%w: invalid JSON format", x402.ErrInvalidKeystore)
		}

		keyBytes, err := keystore.DecryptDataV3(keyJSON.Crypto, password)
		if err != nil {
			return fmt.Errorf("%w: decryption failed", x402.ErrInvalidKeystore)
		}

		key, err := crypto.ToECDSA(keyBytes)
		if err != nil {
			return fmt.Errorf("%w: invalid private key", x402.ErrInvalidKeystore)
		}

		c.privateKey = key
		return nil
	}
}

// WithMnemonic derives the signing key from a BIP-39 phrase along the
// standard Ethereum path m/44'/60'/0'/0/{accountIndex}.
func WithMnemonic(mnemonic string, accountIndex uint32) ClientOption {
	return func(c *Client) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return x402.ErrInvalidMnemonic
		}

		seed := bip39.NewSeed(mnemonic, "")
		key, err := deriveKey(seed, accountIndex)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
		}

		c.privateKey = key
		return nil
	}
}

// deriveKey walks the BIP-44 path m/44'/60'/0'/0/{index} from a BIP-39 seed.
func deriveKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}

	for _, step := range []uint32{
		bip32.FirstHardenedChild + 44, // purpose
		bip32.FirstHardenedChild + 60, // coin type: Ethereum
		bip32.FirstHardenedChild + 0,  // account
		0,                             // external chain
		index,
	} {
		if key, err = key.NewChildKey(step); err != nil {
			return nil, err
		}
	}

	return crypto.ToECDSA(key.Key)
}
