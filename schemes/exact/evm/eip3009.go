package evm

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	x402 "github.com/x402labs/x402-go"
)

// TransferAuthorization holds the parameters of an EIP-3009
// transferWithAuthorization call.
type TransferAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       common.Hash
}

// NewTransferAuthorization builds an authorization with a fresh random nonce
// and a validity window of timeoutSeconds from now. ValidAfter is backdated
// 10 seconds so a facilitator with a slightly slower clock still accepts it.
func NewTransferAuthorization(from, to common.Address, value *big.Int, timeoutSeconds int) (*TransferAuthorization, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := time.Now().Unix()
	return &TransferAuthorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(now - 10),
		ValidBefore: big.NewInt(now + int64(timeoutSeconds)),
		Nonce:       common.BytesToHash(nonce[:]),
	}, nil
}

// transferDigest computes the EIP-712 digest a wallet signs for a
// TransferWithAuthorization message. The domain name and version come from
// the payment requirements so the signature binds to the exact token
// contract deployment.
func transferDigest(token common.Address, chainID *big.Int, auth *TransferAuthorization, name, version string) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: token.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       auth.Nonce.Hex(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct("TransferWithAuthorization", typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || messageHash)
	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(rawData), nil
}

// SignTransferAuthorization produces the hex-encoded EIP-712 signature over a
// TransferWithAuthorization message.
func SignTransferAuthorization(key *ecdsa.PrivateKey, token common.Address, chainID *big.Int, auth *TransferAuthorization, name, version string) (string, error) {
	digest, err := transferDigest(token, chainID, auth, name, version)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return "", x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to sign authorization", err)
	}

	// Ethereum expects v in {27, 28}.
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}

// RecoverTransferAuthorization recovers the signer address from a signature
// produced by SignTransferAuthorization.
func RecoverTransferAuthorization(signature string, token common.Address, chainID *big.Int, auth *TransferAuthorization, name, version string) (common.Address, error) {
	sigBytes, err := hex.DecodeString(trimHexPrefix(signature))
	if err != nil || len(sigBytes) != 65 {
		return common.Address{}, fmt.Errorf("malformed signature")
	}

	digest, err := transferDigest(token, chainID, auth, name, version)
	if err != nil {
		return common.Address{}, err
	}

	// crypto.SigToPub wants v in {0, 1}.
	recoverable := make([]byte, 65)
	copy(recoverable, sigBytes)
	if recoverable[64] >= 27 {
		recoverable[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, recoverable)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
