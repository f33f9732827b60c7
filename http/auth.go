package http

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// JWTAuth generates short-lived Bearer tokens for facilitator APIs that
// require JWT authentication. It parses a PEM-encoded ECDSA or Ed25519
// private key once and signs a fresh token per request.
//
// JWTAuth is immutable after construction and safe for concurrent use.
type JWTAuth struct {
	// keyID identifies the signing key to the facilitator and is carried in
	// the JWT "kid" header.
	keyID string

	// audience names the facilitator service the tokens are minted for.
	audience string

	// tokenTTL is the validity window for each token.
	tokenTTL time.Duration

	privateKey interface{}
}

// NewJWTAuth creates a JWT token generator from a key ID and a PEM-encoded
// ECDSA or Ed25519 private key.
func NewJWTAuth(keyID, pemKey, audience string) (*JWTAuth, error) {
	if keyID == "" {
		return nil, fmt.Errorf("keyID must not be empty")
	}

	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block: invalid PEM format")
	}

	var privateKey interface{}
	var err error

	privateKey, err = x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		// PKCS8 covers both ECDSA and Ed25519 keys.
		privateKey, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	}

	switch privateKey.(type) {
	case *ecdsa.PrivateKey:
	case crypto.Signer:
	default:
		return nil, fmt.Errorf("unsupported private key type: must be ECDSA or Ed25519")
	}

	return &JWTAuth{
		keyID:      keyID,
		audience:   audience,
		tokenTTL:   2 * time.Minute,
		privateKey: privateKey,
	}, nil
}

// Provider returns an AuthorizationProvider minting a fresh Bearer token per
// facilitator request.
func (a *JWTAuth) Provider() AuthorizationProvider {
	return func(ctx context.Context) (string, error) {
		token, err := a.GenerateToken()
		if err != nil {
			return "", err
		}
		return "Bearer " + token, nil
	}
}

// GenerateToken signs a short-lived JWT for the configured audience.
func (a *JWTAuth) GenerateToken() (string, error) {
	var alg jose.SignatureAlgorithm
	switch a.privateKey.(type) {
	case *ecdsa.PrivateKey:
		alg = jose.ES256
	default:
		alg = jose.EdDSA
	}

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: a.privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", a.keyID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create JWT signer: %w", err)
	}

	now := time.Now()
	claims := jwt.Claims{
		Subject:   a.keyID,
		Audience:  jwt.Audience{a.audience},
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}

	token, err := jwt.Signed(sig).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize JWT: %w", err)
	}

	return token, nil
}
