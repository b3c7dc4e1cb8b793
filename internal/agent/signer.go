package agent

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Signer holds the payer's process-lifetime Ed25519 keypair. Signatures are
// computed over raw challenge bytes; base64 exists only on the wire.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner generates an ephemeral keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return &Signer{privateKey: priv, publicKey: pub}, nil
}

// NewSignerFromSeed derives the keypair from a hex-encoded 32-byte seed so a
// payer identity survives restarts.
func NewSignerFromSeed(hexSeed string) (*Signer, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("signing seed is not valid hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// SignChallenge decodes the wire-format challenge and signs its raw bytes.
func (s *Signer) SignChallenge(challengeBase64 string) (signatureBase64 string, err error) {
	challenge, err := base64.StdEncoding.DecodeString(challengeBase64)
	if err != nil {
		return "", fmt.Errorf("challenge is not valid base64: %w", err)
	}
	signature := ed25519.Sign(s.privateKey, challenge)
	return base64.StdEncoding.EncodeToString(signature), nil
}

func (s *Signer) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(s.publicKey)
}
