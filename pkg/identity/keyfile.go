package identity

import (
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// PrivateKeyPEMType is the PEM block type of identity key files.
const PrivateKeyPEMType = "MPECDH ED25519 PRIVATE KEY"

// PrivateKeyFileMode is the mode identity key files are written with.
const PrivateKeyFileMode = 0o600

// MarshalSignerToPEM encodes the seed of s in a PEM block.
func MarshalSignerToPEM(s *Ed25519Signer) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:    PrivateKeyPEMType,
		Headers: map[string]string{"Address": string(s.ID())},
		Bytes:   s.Seed(),
	})
}

// UnmarshalSignerFromPEM decodes a signer written by MarshalSignerToPEM.
func UnmarshalSignerFromPEM(pemData []byte) (*Ed25519Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("identity: PEM-decode failed")
	}
	if block.Type != PrivateKeyPEMType {
		return nil, fmt.Errorf("identity: expected PEM type %q; got %q", PrivateKeyPEMType, block.Type)
	}
	if len(block.Bytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed length %d", ErrInvalidKey, len(block.Bytes))
	}
	return Ed25519SignerFromSeed(block.Bytes)
}

// WriteKeyFile writes s to path, refusing to overwrite an existing file.
func WriteKeyFile(s *Ed25519Signer, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, PrivateKeyFileMode)
	if err != nil {
		return fmt.Errorf("identity: write key file: %w", err)
	}
	if _, err = f.Write(MarshalSignerToPEM(s)); err != nil {
		_ = f.Close()
		return fmt.Errorf("identity: write key file: %w", err)
	}
	return f.Close()
}

// ReadKeyFile reads a signer from path.
func ReadKeyFile(path string) (*Ed25519Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}
	return UnmarshalSignerFromPEM(data)
}
