// Package test contains helpers shared by the tests of the ceremony packages.
package test

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

// PartyIDs returns a party.IDSlice (sorted) with IDs represented as simple strings.
func PartyIDs(n int) party.IDSlice {
	baseString := ""
	ids := make(party.IDSlice, n)
	for i := range ids {
		if i%26 == 0 && i > 0 {
			baseString += "a"
		}
		ids[i] = party.ID(baseString + string('a'+rune(i%26)))
	}
	return party.NewIDSlice(ids)
}

// Signer returns a deterministic ed25519 signer, derived from label.
func Signer(t testing.TB, label string) *identity.Ed25519Signer {
	t.Helper()
	seed := sha256.Sum256([]byte("mpecdh test signer " + label))
	s, err := identity.Ed25519SignerFromSeed(seed[:ed25519.SeedSize])
	if err != nil {
		t.Fatalf("test signer %s: %v", label, err)
	}
	return s
}

// Signers returns n deterministic signers, in no particular order.
func Signers(t testing.TB, n int) []identity.Signer {
	t.Helper()
	signers := make([]identity.Signer, n)
	for i := range signers {
		signers[i] = Signer(t, fmt.Sprintf("%d", i))
	}
	return signers
}

// IDs returns the IDs of signers, in the same order.
func IDs(signers []identity.Signer) []party.ID {
	ids := make([]party.ID, len(signers))
	for i, s := range signers {
		ids[i] = s.ID()
	}
	return ids
}

// Reversed returns a copy of signers in reverse order.
func Reversed(signers []identity.Signer) []identity.Signer {
	out := make([]identity.Signer, len(signers))
	for i, s := range signers {
		out[len(signers)-1-i] = s
	}
	return out
}
