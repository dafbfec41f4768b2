package mpecdh

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

// Errors returned by the ceremony. None of them leaves a partial state change behind.
var (
	ErrUnauthorizedSigner = errors.New("mpecdh: unauthorized signer")
	ErrInvalidPoint       = errors.New("mpecdh: invalid point")
	ErrRoundClosed        = errors.New("mpecdh: round closed")
	ErrNotComplete        = errors.New("mpecdh: ceremony not complete")
	// ErrStaleRound is returned by SubmitAt when the ceremony moved on since the caller observed it.
	ErrStaleRound = errors.New("mpecdh: stale round")
	// ErrAttestationConflict is returned when a participant attests to a second, different tag.
	ErrAttestationConflict = errors.New("mpecdh: conflicting attestation")

	ErrUnknownCeremony = errors.New("mpecdh: unknown ceremony")
	ErrCeremonyExists  = errors.New("mpecdh: ceremony already exists")
	ErrWrongGroup      = errors.New("mpecdh: wrong group")
)

// Errors returned by the driver.
var (
	ErrStepOrder     = errors.New("mpecdh: relay step before the first round was submitted")
	ErrPollExhausted = errors.New("mpecdh: poll attempts exhausted")
	ErrCorrupted     = errors.New("mpecdh: participants disagree on the shared secret")
	ErrReconstructed = errors.New("mpecdh: ceremony was reconstructed during the run")
)

// Errors returned by the wallet.
var (
	ErrQuorumNotReached = errors.New("mpecdh: not enough owner approvals")
	ErrInvalidApproval  = errors.New("mpecdh: invalid approval signature")
	ErrStaleApproval    = errors.New("mpecdh: approval for another epoch")
)

// Error is a custom error for ceremony operations which contains information about
// the round in which it occurred, and the party responsible.
type Error struct {
	// Round where the error occurred
	Round round.Number
	// Culprit is empty if the identity of the misbehaving party cannot be known
	Culprit party.ID
	// Err is the underlying error
	Err error
}

func (e Error) Error() string {
	if e.Culprit == "" {
		return fmt.Sprintf("round %d: %s", e.Round, e.Err)
	}
	return fmt.Sprintf("round %d: party: %s: %s", e.Round, e.Culprit, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
