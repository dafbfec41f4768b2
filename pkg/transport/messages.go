// Package transport exposes ceremonies over HTTP, and implements mpecdh.Contract
// for participants that run against a remote ceremony.
package transport

import (
	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/pkg/hash"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

// ContentType is the media type of every request and response body.
const ContentType = "application/cbor"

// DeployRequest asks the wallet to deploy a ceremony.
type DeployRequest struct {
	// Group is the curve name, empty selects X25519.
	Group                string `cbor:"group,omitempty"`
	AllowRoundCorrection bool   `cbor:"allow_round_correction"`
}

type DeployResponse struct {
	ID           string        `cbor:"id"`
	Participants party.IDSlice `cbor:"participants"`
}

type PrepareResponse struct {
	Round round.Number `cbor:"round"`
	Value []byte       `cbor:"value,omitempty"`
}

// SubmitRequest carries a value signed by its participant.
type SubmitRequest struct {
	Party     party.ID     `cbor:"party"`
	Epoch     uint64       `cbor:"epoch"`
	Round     round.Number `cbor:"round"`
	Seq       uint64       `cbor:"seq"`
	Value     []byte       `cbor:"value"`
	Signature []byte       `cbor:"signature"`
}

// AttestRequest carries an attestation tag for one epoch, signed by its participant.
type AttestRequest struct {
	Party     party.ID `cbor:"party"`
	Epoch     uint64   `cbor:"epoch"`
	Tag       []byte   `cbor:"tag"`
	Signature []byte   `cbor:"signature"`
}

type VerdictResponse struct {
	Verdict mpecdh.Verdict `cbor:"verdict"`
}

type ReconstructRequest struct {
	Approvals []mpecdh.Approval `cbor:"approvals"`
}

type ReconstructResponse struct {
	Epoch uint64 `cbor:"epoch"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind    string `cbor:"kind"`
	Message string `cbor:"message"`
}

// SubmissionMessage is what a participant signs to submit value at the given position.
func SubmissionMessage(ceremonyID string, at mpecdh.Position, value []byte) []byte {
	h := hash.New(&hash.BytesWithDomain{TheDomain: "MPECDH Submission", Bytes: []byte(ceremonyID)})
	_ = h.WriteAny(at.Epoch, at.Round, at.Seq, value)
	return h.Sum()
}

// AttestationMessage is what a participant signs to record its attestation tag for an epoch.
func AttestationMessage(ceremonyID string, epoch uint64, tag []byte) []byte {
	h := hash.New(&hash.BytesWithDomain{TheDomain: "MPECDH Attestation Request", Bytes: []byte(ceremonyID)})
	_ = h.WriteAny(epoch, tag)
	return h.Sum()
}
