package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

var (
	// ErrInvalidSignature is returned when a request is not signed by the participant it claims.
	ErrInvalidSignature = errors.New("transport: invalid request signature")
	ErrBadRequest       = errors.New("transport: bad request")
	// ErrServer is returned for failures the server does not report in detail.
	ErrServer = errors.New("transport: server error")
)

const kindInternal = "internal"

// errorKinds maps the errors that cross the wire to their kind and status.
// The first match wins, so wrapping errors come before the ones they wrap.
var errorKinds = []struct {
	err    error
	kind   string
	status int
}{
	{ErrInvalidSignature, "invalid_signature", http.StatusUnauthorized},
	{ErrBadRequest, "bad_request", http.StatusBadRequest},
	{curve.ErrUnknownGroup, "unknown_group", http.StatusBadRequest},
	{mpecdh.ErrUnauthorizedSigner, "unauthorized_signer", http.StatusForbidden},
	{mpecdh.ErrInvalidPoint, "invalid_point", http.StatusUnprocessableEntity},
	{mpecdh.ErrRoundClosed, "round_closed", http.StatusConflict},
	{mpecdh.ErrStaleRound, "stale_round", http.StatusConflict},
	{mpecdh.ErrNotComplete, "not_complete", http.StatusConflict},
	{mpecdh.ErrAttestationConflict, "attestation_conflict", http.StatusConflict},
	{mpecdh.ErrUnknownCeremony, "unknown_ceremony", http.StatusNotFound},
	{mpecdh.ErrCeremonyExists, "ceremony_exists", http.StatusConflict},
	{mpecdh.ErrWrongGroup, "wrong_group", http.StatusBadRequest},
	{mpecdh.ErrQuorumNotReached, "quorum_not_reached", http.StatusForbidden},
	{mpecdh.ErrInvalidApproval, "invalid_approval", http.StatusForbidden},
	{mpecdh.ErrStaleApproval, "stale_approval", http.StatusConflict},
}

// classify returns the kind and HTTP status of err.
func classify(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, k.status
		}
	}
	return kindInternal, http.StatusInternalServerError
}

// decodeError turns an error response back into an error that matches the original sentinel.
func decodeError(status int, body *ErrorResponse) error {
	if body != nil {
		for _, k := range errorKinds {
			if k.kind == body.Kind {
				return fmt.Errorf("%w (remote: %s)", k.err, body.Message)
			}
		}
		if body.Message != "" {
			return fmt.Errorf("%w: status %d: %s", ErrServer, status, body.Message)
		}
	}
	return fmt.Errorf("%w: status %d", ErrServer, status)
}
