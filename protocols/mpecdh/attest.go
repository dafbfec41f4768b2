package mpecdh

import (
	"bytes"
	"context"
	"fmt"

	"github.com/taurusgroup/multi-party-ecdh/pkg/hash"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

// Verdict is the outcome of comparing the attestations of a completed run.
type Verdict uint8

const (
	// VerdictPending means not every participant attested yet, and no two attestations differ.
	VerdictPending Verdict = iota
	// VerdictAgreed means every participant attested to the same shared secret.
	VerdictAgreed
	// VerdictDiverged means two participants finalized to different secrets:
	// a relay value was corrupted and the ceremony must be reconstructed.
	VerdictDiverged
)

func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "pending"
	case VerdictAgreed:
		return "agreed"
	case VerdictDiverged:
		return "diverged"
	default:
		return fmt.Sprintf("verdict(%d)", uint8(v))
	}
}

// AttestationTag commits to a shared secret without revealing it.
// Participants that finalized to the same secret in the same run produce the same tag.
func AttestationTag(ssid []byte, epoch uint64, shared []byte) []byte {
	h := hash.New(&hash.BytesWithDomain{TheDomain: "MPECDH Attestation", Bytes: ssid})
	_ = h.WriteAny(epoch, shared)
	return h.Sum()
}

// Attest records the attestation tag of id for the completed run of the given epoch.
// A participant attests once per epoch; repeating the same tag is a no-op.
func (c *Ceremony) Attest(ctx context.Context, id party.ID, epoch uint64, tag []byte) error {
	err := c.update(ctx, func(st *State) error {
		if !st.Ring.Contains(id) {
			return Error{Round: st.Round, Culprit: id, Err: ErrUnauthorizedSigner}
		}
		if epoch != st.Epoch {
			return Error{Round: st.Round, Culprit: id, Err: fmt.Errorf("%w: attestation for epoch %d, ceremony at epoch %d",
				ErrStaleRound, epoch, st.Epoch)}
		}
		if !st.Complete {
			return Error{Round: st.Round, Culprit: id, Err: ErrNotComplete}
		}
		if len(tag) != hash.DigestLengthBytes {
			return Error{Round: st.Round, Culprit: id, Err: fmt.Errorf("mpecdh: attestation tag length %d", len(tag))}
		}
		if prev, ok := st.Attestations[id]; ok {
			if !bytes.Equal(prev, tag) {
				return Error{Round: st.Round, Culprit: id, Err: ErrAttestationConflict}
			}
			return nil
		}
		if st.Attestations == nil {
			st.Attestations = make(map[party.ID][]byte, len(st.Ring))
		}
		st.Attestations[id] = append([]byte(nil), tag...)
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("party", string(id)).Msg("attestation rejected")
		return err
	}
	c.log.Debug().Str("party", string(id)).Msg("attestation recorded")
	return nil
}

// Verdict compares the attestations recorded so far.
func (c *Ceremony) Verdict(ctx context.Context) (Verdict, error) {
	st, err := c.view(ctx)
	if err != nil {
		return VerdictPending, err
	}
	return st.verdict(), nil
}

func (s *State) verdict() Verdict {
	var first []byte
	for _, id := range s.Ring {
		tag, ok := s.Attestations[id]
		if !ok {
			continue
		}
		if first == nil {
			first = tag
			continue
		}
		if !bytes.Equal(first, tag) {
			return VerdictDiverged
		}
	}
	if len(s.Attestations) == len(s.Ring) {
		return VerdictAgreed
	}
	return VerdictPending
}
