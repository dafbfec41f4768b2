package mpecdh

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

const stateVersion = 1

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Slot is the storage of one participant.
//
// Sealed is the value the successor consumes: the participant's submission for the
// last sealed round, SealedRound. Pending is its submission for the current round,
// which becomes visible to the successor once every participant submitted.
// Seq counts the submissions accepted for the current round.
type Slot struct {
	Sealed      []byte       `cbor:"sealed,omitempty"`
	SealedRound round.Number `cbor:"sealed_round"`
	Pending     []byte       `cbor:"pending,omitempty"`
	Seq         uint64       `cbor:"seq"`
}

// State is the persisted state of a ceremony instance.
type State struct {
	Version              uint8               `cbor:"version"`
	Group                string              `cbor:"group"`
	Ring                 party.IDSlice       `cbor:"ring"`
	Controller           string              `cbor:"controller,omitempty"`
	AllowRoundCorrection bool                `cbor:"allow_round_correction"`
	Round                round.Number        `cbor:"round"`
	Complete             bool                `cbor:"complete"`
	Epoch                uint64              `cbor:"epoch"`
	Slots                map[party.ID]*Slot  `cbor:"slots"`
	Attestations         map[party.ID][]byte `cbor:"attestations,omitempty"`
}

func newState(group curve.Curve, ring *party.Ring, allowRoundCorrection bool, controller string) *State {
	s := &State{
		Version:              stateVersion,
		Group:                group.Name(),
		Ring:                 ring.IDs(),
		Controller:           controller,
		AllowRoundCorrection: allowRoundCorrection,
	}
	s.wipe()
	return s
}

func decodeState(data []byte) (*State, error) {
	var s State
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("mpecdh: decode state: %w", err)
	}
	if s.Version != stateVersion {
		return nil, fmt.Errorf("mpecdh: unsupported state version %d", s.Version)
	}
	if len(s.Ring) < party.MinRingSize || !s.Ring.Valid() {
		return nil, fmt.Errorf("mpecdh: corrupted ring in state")
	}
	if s.Slots == nil {
		s.Slots = make(map[party.ID]*Slot, len(s.Ring))
	}
	for _, id := range s.Ring {
		if s.Slots[id] == nil {
			s.Slots[id] = &Slot{}
		}
	}
	return &s, nil
}

func (s *State) encode() ([]byte, error) {
	return encMode.Marshal(s)
}

func (s *State) ring() *party.Ring {
	r, err := party.NewRing(s.Ring)
	if err != nil {
		// decodeState already checked the ring
		panic(err)
	}
	return r
}

// wipe discards every slot and attestation and returns to the first round.
func (s *State) wipe() {
	s.Round = 0
	s.Complete = false
	s.Slots = make(map[party.ID]*Slot, len(s.Ring))
	for _, id := range s.Ring {
		s.Slots[id] = &Slot{}
	}
	s.Attestations = nil
}

// pristine reports whether nothing was submitted since the last wipe.
func (s *State) pristine() bool {
	if s.Round != 0 || s.Complete || len(s.Attestations) > 0 {
		return false
	}
	for _, sl := range s.Slots {
		if sl.Sealed != nil || sl.Pending != nil {
			return false
		}
	}
	return true
}

// submitResult describes the effect of an accepted submission.
type submitResult struct {
	corrected bool
	sealed    bool
	completed bool
}

// submit validates value and stores it as the pending value of from.
// Once every participant has a pending value, the round is sealed.
// s is left unchanged if an error is returned.
func (s *State) submit(group curve.Curve, from party.ID, value []byte) (submitResult, error) {
	var res submitResult
	if !s.Ring.Contains(from) {
		return res, Error{Round: s.Round, Culprit: from, Err: ErrUnauthorizedSigner}
	}
	if _, err := curve.DecodePoint(group, value); err != nil {
		return res, Error{Round: s.Round, Culprit: from, Err: fmt.Errorf("%w: %v", ErrInvalidPoint, err)}
	}
	if s.Complete {
		return res, Error{Round: s.Round, Culprit: from, Err: fmt.Errorf("%w: ceremony complete", ErrRoundClosed)}
	}
	slot := s.Slots[from]
	if slot.Pending != nil {
		if !s.AllowRoundCorrection {
			return res, Error{Round: s.Round, Culprit: from, Err: fmt.Errorf("%w: already submitted", ErrRoundClosed)}
		}
		res.corrected = !bytes.Equal(slot.Pending, value)
	}
	slot.Pending = append([]byte(nil), value...)
	slot.Seq++

	if len(s.missing()) == 0 {
		s.seal()
		res.sealed = true
		res.completed = s.Complete
	}
	return res, nil
}

// seal publishes the pending values and advances the round counter.
func (s *State) seal() {
	for _, slot := range s.Slots {
		slot.Sealed = slot.Pending
		slot.SealedRound = s.Round
		slot.Pending = nil
		slot.Seq = 0
	}
	if s.Round >= round.Last(len(s.Ring)) {
		s.Complete = true
		return
	}
	s.Round++
}

// missing returns the participants that have not submitted for the current round.
func (s *State) missing() party.IDSlice {
	if s.Complete {
		return party.IDSlice{}
	}
	var ids party.IDSlice
	for _, id := range s.Ring {
		if s.Slots[id].Pending == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// forwardable returns the sealed value id consumes, which is held by its predecessor.
func (s *State) forwardable(id party.ID) ([]byte, error) {
	if !s.Ring.Contains(id) {
		return nil, Error{Round: s.Round, Culprit: id, Err: ErrUnauthorizedSigner}
	}
	pred, err := s.ring().Predecessor(id)
	if err != nil {
		return nil, err
	}
	sealed := s.Slots[pred].Sealed
	if sealed == nil {
		return nil, nil
	}
	return append([]byte(nil), sealed...), nil
}
