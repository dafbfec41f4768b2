package party

import (
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-ecdh/pkg/hash"
)

// MinRingSize is the smallest ring a ceremony can run on.
// With two participants there are no relay rounds.
const MinRingSize = 2

var (
	ErrRingTooSmall = errors.New("party: ring needs at least 2 participants")
	ErrDuplicateID  = errors.New("party: duplicate ID")
	ErrEmptyID      = errors.New("party: empty ID")
	ErrNotInRing    = errors.New("party: ID not in ring")
)

// Ring is the fixed cyclic order of the participants of a ceremony.
//
// The order is the lexicographic order of the IDs, so every participant and observer
// computes the same ring from the same set without coordinating.
// The successor of the last ID is the first one.
type Ring struct {
	ids IDSlice
}

// NewRing sorts ids and returns the corresponding ring.
// The input is not modified.
func NewRing(ids []ID) (*Ring, error) {
	sorted := NewIDSlice(ids)
	if len(sorted) < MinRingSize {
		return nil, ErrRingTooSmall
	}
	for i, id := range sorted {
		if id == "" {
			return nil, ErrEmptyID
		}
		if i > 0 && sorted[i-1] == id {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
	}
	return &Ring{ids: sorted}, nil
}

// N returns the number of participants.
func (r *Ring) N() int { return len(r.ids) }

// Relays returns the number of relay rounds, which follow the initial round.
func (r *Ring) Relays() int { return len(r.ids) - 2 }

// IDs returns a copy of the sorted participant IDs.
func (r *Ring) IDs() IDSlice { return r.ids.Copy() }

// Contains returns true if id participates in the ring.
func (r *Ring) Contains(id ID) bool { return r.ids.Contains(id) }

// Position returns the index of id in the ring, or -1.
func (r *Ring) Position(id ID) int { return r.ids.GetIndex(id) }

// Predecessor returns the participant whose value id consumes.
func (r *Ring) Predecessor(id ID) (ID, error) {
	i := r.ids.GetIndex(id)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotInRing, id)
	}
	n := len(r.ids)
	return r.ids[(i+n-1)%n], nil
}

// Successor returns the participant consuming the values of id.
func (r *Ring) Successor(id ID) (ID, error) {
	i := r.ids.GetIndex(id)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotInRing, id)
	}
	return r.ids[(i+1)%len(r.ids)], nil
}

// SSID returns a session identifier binding protocol, group and participants.
func (r *Ring) SSID(protocolID, group string) []byte {
	h := hash.New()
	_ = h.WriteAny(
		&hash.BytesWithDomain{TheDomain: "Protocol ID", Bytes: []byte(protocolID)},
		&hash.BytesWithDomain{TheDomain: "Group Name", Bytes: []byte(group)},
		r,
	)
	return h.Sum()
}

// WriteTo implements io.WriterTo.
func (r *Ring) WriteTo(w io.Writer) (int64, error) {
	return r.ids.WriteTo(w)
}

// Domain implements hash.WriterToWithDomain.
func (*Ring) Domain() string {
	return "Ring"
}

func (r *Ring) String() string {
	return r.ids.String()
}
