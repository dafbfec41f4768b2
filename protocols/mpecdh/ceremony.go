package mpecdh

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-ecdh/internal/metrics"
	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/pkg/ledger"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

// ProtocolID identifies the ceremony in session identifiers.
const ProtocolID = "mpecdh/v1"

// Config describes a ceremony instance at deployment.
type Config struct {
	// Group defaults to X25519.
	Group        curve.Curve
	Participants []party.ID
	// AllowRoundCorrection lets a participant replace its submission until the round seals.
	// Without it, a participant submits once per round and a bad value can only be
	// discarded by reconstructing the whole ceremony.
	AllowRoundCorrection bool
	// Controller is the address of the wallet allowed to reconstruct the ceremony.
	Controller string
}

// Position is the epoch and round a submission is computed for.
// Seq is the number of submissions the participant already made in that round,
// so a signed submission cannot be replayed over a later correction.
type Position struct {
	Epoch uint64
	Round round.Number
	Seq   uint64
}

// Status is the observable state of a ceremony, from the point of view of one participant.
type Status struct {
	Group                string
	SSID                 []byte
	N                    int
	Round                round.Number
	Complete             bool
	Epoch                uint64
	AllowRoundCorrection bool
	// Submitted is true if the participant has a value pending for the current round.
	Submitted bool
	Pending   []byte
	// Seq is the number of submissions the participant made in the current round.
	Seq uint64
	// Missing lists the participants that have not submitted for the current round.
	Missing  party.IDSlice
	Attested bool
}

// Position returns the epoch and round the ceremony is at.
func (s *Status) Position() Position {
	return Position{Epoch: s.Epoch, Round: s.Round, Seq: s.Seq}
}

// Ceremony is a handle on a ceremony instance stored in a ledger.
//
// Every operation loads the state from the ledger, and every mutation is a single
// ledger update, so handles in different processes may operate on the same instance.
type Ceremony struct {
	id      string
	group   curve.Curve
	ledger  ledger.Ledger
	log     zerolog.Logger
	metrics *metrics.CeremonyMetrics
}

func ledgerKey(id string) string {
	return "ceremony/" + id
}

// Deploy stores a new ceremony instance under id, in the first round.
func Deploy(ctx context.Context, l ledger.Ledger, id string, cfg Config, opts ...Option) (*Ceremony, error) {
	group := cfg.Group
	if group == nil {
		group = curve.X25519{}
	}
	ring, err := party.NewRing(cfg.Participants)
	if err != nil {
		return nil, fmt.Errorf("mpecdh: deploy: %w", err)
	}
	data, err := newState(group, ring, cfg.AllowRoundCorrection, cfg.Controller).encode()
	if err != nil {
		return nil, fmt.Errorf("mpecdh: encode state: %w", err)
	}
	err = l.Update(ctx, ledgerKey(id), func(current []byte) ([]byte, error) {
		if current != nil {
			return nil, fmt.Errorf("%w: %s", ErrCeremonyExists, id)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	c := newCeremony(id, group, l, newOptions(opts))
	c.metrics.Deployments(group.Name()).Inc()
	c.log.Info().
		Int("n", ring.N()).
		Stringer("ring", ring).
		Bool("allow_round_correction", cfg.AllowRoundCorrection).
		Msg("deployed")
	return c, nil
}

// Open returns a handle on the instance stored under id.
func Open(ctx context.Context, l ledger.Ledger, id string, opts ...Option) (*Ceremony, error) {
	data, err := l.View(ctx, ledgerKey(id))
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCeremony, id)
	}
	if err != nil {
		return nil, err
	}
	st, err := decodeState(data)
	if err != nil {
		return nil, err
	}
	group, err := curve.FromName(st.Group)
	if err != nil {
		return nil, err
	}
	return newCeremony(id, group, l, newOptions(opts)), nil
}

func newCeremony(id string, group curve.Curve, l ledger.Ledger, o options) *Ceremony {
	return &Ceremony{
		id:     id,
		group:  group,
		ledger: l,
		log: o.log.With().
			Str("protocol", ProtocolID).
			Str("ceremony", id).
			Str("group", group.Name()).
			Logger(),
		metrics: o.metrics,
	}
}

// ID returns the identifier of the instance.
func (c *Ceremony) ID() string { return c.id }

// Group returns the group the ceremony runs in.
func (c *Ceremony) Group() curve.Curve { return c.group }

func (c *Ceremony) view(ctx context.Context) (*State, error) {
	data, err := c.ledger.View(ctx, ledgerKey(c.id))
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCeremony, c.id)
	}
	if err != nil {
		return nil, err
	}
	return decodeState(data)
}

// update applies fn to the stored state in one ledger update.
// If fn fails, the stored state is left untouched.
func (c *Ceremony) update(ctx context.Context, fn func(*State) error) error {
	return c.ledger.Update(ctx, ledgerKey(c.id), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCeremony, c.id)
		}
		st, err := decodeState(current)
		if err != nil {
			return nil, err
		}
		if err = fn(st); err != nil {
			return nil, err
		}
		return st.encode()
	})
}

func (c *Ceremony) ssid(st *State) []byte {
	return st.ring().SSID(ProtocolID+"/"+c.id, st.Group)
}

// Submit stores value as the submission of from for the current round.
//
// In the first round value is the participant's public point. In relay rounds it is
// the participant's secret applied to the value returned by Prepare.
// Once every participant submitted, the round seals and the counter advances.
func (c *Ceremony) Submit(ctx context.Context, from party.ID, value []byte) error {
	return c.submit(ctx, from, nil, value)
}

// SubmitAt is Submit, failing with ErrStaleRound unless the ceremony is still at the given position.
// Drivers use it so that a value computed for one round never lands in another.
func (c *Ceremony) SubmitAt(ctx context.Context, from party.ID, at Position, value []byte) error {
	return c.submit(ctx, from, &at, value)
}

func (c *Ceremony) submit(ctx context.Context, from party.ID, at *Position, value []byte) error {
	var (
		res submitResult
		r   round.Number
	)
	err := c.update(ctx, func(st *State) error {
		r = st.Round
		if !st.Ring.Contains(from) {
			return Error{Round: st.Round, Culprit: from, Err: ErrUnauthorizedSigner}
		}
		if at != nil && (at.Epoch != st.Epoch || at.Round != st.Round) {
			return Error{Round: st.Round, Culprit: from, Err: fmt.Errorf("%w: computed for epoch %d round %d, ceremony is at epoch %d round %d",
				ErrStaleRound, at.Epoch, at.Round, st.Epoch, st.Round)}
		}
		if at != nil && st.AllowRoundCorrection && at.Seq != st.Slots[from].Seq {
			return Error{Round: st.Round, Culprit: from, Err: fmt.Errorf("%w: submission %d of the round, %d already made",
				ErrStaleRound, at.Seq, st.Slots[from].Seq)}
		}
		var err error
		res, err = st.submit(c.group, from, value)
		return err
	})

	log := c.log.With().Str("party", string(from)).Stringer("round", r).Logger()
	if err != nil {
		c.metrics.Submissions(c.group.Name(), outcome(err)).Inc()
		log.Warn().Err(err).Msg("submission rejected")
		return err
	}

	if res.corrected {
		c.metrics.Submissions(c.group.Name(), metrics.OutcomeCorrected).Inc()
		log.Info().Msg("submission corrected")
	} else {
		c.metrics.Submissions(c.group.Name(), metrics.OutcomeAccepted).Inc()
		log.Debug().Msg("submission accepted")
	}
	if res.sealed {
		c.metrics.RoundsSealed(c.group.Name()).Inc()
		log.Info().Msg("round sealed")
	}
	if res.completed {
		c.metrics.Completed(c.group.Name()).Inc()
		log.Info().Msg("ceremony complete")
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorizedSigner):
		return metrics.OutcomeUnauthorized
	case errors.Is(err, ErrInvalidPoint):
		return metrics.OutcomeInvalidPoint
	case errors.Is(err, ErrRoundClosed), errors.Is(err, ErrStaleRound):
		return metrics.OutcomeRoundClosed
	default:
		return metrics.OutcomeError
	}
}

// Prepare returns the current round and the value id must multiply by its secret
// for its next submission: the last sealed value of its predecessor.
// The value is nil in the first round.
func (c *Ceremony) Prepare(ctx context.Context, id party.ID) (round.Number, []byte, error) {
	st, err := c.view(ctx)
	if err != nil {
		return 0, nil, err
	}
	value, err := st.forwardable(id)
	if err != nil {
		return 0, nil, err
	}
	return st.Round, value, nil
}

// Status returns the observable state of the ceremony for id.
func (c *Ceremony) Status(ctx context.Context, id party.ID) (*Status, error) {
	st, err := c.view(ctx)
	if err != nil {
		return nil, err
	}
	if !st.Ring.Contains(id) {
		return nil, Error{Round: st.Round, Culprit: id, Err: ErrUnauthorizedSigner}
	}
	slot := st.Slots[id]
	_, attested := st.Attestations[id]
	return &Status{
		Group:                st.Group,
		SSID:                 c.ssid(st),
		N:                    len(st.Ring),
		Round:                st.Round,
		Complete:             st.Complete,
		Epoch:                st.Epoch,
		AllowRoundCorrection: st.AllowRoundCorrection,
		Submitted:            slot.Pending != nil,
		Pending:              slot.Pending,
		Seq:                  slot.Seq,
		Missing:              st.missing(),
		Attested:             attested,
	}, nil
}

// Participants returns the ring of the ceremony.
func (c *Ceremony) Participants(ctx context.Context) (*party.Ring, error) {
	st, err := c.view(ctx)
	if err != nil {
		return nil, err
	}
	return st.ring(), nil
}

// Finalize returns the shared secret of id, the encoding of secret applied to the
// final relay value. The secret is only used for this computation.
func (c *Ceremony) Finalize(ctx context.Context, id party.ID, secret curve.Scalar) ([]byte, error) {
	st, err := c.view(ctx)
	if err != nil {
		return nil, err
	}
	if !st.Ring.Contains(id) {
		return nil, Error{Round: st.Round, Culprit: id, Err: ErrUnauthorizedSigner}
	}
	if !st.Complete {
		return nil, Error{Round: st.Round, Culprit: id, Err: ErrNotComplete}
	}
	return finalize(st.Group, secret, st.Round, id, st.forwardable)
}

func finalize(group string, secret curve.Scalar, r round.Number, id party.ID, forwardable func(party.ID) ([]byte, error)) ([]byte, error) {
	if secret.Curve().Name() != group {
		return nil, fmt.Errorf("%w: secret in %s, ceremony in %s", ErrWrongGroup, secret.Curve().Name(), group)
	}
	value, err := forwardable(id)
	if err != nil {
		return nil, err
	}
	shared, err := curve.Multiply(secret, value)
	if err != nil {
		return nil, Error{Round: r, Culprit: id, Err: fmt.Errorf("%w: %v", ErrInvalidPoint, err)}
	}
	return shared, nil
}

// reconstruct discards every slot and attestation and returns the ceremony to the first round
// of the next epoch. The ring, group and policy are kept.
//
// It is only reachable through Wallet.Reconstruct. Reconstructing an instance
// nobody submitted to since the last reset changes nothing.
func (c *Ceremony) reconstruct(ctx context.Context, controller string, epoch uint64) (bool, error) {
	var changed bool
	err := c.update(ctx, func(st *State) error {
		if st.Controller != "" && st.Controller != controller {
			return fmt.Errorf("%w: ceremony is controlled by %s", ErrUnauthorizedSigner, st.Controller)
		}
		if st.Epoch != epoch {
			return fmt.Errorf("%w: approved epoch %d, ceremony at epoch %d", ErrStaleApproval, epoch, st.Epoch)
		}
		if st.pristine() {
			return nil
		}
		st.wipe()
		st.Epoch++
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		c.log.Warn().Uint64("epoch", epoch+1).Msg("reconstructed")
	} else {
		c.log.Info().Uint64("epoch", epoch).Msg("reconstruct on pristine ceremony, nothing to discard")
	}
	return changed, nil
}

// Epoch returns the current epoch, which reconstruction approvals are bound to.
func (c *Ceremony) Epoch(ctx context.Context) (uint64, error) {
	st, err := c.view(ctx)
	if err != nil {
		return 0, err
	}
	return st.Epoch, nil
}
