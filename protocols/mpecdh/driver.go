package mpecdh

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Contract is the surface of a ceremony a driver works against.
// It is implemented by *Ceremony in process, and by the HTTP client remotely.
type Contract interface {
	SubmitAt(ctx context.Context, from party.ID, at Position, value []byte) error
	Prepare(ctx context.Context, id party.ID) (round.Number, []byte, error)
	Status(ctx context.Context, id party.ID) (*Status, error)
	Attest(ctx context.Context, id party.ID, epoch uint64, tag []byte) error
	Verdict(ctx context.Context) (Verdict, error)
}

var _ Contract = (*Ceremony)(nil)

// Result is the outcome of a run for one participant.
type Result struct {
	ID           party.ID
	Epoch        uint64
	SSID         []byte
	SharedSecret []byte
}

// Tag returns the attestation tag of the result.
func (r *Result) Tag() []byte {
	return AttestationTag(r.SSID, r.Epoch, r.SharedSecret)
}

// Key derives a symmetric key of the given size from the shared secret.
func (r *Result) Key(size int) ([]byte, error) {
	return identity.DeriveKey(r.SharedSecret, r.SSID, size)
}

// Driver computes and submits the values of participants.
//
// A driver holds no ceremony state: every step starts from what the contract
// reports, so steps may be repeated, interleaved across participants, or resumed
// by another process. Secrets are derived from the signer when needed and never
// leave the driver.
type Driver struct {
	contract Contract
	poll     PollConfig
	log      zerolog.Logger
}

// NewDriver returns a driver for contract.
func NewDriver(contract Contract, opts ...Option) *Driver {
	o := newOptions(opts)
	return &Driver{
		contract: contract,
		poll:     o.poll,
		log:      o.log.With().Str("protocol", ProtocolID).Str("module", "driver").Logger(),
	}
}

func (d *Driver) keyPair(st *Status, s identity.Signer) (*identity.KeyPair, error) {
	group, err := curve.FromName(st.Group)
	if err != nil {
		return nil, err
	}
	return identity.DeriveSecret(group, s)
}

// Step0 submits the public point of s for the first round.
// It does nothing if s already did, or if the ceremony is past the first round.
func (d *Driver) Step0(ctx context.Context, s identity.Signer) error {
	st, err := d.contract.Status(ctx, s.ID())
	if err != nil {
		return err
	}
	if st.Complete || st.Round > 0 || st.Submitted {
		return nil
	}
	kp, err := d.keyPair(st, s)
	if err != nil {
		return err
	}
	public, err := kp.PublicBytes()
	if err != nil {
		return err
	}
	err = d.contract.SubmitAt(ctx, s.ID(), st.Position(), public)
	if errors.Is(err, ErrRoundClosed) || errors.Is(err, ErrStaleRound) {
		applied, _, serr := d.applied(ctx, s, st.Position(), public)
		if serr != nil {
			return serr
		}
		if applied {
			return nil
		}
	}
	if err != nil {
		return err
	}
	d.log.Debug().Str("party", string(s.ID())).Uint64("epoch", st.Epoch).Msg("public point submitted")
	return nil
}

// TryStepN makes one attempt at the relay step of s for the current round, without waiting.
// It returns true if a value was submitted.
//
// Nothing is submitted if the round already holds the value s would compute, or if
// the ceremony is complete. With round correction enabled, a pending value that
// differs from the recomputation is replaced.
func (d *Driver) TryStepN(ctx context.Context, s identity.Signer) (bool, error) {
	res, _, err := d.tryStepN(ctx, s)
	return res == stepSubmitted, err
}

type stepResult uint8

const (
	// stepWaiting means s owes nothing until the round advances.
	stepWaiting stepResult = iota
	stepSubmitted
	// stepInPlace means another caller submitted the value of s first.
	stepInPlace
)

func (d *Driver) tryStepN(ctx context.Context, s identity.Signer) (stepResult, *Status, error) {
	st, err := d.contract.Status(ctx, s.ID())
	if err != nil {
		return stepWaiting, nil, err
	}
	if st.Complete {
		return stepWaiting, st, nil
	}
	if st.Round == 0 {
		if !st.Submitted {
			return stepWaiting, st, ErrStepOrder
		}
		return stepWaiting, st, nil
	}
	if st.Submitted && !st.AllowRoundCorrection {
		return stepWaiting, st, nil
	}

	r, value, err := d.contract.Prepare(ctx, s.ID())
	if err != nil {
		return stepWaiting, st, err
	}
	if r != st.Round {
		return stepWaiting, st, nil
	}
	kp, err := d.keyPair(st, s)
	if err != nil {
		return stepWaiting, st, err
	}
	out, err := curve.Multiply(kp.Secret, value)
	if err != nil {
		return stepWaiting, st, Error{Round: r, Culprit: s.ID(), Err: fmt.Errorf("%w: %v", ErrInvalidPoint, err)}
	}
	if st.Submitted && bytes.Equal(st.Pending, out) {
		return stepWaiting, st, nil
	}

	err = d.contract.SubmitAt(ctx, s.ID(), st.Position(), out)
	if errors.Is(err, ErrStaleRound) || errors.Is(err, ErrRoundClosed) {
		applied, latest, serr := d.applied(ctx, s, st.Position(), out)
		if serr != nil {
			return stepWaiting, st, serr
		}
		if applied {
			return stepInPlace, latest, nil
		}
		if errors.Is(err, ErrStaleRound) {
			// a concurrent correction, recomputed on the next attempt
			return stepWaiting, latest, nil
		}
	}
	if err != nil {
		return stepWaiting, st, err
	}
	log := d.log.With().Str("party", string(s.ID())).Stringer("round", r).Logger()
	if st.Submitted {
		log.Info().Msg("relay value corrected")
	} else {
		log.Debug().Msg("relay value submitted")
	}
	return stepSubmitted, st, nil
}

// applied reads the status of s again after a rejected submission of value at the
// given position. It reports true if another caller already submitted the same
// value, or the ceremony moved past the position.
func (d *Driver) applied(ctx context.Context, s identity.Signer, at Position, value []byte) (bool, *Status, error) {
	st, err := d.contract.Status(ctx, s.ID())
	if err != nil {
		return false, nil, err
	}
	if st.Complete || st.Epoch != at.Epoch || st.Round != at.Round {
		return true, st, nil
	}
	return st.Submitted && bytes.Equal(st.Pending, value), st, nil
}

// StepN waits until s can submit its next relay value and submits it.
// It returns without submitting once the ceremony is complete, or if another caller
// driving s submitted the same value first.
// It fails with ErrStepOrder if s has not submitted its public point.
func (d *Driver) StepN(ctx context.Context, s identity.Signer) error {
	return d.wait(ctx, func() (bool, error) {
		res, st, err := d.tryStepN(ctx, s)
		if err != nil {
			return false, err
		}
		return res != stepWaiting || st.Complete, nil
	})
}

// StepX waits until the ceremony is complete and computes the shared secret of s.
func (d *Driver) StepX(ctx context.Context, s identity.Signer) (*Result, error) {
	var st *Status
	err := d.wait(ctx, func() (bool, error) {
		var err error
		st, err = d.contract.Status(ctx, s.ID())
		if err != nil {
			return false, err
		}
		return st.Complete, nil
	})
	if err != nil {
		return nil, err
	}
	kp, err := d.keyPair(st, s)
	if err != nil {
		return nil, err
	}
	_, value, err := d.contract.Prepare(ctx, s.ID())
	if err != nil {
		return nil, err
	}
	shared, err := curve.Multiply(kp.Secret, value)
	if err != nil {
		return nil, Error{Round: st.Round, Culprit: s.ID(), Err: fmt.Errorf("%w: %v", ErrInvalidPoint, err)}
	}
	d.log.Info().Str("party", string(s.ID())).Uint64("epoch", st.Epoch).Msg("finalized")
	return &Result{
		ID:           s.ID(),
		Epoch:        st.Epoch,
		SSID:         st.SSID,
		SharedSecret: shared,
	}, nil
}

// Run drives s through the whole ceremony and attests to the result.
// It fails with ErrReconstructed if the ceremony is reset while it runs.
func (d *Driver) Run(ctx context.Context, s identity.Signer) (*Result, error) {
	if err := d.Step0(ctx, s); err != nil {
		return nil, err
	}
	st, err := d.contract.Status(ctx, s.ID())
	if err != nil {
		return nil, err
	}
	epoch := st.Epoch

	for !st.Complete {
		if err = d.StepN(ctx, s); err != nil {
			if errors.Is(err, ErrStepOrder) {
				return nil, ErrReconstructed
			}
			return nil, err
		}
		if st, err = d.contract.Status(ctx, s.ID()); err != nil {
			return nil, err
		}
		if st.Epoch != epoch {
			return nil, ErrReconstructed
		}
	}

	res, err := d.StepX(ctx, s)
	if err != nil {
		return nil, err
	}
	if res.Epoch != epoch {
		return nil, ErrReconstructed
	}
	err = d.contract.Attest(ctx, s.ID(), res.Epoch, res.Tag())
	if errors.Is(err, ErrStaleRound) {
		return nil, ErrReconstructed
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AwaitVerdict waits until every participant attested, or two attestations differ.
// A diverged verdict is returned with ErrCorrupted.
func (d *Driver) AwaitVerdict(ctx context.Context) (Verdict, error) {
	var v Verdict
	err := d.wait(ctx, func() (bool, error) {
		var err error
		v, err = d.contract.Verdict(ctx)
		return v != VerdictPending, err
	})
	if err != nil {
		return v, err
	}
	if v == VerdictDiverged {
		d.log.Error().Msg("participants disagree on the shared secret")
		return v, ErrCorrupted
	}
	return v, nil
}

// RunAll runs every signer concurrently and waits for the verdict.
func (d *Driver) RunAll(ctx context.Context, signers []identity.Signer) ([]*Result, error) {
	results := make([]*Result, len(signers))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, s := range signers {
		i, s := i, s
		eg.Go(func() error {
			res, err := d.Run(egCtx, s)
			if err != nil {
				return fmt.Errorf("party %s: %w", s.ID(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if _, err := d.AwaitVerdict(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// wait calls done, at most once per poll interval, until it returns true.
func (d *Driver) wait(ctx context.Context, done func() (bool, error)) error {
	limit := rate.Inf
	if d.poll.Interval > 0 {
		limit = rate.Every(d.poll.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)
	for attempt := 0; d.poll.MaxAttempts <= 0 || attempt < d.poll.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrPollExhausted
}
