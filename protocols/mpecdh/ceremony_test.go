package mpecdh

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/internal/test"
	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/ledger"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

var groups = []curve.Curve{curve.X25519{}, curve.Secp256k1{}}

type fixture struct {
	ledger   *ledger.Memory
	ceremony *Ceremony
	signers  []identity.Signer
	pairs    map[party.ID]*identity.KeyPair
}

func newFixture(t *testing.T, group curve.Curve, n int, allowRoundCorrection bool) *fixture {
	t.Helper()
	l := ledger.NewMemory()
	signers := test.Signers(t, n)
	c, err := Deploy(context.Background(), l, uuid.NewString(), Config{
		Group:                group,
		Participants:         test.IDs(signers),
		AllowRoundCorrection: allowRoundCorrection,
	})
	require.NoError(t, err)

	kps, err := identity.DeriveAll(group, signers, nil)
	require.NoError(t, err)
	pairs := make(map[party.ID]*identity.KeyPair, n)
	for _, kp := range kps {
		pairs[kp.ID] = kp
	}
	return &fixture{ledger: l, ceremony: c, signers: signers, pairs: pairs}
}

// snapshot returns the stored state, to check that an operation did not modify it.
func (f *fixture) snapshot(t *testing.T) []byte {
	t.Helper()
	data, err := f.ledger.View(context.Background(), ledgerKey(f.ceremony.ID()))
	require.NoError(t, err)
	return data
}

func (f *fixture) submitPublic(t *testing.T, id party.ID) {
	t.Helper()
	public, err := f.pairs[id].PublicBytes()
	require.NoError(t, err)
	require.NoError(t, f.ceremony.Submit(context.Background(), id, public))
}

func (f *fixture) relay(t *testing.T, id party.ID) []byte {
	t.Helper()
	_, value, err := f.ceremony.Prepare(context.Background(), id)
	require.NoError(t, err)
	out, err := curve.Multiply(f.pairs[id].Secret, value)
	require.NoError(t, err)
	require.NoError(t, f.ceremony.Submit(context.Background(), id, out))
	return out
}

// run executes the whole ceremony with the given submission order and returns the shared secrets.
func (f *fixture) run(t *testing.T, order []party.ID) map[party.ID][]byte {
	t.Helper()
	ctx := context.Background()
	for _, id := range order {
		f.submitPublic(t, id)
	}
	for r := 1; r <= len(order)-2; r++ {
		for _, id := range order {
			f.relay(t, id)
		}
	}
	secrets := make(map[party.ID][]byte, len(order))
	for _, id := range order {
		shared, err := f.ceremony.Finalize(ctx, id, f.pairs[id].Secret)
		require.NoError(t, err)
		secrets[id] = shared
	}
	return secrets
}

func assertAllEqual(t *testing.T, secrets map[party.ID][]byte) []byte {
	t.Helper()
	var first []byte
	for id, s := range secrets {
		if first == nil {
			first = s
			continue
		}
		assert.Equal(t, first, s, "shared secret of %s differs", id)
	}
	return first
}

func TestCeremony_Symmetry(t *testing.T) {
	for _, group := range groups {
		for _, n := range []int{2, 3, 5} {
			t.Run(fmt.Sprintf("%s/N=%d", group.Name(), n), func(t *testing.T) {
				f := newFixture(t, group, n, false)
				secrets := f.run(t, test.IDs(f.signers))
				require.Len(t, secrets, n)
				shared := assertAllEqual(t, secrets)
				assert.Len(t, shared, group.PointBytes())

				st, err := f.ceremony.Status(context.Background(), f.signers[0].ID())
				require.NoError(t, err)
				assert.True(t, st.Complete)
				assert.Equal(t, round.Last(n), st.Round)
			})
		}
	}
}

func TestCeremony_OrderIndependence(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			forward := newFixture(t, group, 5, false)
			ids := test.IDs(forward.signers)
			a := assertAllEqual(t, forward.run(t, ids))

			reverse := newFixture(t, group, 5, false)
			b := assertAllEqual(t, reverse.run(t, test.IDs(test.Reversed(reverse.signers))))

			assert.Equal(t, a, b)
		})
	}
}

// TestCeremony_ThreeParties follows each value through a ring of three.
func TestCeremony_ThreeParties(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, false)
	ring, err := f.ceremony.Participants(ctx)
	require.NoError(t, err)
	ids := ring.IDs()
	a, b, c := f.pairs[ids[0]], f.pairs[ids[1]], f.pairs[ids[2]]

	mul := func(s curve.Scalar, p curve.Point) curve.Point {
		out, err := s.Act(p)
		require.NoError(t, err)
		return out
	}
	enc := func(p curve.Point) []byte {
		data, err := p.MarshalBinary()
		require.NoError(t, err)
		return data
	}

	for _, id := range ids {
		f.submitPublic(t, id)
	}
	// ring a -> b -> c -> a: b consumes a's value
	assert.Equal(t, enc(mul(b.Secret, a.Public)), f.relay(t, b.ID))
	assert.Equal(t, enc(mul(c.Secret, b.Public)), f.relay(t, c.ID))
	assert.Equal(t, enc(mul(a.Secret, c.Public)), f.relay(t, a.ID))

	expected := enc(mul(a.Secret, mul(c.Secret, b.Public)))
	for _, kp := range []*identity.KeyPair{a, b, c} {
		shared, err := f.ceremony.Finalize(ctx, kp.ID, kp.Secret)
		require.NoError(t, err)
		assert.Equal(t, expected, shared)
	}
	assert.Equal(t, expected, enc(mul(b.Secret, mul(a.Secret, c.Public))))
	assert.Equal(t, expected, enc(mul(c.Secret, mul(b.Secret, a.Public))))
}

func TestCeremony_Pair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 2, false)
	ids := test.IDs(f.signers)
	f.submitPublic(t, ids[0])

	st, err := f.ceremony.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, st.Complete)
	assert.Equal(t, party.IDSlice{ids[1]}, st.Missing)

	f.submitPublic(t, ids[1])
	st, err = f.ceremony.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, st.Complete, "a pair has no relay rounds")

	a, b := f.pairs[ids[0]], f.pairs[ids[1]]
	ab, err := a.Secret.Act(b.Public)
	require.NoError(t, err)
	ba, err := b.Secret.Act(a.Public)
	require.NoError(t, err)
	assert.True(t, ab.Equal(ba))

	shared, err := f.ceremony.Finalize(ctx, a.ID, a.Secret)
	require.NoError(t, err)
	expected, err := ab.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, expected, shared)
}

func TestCeremony_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, false)
	ids := test.IDs(f.signers)
	outsider := test.Signer(t, "outsider")
	public, err := f.pairs[ids[0]].PublicBytes()
	require.NoError(t, err)

	before := f.snapshot(t)

	err = f.ceremony.Submit(ctx, outsider.ID(), public)
	assert.ErrorIs(t, err, ErrUnauthorizedSigner)
	var cerr Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, outsider.ID(), cerr.Culprit)

	for name, value := range map[string][]byte{
		"empty": nil,
		"short": public[:31],
		"zero":  make([]byte, 32),
		"long":  append(public, 0),
	} {
		err = f.ceremony.Submit(ctx, ids[0], value)
		assert.ErrorIs(t, err, ErrInvalidPoint, name)
	}

	_, err = f.ceremony.Finalize(ctx, ids[0], f.pairs[ids[0]].Secret)
	assert.ErrorIs(t, err, ErrNotComplete)
	_, _, err = f.ceremony.Prepare(ctx, outsider.ID())
	assert.ErrorIs(t, err, ErrUnauthorizedSigner)
	_, err = f.ceremony.Status(ctx, outsider.ID())
	assert.ErrorIs(t, err, ErrUnauthorizedSigner)

	assert.Equal(t, before, f.snapshot(t), "rejected operations must not change the state")

	// strict: one submission per participant and round
	f.submitPublic(t, ids[0])
	afterFirst := f.snapshot(t)
	err = f.ceremony.Submit(ctx, ids[0], public)
	assert.ErrorIs(t, err, ErrRoundClosed)
	assert.Equal(t, afterFirst, f.snapshot(t))
}

func TestCeremony_CompleteRejectsSubmissions(t *testing.T) {
	ctx := context.Background()
	for _, correctable := range []bool{false, true} {
		f := newFixture(t, curve.X25519{}, 3, correctable)
		ids := test.IDs(f.signers)
		f.run(t, ids)
		before := f.snapshot(t)
		public, err := f.pairs[ids[0]].PublicBytes()
		require.NoError(t, err)
		assert.ErrorIs(t, f.ceremony.Submit(ctx, ids[0], public), ErrRoundClosed)
		assert.Equal(t, before, f.snapshot(t))
	}
}

func TestCeremony_Correction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, true)
	ids := test.IDs(f.signers)
	for _, id := range ids {
		f.submitPublic(t, id)
	}

	garbage, err := curve.X25519{}.ScalarFromHash([]byte("garbage")).ActOnBase().MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, f.ceremony.Submit(ctx, ids[0], garbage))

	st, err := f.ceremony.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, round.Number(1), st.Round)
	assert.True(t, st.Submitted)
	assert.Equal(t, garbage, st.Pending)

	// last write wins until the round seals
	f.relay(t, ids[0])
	st, err = f.ceremony.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.NotEqual(t, garbage, st.Pending)
	assert.Equal(t, round.Number(1), st.Round, "a correction must not seal the round")

	f.relay(t, ids[1])
	f.relay(t, ids[2])

	secrets := make(map[party.ID][]byte)
	for _, id := range ids {
		secrets[id], err = f.ceremony.Finalize(ctx, id, f.pairs[id].Secret)
		require.NoError(t, err)
	}
	assertAllEqual(t, secrets)
}

func TestCeremony_IntraRoundOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 4, false)
	ids := test.IDs(f.signers)
	for _, id := range ids {
		f.submitPublic(t, id)
	}

	// the value a participant prepares does not depend on who already submitted in the round
	_, before, err := f.ceremony.Prepare(ctx, ids[1])
	require.NoError(t, err)
	f.relay(t, ids[0])
	r, after, err := f.ceremony.Prepare(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, round.Number(1), r)
	assert.Equal(t, before, after)
}

func TestCeremony_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, false)
	ids := test.IDs(f.signers)
	for _, id := range ids {
		f.submitPublic(t, id)
	}
	before := f.snapshot(t)
	for i := 0; i < 3; i++ {
		for _, id := range ids {
			_, _, err := f.ceremony.Prepare(ctx, id)
			require.NoError(t, err)
			_, err = f.ceremony.Status(ctx, id)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, before, f.snapshot(t))
}

func TestCeremony_SubmitAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, false)
	ids := test.IDs(f.signers)
	public, err := f.pairs[ids[0]].PublicBytes()
	require.NoError(t, err)

	err = f.ceremony.SubmitAt(ctx, ids[0], Position{Epoch: 0, Round: 1}, public)
	assert.ErrorIs(t, err, ErrStaleRound)
	err = f.ceremony.SubmitAt(ctx, ids[0], Position{Epoch: 1, Round: 0}, public)
	assert.ErrorIs(t, err, ErrStaleRound)
	require.NoError(t, f.ceremony.SubmitAt(ctx, ids[0], Position{}, public))
}

func TestCeremony_SubmitAtSeq(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, true)
	ids := test.IDs(f.signers)
	public, err := f.pairs[ids[0]].PublicBytes()
	require.NoError(t, err)
	other, err := f.pairs[ids[1]].PublicBytes()
	require.NoError(t, err)

	require.NoError(t, f.ceremony.SubmitAt(ctx, ids[0], Position{}, other))
	require.NoError(t, f.ceremony.SubmitAt(ctx, ids[0], Position{Seq: 1}, public))

	// a signed submission made before the correction cannot be applied again
	before := f.snapshot(t)
	assert.ErrorIs(t, f.ceremony.SubmitAt(ctx, ids[0], Position{}, other), ErrStaleRound)
	assert.Equal(t, before, f.snapshot(t))

	st, err := f.ceremony.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Seq)
	assert.Equal(t, public, st.Pending)
	assert.Equal(t, Position{Seq: 2}, st.Position())
}

func TestCeremony_Attestations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, false)
	ids := test.IDs(f.signers)
	tag := AttestationTag([]byte("ssid"), 0, []byte("secret"))

	assert.ErrorIs(t, f.ceremony.Attest(ctx, ids[0], 0, tag), ErrNotComplete)

	secrets := f.run(t, ids)
	st, err := f.ceremony.Status(ctx, ids[0])
	require.NoError(t, err)

	for i, id := range ids {
		v, err := f.ceremony.Verdict(ctx)
		require.NoError(t, err)
		assert.Equal(t, VerdictPending, v, "after %d attestations", i)
		require.NoError(t, f.ceremony.Attest(ctx, id, st.Epoch, AttestationTag(st.SSID, st.Epoch, secrets[id])))
	}
	v, err := f.ceremony.Verdict(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerdictAgreed, v)

	before := f.snapshot(t)
	require.NoError(t, f.ceremony.Attest(ctx, ids[1], st.Epoch, AttestationTag(st.SSID, st.Epoch, secrets[ids[1]])))
	assert.ErrorIs(t, f.ceremony.Attest(ctx, ids[1], st.Epoch, tag), ErrAttestationConflict)
	assert.ErrorIs(t, f.ceremony.Attest(ctx, ids[1], st.Epoch+1, tag), ErrStaleRound)
	assert.Error(t, f.ceremony.Attest(ctx, ids[0], st.Epoch, []byte("short")))
	assert.Equal(t, before, f.snapshot(t))

	v, err = f.ceremony.Verdict(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerdictAgreed, v)
}

func TestCeremony_VerdictDiverged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, curve.X25519{}, 3, false)
	ids := test.IDs(f.signers)
	secrets := f.run(t, ids)
	st, err := f.ceremony.Status(ctx, ids[0])
	require.NoError(t, err)

	require.NoError(t, f.ceremony.Attest(ctx, ids[0], st.Epoch, AttestationTag(st.SSID, st.Epoch, secrets[ids[0]])))
	require.NoError(t, f.ceremony.Attest(ctx, ids[1], st.Epoch, AttestationTag(st.SSID, st.Epoch, []byte("garbage"))))
	v, err := f.ceremony.Verdict(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerdictDiverged, v)
}

func TestCeremony_DeployOpen(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	ids := test.PartyIDs(3)

	_, err := Deploy(ctx, l, "c1", Config{Participants: ids[:1]})
	assert.ErrorIs(t, err, party.ErrRingTooSmall)

	c, err := Deploy(ctx, l, "c1", Config{Group: curve.Secp256k1{}, Participants: ids})
	require.NoError(t, err)
	_, err = Deploy(ctx, l, "c1", Config{Participants: ids})
	assert.ErrorIs(t, err, ErrCeremonyExists)

	opened, err := Open(ctx, l, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Group(), opened.Group())
	ring, err := opened.Participants(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, ring.IDs())

	_, err = Open(ctx, l, "missing")
	assert.ErrorIs(t, err, ErrUnknownCeremony)
}
