package mpecdh

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-ecdh/internal/metrics"
	"github.com/taurusgroup/multi-party-ecdh/pkg/hash"
	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/ledger"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

// Owner is a signer of the wallet, and a participant of the ceremonies it deploys.
type Owner struct {
	ID        party.ID
	PublicKey ed25519.PublicKey
}

// Approval is the signature of an owner on the reconstruction of a ceremony at a given epoch.
type Approval struct {
	Signer    party.ID
	Epoch     uint64
	Signature []byte
}

// DeployConfig selects the group and policy of a new ceremony.
type DeployConfig struct {
	Group                curve.Curve
	AllowRoundCorrection bool
}

// Wallet is a multi-signer wallet: its owners are the authorized participants of
// the ceremonies it deploys, and a threshold of them must approve a reconstruction.
type Wallet struct {
	owners    map[party.ID]ed25519.PublicKey
	ids       party.IDSlice
	threshold int
	address   string

	ledger  ledger.Ledger
	opts    []Option
	log     zerolog.Logger
	metrics *metrics.CeremonyMetrics
}

// NewWallet validates the owners and threshold.
// Every owner ID must be the address of its public key.
func NewWallet(owners []Owner, threshold int, l ledger.Ledger, opts ...Option) (*Wallet, error) {
	keys := make(map[party.ID]ed25519.PublicKey, len(owners))
	ids := make([]party.ID, 0, len(owners))
	for _, o := range owners {
		if len(o.PublicKey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("mpecdh: owner %s: %w", o.ID, identity.ErrInvalidKey)
		}
		if identity.Address(o.PublicKey) != o.ID {
			return nil, fmt.Errorf("mpecdh: owner %s does not match its public key", o.ID)
		}
		if _, dup := keys[o.ID]; dup {
			return nil, fmt.Errorf("mpecdh: owner %s: %w", o.ID, party.ErrDuplicateID)
		}
		keys[o.ID] = append(ed25519.PublicKey(nil), o.PublicKey...)
		ids = append(ids, o.ID)
	}
	sorted := party.NewIDSlice(ids)
	if len(sorted) < party.MinRingSize {
		return nil, fmt.Errorf("mpecdh: wallet: %w", party.ErrRingTooSmall)
	}
	if threshold < 1 || threshold > len(sorted) {
		return nil, fmt.Errorf("mpecdh: threshold %d out of range [1, %d]", threshold, len(sorted))
	}

	o := newOptions(opts)
	w := &Wallet{
		owners:    keys,
		ids:       sorted,
		threshold: threshold,
		ledger:    l,
		opts:      opts,
		metrics:   o.metrics,
	}
	w.address = w.computeAddress()
	w.log = o.log.With().Str("wallet", w.address).Logger()
	return w, nil
}

// computeAddress binds the owner keys and the threshold.
func (w *Wallet) computeAddress() string {
	h := hash.New(&hash.BytesWithDomain{TheDomain: "MPECDH Wallet", Bytes: []byte(ProtocolID)})
	_ = h.WriteAny(uint64(w.threshold))
	for _, id := range w.ids {
		_ = h.WriteAny(id, []byte(w.owners[id]))
	}
	return "0x" + hex.EncodeToString(h.Sum()[:identity.AddressBytes])
}

// Address identifies the wallet. Ceremonies it deploys can only be reconstructed by it.
func (w *Wallet) Address() string { return w.address }

// Owners returns the sorted owner IDs.
func (w *Wallet) Owners() party.IDSlice { return w.ids.Copy() }

// Threshold returns the number of approvals a reconstruction needs.
func (w *Wallet) Threshold() int { return w.threshold }

// IsOwner returns true if id is a recognized signer.
func (w *Wallet) IsOwner(id party.ID) bool {
	_, ok := w.owners[id]
	return ok
}

// PublicKey returns the key of owner id.
func (w *Wallet) PublicKey(id party.ID) (ed25519.PublicKey, bool) {
	pk, ok := w.owners[id]
	return pk, ok
}

// Deploy creates a ceremony whose participants are the owners.
func (w *Wallet) Deploy(ctx context.Context, cfg DeployConfig) (*Ceremony, error) {
	c, err := Deploy(ctx, w.ledger, uuid.NewString(), Config{
		Group:                cfg.Group,
		Participants:         w.ids,
		AllowRoundCorrection: cfg.AllowRoundCorrection,
		Controller:           w.address,
	}, w.opts...)
	if err != nil {
		return nil, err
	}
	w.log.Info().Str("ceremony", c.ID()).Msg("deployed ceremony")
	return c, nil
}

// Ceremony reopens a ceremony deployed by the wallet.
func (w *Wallet) Ceremony(ctx context.Context, id string) (*Ceremony, error) {
	return Open(ctx, w.ledger, id, w.opts...)
}

// ReconstructMessage is what owners sign to approve the reconstruction of a ceremony at an epoch.
func ReconstructMessage(ceremonyID string, epoch uint64) []byte {
	h := hash.New(&hash.BytesWithDomain{TheDomain: "MPECDH Reconstruct", Bytes: []byte(ceremonyID)})
	_ = h.WriteAny(epoch)
	return h.Sum()
}

// Approve signs the reconstruction of ceremonyID at epoch.
func Approve(s identity.Signer, ceremonyID string, epoch uint64) (Approval, error) {
	sig, err := s.Sign(ReconstructMessage(ceremonyID, epoch))
	if err != nil {
		return Approval{}, fmt.Errorf("%w: %v", identity.ErrSignerUnavailable, err)
	}
	return Approval{Signer: s.ID(), Epoch: epoch, Signature: sig}, nil
}

// Reconstruct resets c for a fresh run once a threshold of distinct owners approved it
// for its current epoch. Every approval must be valid.
func (w *Wallet) Reconstruct(ctx context.Context, c *Ceremony, approvals []Approval) error {
	err := w.reconstruct(ctx, c, approvals)
	if err != nil {
		w.metrics.Reconstructions("rejected").Inc()
		w.log.Warn().Err(err).Str("ceremony", c.ID()).Msg("reconstruction rejected")
		return err
	}
	w.metrics.Reconstructions("accepted").Inc()
	return nil
}

func (w *Wallet) reconstruct(ctx context.Context, c *Ceremony, approvals []Approval) error {
	epoch, err := c.Epoch(ctx)
	if err != nil {
		return err
	}
	message := ReconstructMessage(c.ID(), epoch)
	approved := make(map[party.ID]bool, len(approvals))
	for _, a := range approvals {
		pk, ok := w.owners[a.Signer]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnauthorizedSigner, a.Signer)
		}
		if a.Epoch != epoch {
			return fmt.Errorf("%w: %s approved epoch %d, ceremony at epoch %d", ErrStaleApproval, a.Signer, a.Epoch, epoch)
		}
		if !identity.Verify(pk, message, a.Signature) {
			return fmt.Errorf("%w: %s", ErrInvalidApproval, a.Signer)
		}
		approved[a.Signer] = true
	}
	if len(approved) < w.threshold {
		return fmt.Errorf("%w: %d of %d", ErrQuorumNotReached, len(approved), w.threshold)
	}
	// the epoch is checked again inside the update, so approvals cannot be replayed
	_, err = c.reconstruct(ctx, w.address, epoch)
	return err
}
