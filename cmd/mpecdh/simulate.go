package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/pool"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

// simulation describes an in-process ceremony between freshly generated participants.
type simulation struct {
	n           int
	group       string
	correctable bool
	// corrupt makes the first participant submit wrong relay values in a first run,
	// which is detected and discarded by a reconstruction before the real run.
	corrupt bool
}

var sim simulation

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a ceremony between generated participants in process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		_, err = simulate(cmd.Context(), env, sim, cmd.OutOrStdout())
		return err
	},
}

func init() {
	simulateCmd.Flags().IntVarP(&sim.n, "parties", "n", 3, "number of participants")
	simulateCmd.Flags().StringVar(&sim.group, "group", curve.X25519{}.Name(), "group of the ceremony (x25519 or secp256k1)")
	simulateCmd.Flags().BoolVar(&sim.correctable, "allow-round-correction", false, "let participants replace a submission until the round seals")
	simulateCmd.Flags().BoolVar(&sim.corrupt, "corrupt", false, "corrupt a first run and recover with a reconstruction")
}

func simulate(ctx context.Context, env *environment, sim simulation, out io.Writer) ([]*mpecdh.Result, error) {
	group, err := curve.FromName(sim.group)
	if err != nil {
		return nil, err
	}
	if sim.corrupt && sim.n < 3 {
		return nil, fmt.Errorf("--corrupt needs at least 3 participants to have relay rounds")
	}

	signers := make([]identity.Signer, 0, sim.n)
	owners := make([]mpecdh.Owner, 0, sim.n)
	for i := 0; i < sim.n; i++ {
		s, err := identity.GenerateEd25519Signer(rand.Reader)
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
		owners = append(owners, mpecdh.Owner{ID: s.ID(), PublicKey: s.PublicKey()})
	}

	l, err := env.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	threshold := sim.n/2 + 1
	w, err := mpecdh.NewWallet(owners, threshold, l, env.options()...)
	if err != nil {
		return nil, err
	}
	c, err := w.Deploy(ctx, mpecdh.DeployConfig{Group: group, AllowRoundCorrection: sim.correctable})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "ceremony %s: %d parties, %s, wallet %s (threshold %d)\n", c.ID(), sim.n, group.Name(), w.Address(), threshold)

	pl := pool.NewPool(0)
	defer pl.TearDown()
	pairs, err := identity.DeriveAll(group, signers, pl)
	if err != nil {
		return nil, err
	}
	for _, kp := range pairs {
		public, err := kp.PublicBytes()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "  %s public %s\n", kp.ID, hex.EncodeToString(public))
	}

	d := mpecdh.NewDriver(c, env.options()...)

	if sim.corrupt {
		if err = corruptRun(ctx, group, c, d, signers); !errors.Is(err, mpecdh.ErrCorrupted) {
			return nil, fmt.Errorf("corrupted run not detected: %v", err)
		}
		epoch, err := c.Epoch(ctx)
		if err != nil {
			return nil, err
		}
		approvals := make([]mpecdh.Approval, 0, threshold)
		for _, s := range signers[:threshold] {
			a, err := mpecdh.Approve(s, c.ID(), epoch)
			if err != nil {
				return nil, err
			}
			approvals = append(approvals, a)
		}
		if err = w.Reconstruct(ctx, c, approvals); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "epoch %d: participants disagreed, reconstructed with %d approvals\n", epoch, len(approvals))
	}

	results, err := d.RunAll(ctx, signers)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		fmt.Fprintf(out, "  %s epoch %d tag %s\n", res.ID, res.Epoch, hex.EncodeToString(res.Tag()))
	}
	fmt.Fprintln(out, "every participant derived the same shared secret")
	return results, nil
}

// corruptRun runs the ceremony with the first participant submitting wrong relay values,
// every participant attesting to what it finalized.
func corruptRun(ctx context.Context, group curve.Curve, c *mpecdh.Ceremony, d *mpecdh.Driver, signers []identity.Signer) error {
	for _, s := range signers {
		if err := d.Step0(ctx, s); err != nil {
			return err
		}
	}
	liar := signers[0]
	for r := round.Number(1); r <= round.Last(len(signers)); r++ {
		wrong, err := group.ScalarFromHash([]byte(fmt.Sprintf("wrong value %d", r))).ActOnBase().MarshalBinary()
		if err != nil {
			return err
		}
		if err = c.Submit(ctx, liar.ID(), wrong); err != nil {
			return err
		}
		for _, s := range signers[1:] {
			if err = d.StepN(ctx, s); err != nil {
				return err
			}
		}
	}
	for _, s := range signers {
		res, err := d.StepX(ctx, s)
		if err != nil {
			return err
		}
		if err = c.Attest(ctx, s.ID(), res.Epoch, res.Tag()); err != nil {
			return err
		}
	}
	_, err := d.AwaitVerdict(ctx)
	return err
}
