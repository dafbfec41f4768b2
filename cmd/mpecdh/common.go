package main

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/taurusgroup/multi-party-ecdh/internal/config"
	"github.com/taurusgroup/multi-party-ecdh/internal/log"
	"github.com/taurusgroup/multi-party-ecdh/internal/metrics"
	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/ledger"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

// environment is what every command builds from the configuration.
type environment struct {
	cfg             *config.Config
	log             zerolog.Logger
	ceremonyMetrics *metrics.CeremonyMetrics
	storageMetrics  *metrics.StorageMetrics
}

func newEnvironment() (*environment, error) {
	cfg := &config.Config{}
	if configFile != "" {
		var err error
		if cfg, err = config.InitConfig(configFile); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return newEnvironmentFromConfig(cfg)
}

func newEnvironmentFromConfig(cfg *config.Config) (*environment, error) {
	var format, level string
	if cfg.Log != nil {
		format, level = cfg.Log.Format, cfg.Log.Level
	}
	logger, err := log.NewRootLogger(format, level)
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, log: logger}
	if cfg.Metrics != nil {
		env.ceremonyMetrics = metrics.NewCeremonyMetrics()
		env.storageMetrics = metrics.NewStorageMetrics()
	}
	return env, nil
}

// openLedger opens the configured backend, the memory ledger if none is.
func (e *environment) openLedger(ctx context.Context) (ledger.Ledger, error) {
	cfg := e.cfg.Ledger
	if cfg == nil {
		cfg = &config.LedgerConfig{Backend: config.BackendMemory}
	}
	var (
		l   ledger.Ledger
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		l = ledger.NewMemory()
	case config.BackendPogreb:
		l, err = ledger.OpenPogreb(cfg.Path, e.log)
	case config.BackendPostgres:
		l, err = ledger.OpenPostgres(ctx, cfg.Endpoint, e.log)
	default:
		err = fmt.Errorf("unknown ledger backend '%s'", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if e.storageMetrics != nil {
		l = ledger.WithMetrics(l, cfg.Backend, e.storageMetrics)
	}
	return l, nil
}

func (e *environment) poll() mpecdh.PollConfig {
	poll := mpecdh.DefaultPoll
	if d := e.cfg.Driver; d != nil {
		if d.PollInterval > 0 {
			poll.Interval = d.PollInterval
		}
		if d.MaxAttempts > 0 {
			poll.MaxAttempts = d.MaxAttempts
		}
	}
	return poll
}

func (e *environment) options() []mpecdh.Option {
	opts := []mpecdh.Option{mpecdh.WithLogger(e.log), mpecdh.WithPoll(e.poll())}
	if e.ceremonyMetrics != nil {
		opts = append(opts, mpecdh.WithMetrics(e.ceremonyMetrics))
	}
	return opts
}

// wallet builds the configured wallet on l.
func (e *environment) wallet(l ledger.Ledger) (*mpecdh.Wallet, error) {
	if e.cfg.Ceremony == nil {
		return nil, fmt.Errorf("config: no ceremony section")
	}
	keys, err := e.cfg.Ceremony.OwnerKeys()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	owners := make([]mpecdh.Owner, 0, len(keys))
	for _, key := range keys {
		pk := ed25519.PublicKey(key)
		owners = append(owners, mpecdh.Owner{ID: identity.Address(pk), PublicKey: pk})
	}
	return mpecdh.NewWallet(owners, e.cfg.Ceremony.Threshold, l, e.options()...)
}

func readSigners(paths []string) ([]*identity.Ed25519Signer, error) {
	signers := make([]*identity.Ed25519Signer, 0, len(paths))
	for _, p := range paths {
		s, err := identity.ReadKeyFile(p)
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", p, err)
		}
		signers = append(signers, s)
	}
	return signers, nil
}
