package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akrylysov/pogreb"
	"github.com/rs/zerolog"
)

// Pogreb is a Ledger persisted in an embedded pogreb database.
//
// pogreb serializes single writes but not read-modify-write cycles,
// so updates are serialized by a mutex held across Get and Put.
type Pogreb struct {
	db   *pogreb.DB
	path string
	log  zerolog.Logger

	mtx    sync.Mutex
	closed bool
}

var _ Ledger = (*Pogreb)(nil)

// OpenPogreb opens, or creates, the database at path.
func OpenPogreb(path string, log zerolog.Logger) (*Pogreb, error) {
	db, err := pogreb.Open(path, &pogreb.Options{
		BackgroundSyncInterval: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: open pogreb at %s: %w", path, err)
	}
	log = log.With().Str("module", "ledger").Str("backend", "pogreb").Logger()
	log.Info().Str("path", path).Msg("opened ledger")
	return &Pogreb{db: db, path: path, log: log}, nil
}

// View implements Ledger.
func (p *Pogreb) View(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	value, err := p.get(key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return value, nil
}

// Update implements Ledger.
func (p *Pogreb) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return ErrClosed
	}
	current, err := p.get(key)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err = p.db.Put([]byte(key), next); err != nil {
		return fmt.Errorf("ledger: put %s: %w", key, err)
	}
	// make the record durable before acknowledging the update
	if err = p.db.Sync(); err != nil {
		return fmt.Errorf("ledger: sync: %w", err)
	}
	return nil
}

func (p *Pogreb) get(key string) ([]byte, error) {
	has, err := p.db.Has([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("ledger: has %s: %w", key, err)
	}
	if !has {
		return nil, nil
	}
	value, err := p.db.Get([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Close implements Ledger.
func (p *Pogreb) Close() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info().Str("path", p.path).Msg("closing ledger")
	return p.db.Close()
}
