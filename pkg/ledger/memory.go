package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger. It is what tests and local simulations run on.
type Memory struct {
	mtx     sync.Mutex
	records map[string][]byte
	closed  bool
}

var _ Ledger = (*Memory)(nil)

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

// View implements Ledger.
func (m *Memory) View(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	value, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(value), nil
}

// Update implements Ledger.
func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return ErrClosed
	}
	next, err := fn(clone(m.records[key]))
	if err != nil {
		return err
	}
	m.records[key] = clone(next)
	return nil
}

// Close implements Ledger.
func (m *Memory) Close() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
