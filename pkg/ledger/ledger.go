// Package ledger implements the shared store ceremony state lives in.
//
// Every mutation is a serialized read-modify-write of one record, so concurrent
// submissions to the same ceremony are applied one after the other.
package ledger

import (
	"context"
	"errors"

	"github.com/taurusgroup/multi-party-ecdh/internal/metrics"
)

var (
	// ErrNotFound is returned by View when no record is stored under the key.
	ErrNotFound = errors.New("ledger: record not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ledger: closed")
)

// UpdateFunc receives the current record, nil if there is none, and returns the record to store.
// If it returns an error, nothing is written.
type UpdateFunc func(current []byte) ([]byte, error)

// Ledger is a key-value store with serialized updates.
type Ledger interface {
	// View returns a copy of the record stored under key.
	View(ctx context.Context, key string) ([]byte, error)
	// Update applies fn to the record stored under key, atomically with respect to other updates of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// Instrumented wraps a Ledger and records operation counts and latencies.
type Instrumented struct {
	Ledger
	backend string
	metrics *metrics.StorageMetrics
}

// WithMetrics returns l instrumented with m under the given backend label.
func WithMetrics(l Ledger, backend string, m *metrics.StorageMetrics) *Instrumented {
	return &Instrumented{Ledger: l, backend: backend, metrics: m}
}

func (l *Instrumented) View(ctx context.Context, key string) ([]byte, error) {
	timer := l.metrics.Latencies(l.backend, "view")
	defer timer.ObserveDuration()
	value, err := l.Ledger.View(ctx, key)
	l.metrics.Operations(l.backend, "view", status(err)).Inc()
	return value, err
}

func (l *Instrumented) Update(ctx context.Context, key string, fn UpdateFunc) error {
	timer := l.metrics.Latencies(l.backend, "update")
	defer timer.ObserveDuration()
	err := l.Ledger.Update(ctx, key, fn)
	l.metrics.Operations(l.backend, "update", status(err)).Inc()
	return err
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failure"
	}
}
