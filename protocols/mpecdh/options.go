package mpecdh

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-ecdh/internal/metrics"
)

// PollConfig bounds how a driver waits for other participants.
type PollConfig struct {
	// Interval is the minimum time between two queries of the ceremony.
	Interval time.Duration
	// MaxAttempts is the number of queries after which waiting fails with ErrPollExhausted.
	// Zero means the wait is only bounded by the context.
	MaxAttempts int
}

// DefaultPoll waits up to a minute.
var DefaultPoll = PollConfig{
	Interval:    50 * time.Millisecond,
	MaxAttempts: 1200,
}

type options struct {
	log     zerolog.Logger
	metrics *metrics.CeremonyMetrics
	poll    PollConfig
}

// Option configures ceremonies, wallets and drivers.
type Option func(*options)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.CeremonyMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPoll sets how drivers wait for other participants.
func WithPoll(poll PollConfig) Option {
	return func(o *options) { o.poll = poll }
}

func newOptions(opts []Option) options {
	o := options{
		log:  zerolog.Nop(),
		poll: DefaultPoll,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
