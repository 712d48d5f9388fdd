// Package engagement persists the streak and activation engines.
// Each mutation loads the current state, applies a pure engine transition,
// and saves it with a revision check. Conflicting writers are resolved by a
// monotonic merge instead of an overwrite, so concurrent devices never erase
// each other's progress.
package engagement

import (
	"time"

	"go.uber.org/zap"
)

// DefaultMaxMerges bounds how often a save is re-attempted after a conflict.
const DefaultMaxMerges = 5

type options struct {
	clock     func() time.Time
	retry     RetryConfig
	maxMerges int
	log       *zap.Logger
	notifier  *Notifier
}

// Option configures a service.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithRetry sets the storage retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(o *options) { o.retry = cfg }
}

// WithMaxMerges bounds conflict resolution rounds.
func WithMaxMerges(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMerges = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithNotifier publishes domain events through n.
func WithNotifier(n *Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func newOptions(opts []Option) options {
	o := options{
		clock:     time.Now,
		retry:     DefaultRetryConfig(),
		maxMerges: DefaultMaxMerges,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) now() time.Time { return o.clock().UTC() }
