// Package retry wraps hosted-service calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config bounds the retry loop.
type Config struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// Retrier executes functions with the configured backoff policy. The zero
// value performs a single attempt without retrying.
type Retrier struct {
	cfg Config
}

func New(cfg Config) *Retrier {
	return &Retrier{cfg: cfg}
}

func (r *Retrier) options(ctx context.Context) []retry.Option {
	attempts := r.cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}
	opts := []retry.Option{
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
	if r.cfg.Delay > 0 {
		opts = append(opts, retry.Delay(r.cfg.Delay))
	}
	if r.cfg.MaxDelay > 0 {
		opts = append(opts, retry.MaxDelay(r.cfg.MaxDelay))
	}
	return opts
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is cancelled.
// Only the last error is returned.
func (r *Retrier) Do(ctx context.Context, fn func() error) error {
	return retry.Do(fn, r.options(ctx)...)
}
