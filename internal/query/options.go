package query

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultRetryCount = 3
	DefaultRetryDelay = time.Second
	DefaultGCTime     = 5 * time.Minute

	maxRetryDelay = 30 * time.Second
)

type Options struct {
	RetryCount int
	RetryDelay time.Duration
	// StaleTime is how long fetched data counts as fresh. Zero means always stale.
	StaleTime time.Duration
	// GCTime is how long an unused entry stays in its cache.
	GCTime time.Duration
	// ShouldRetry filters which errors are retried. Nil retries everything.
	ShouldRetry func(error) bool
}

func DefaultOptions() Options {
	return Options{
		RetryCount: DefaultRetryCount,
		RetryDelay: DefaultRetryDelay,
		GCTime:     DefaultGCTime,
	}
}

func (o Options) WithStaleTime(d time.Duration) Options {
	o.StaleTime = d
	return o
}

// newBackOff doubles RetryDelay after each failed attempt up to a 30s cap,
// and stops after RetryCount retries or once ctx is done.
func newBackOff(ctx context.Context, opts Options) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if opts.RetryDelay > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = opts.RetryDelay
		exp.RandomizationFactor = 0
		exp.Multiplier = 2
		exp.MaxInterval = maxRetryDelay
		exp.MaxElapsedTime = 0
		b = exp
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(opts.RetryCount, 0))), ctx)
}

func retry(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		err := fn(ctx)
		if err != nil && opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newBackOff(ctx, opts))
}
