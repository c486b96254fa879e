package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures RetryExporter.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the delay before the first retry.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the delay between retries.
	// Default: 5s
	MaxInterval time.Duration

	// OnRetry is called before each retry with the failed attempt's error.
	OnRetry func(err error, next time.Duration)
}

// Permanent marks an export error as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// RetryExporter wraps exp so failed exports are retried with jittered
// exponential backoff until they succeed, the retries run out, or ctx ends.
// Errors wrapped with Permanent are returned at once.
func RetryExporter(exp Exporter, config RetryConfig) Exporter {
	// Apply defaults
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = 100 * time.Millisecond
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = 5 * time.Second
	}

	return ExporterFunc(func(ctx context.Context, entries []EntrySnapshot) error {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = config.InitialInterval
		eb.MaxInterval = config.MaxInterval
		eb.MaxElapsedTime = 0
		b := backoff.WithContext(backoff.WithMaxRetries(eb, config.MaxRetries), ctx)

		return backoff.RetryNotify(func() error {
			return exp.Export(ctx, entries)
		}, b, config.OnRetry)
	})
}
