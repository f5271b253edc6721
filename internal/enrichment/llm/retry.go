package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joshsymonds/warlens/internal/enrichment"
)

// retryDriver retries transport failures. No-suggestion and unparsable
// responses are returned immediately since repeating them rarely helps.
type retryDriver struct {
	Driver
	newBackOff func() backoff.BackOff
	maxRetries int
}

// WithRetry wraps d so transport failures are retried up to maxRetries times
// with exponential backoff. maxRetries <= 0 returns d unchanged.
func WithRetry(d Driver, maxRetries int) Driver {
	if maxRetries <= 0 {
		return d
	}
	return &retryDriver{
		Driver:     d,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Generate implements Driver.
func (r *retryDriver) Generate(ctx context.Context, prompt string) (string, error) {
	var suggestion string
	op := func() error {
		s, err := r.Driver.Generate(ctx, prompt)
		if err != nil {
			if enrichment.ClassOf(err) != enrichment.FailureTransport {
				return backoff.Permanent(err)
			}
			return err
		}
		suggestion = s
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.maxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return suggestion, nil
}
