package booking

import (
	"context"
	"errors"

	"github.com/lib/pq"
)

// WithRetry re-runs f on postgres serialization failures (SQLSTATE 40001).
// Any other error is returned immediately.
func WithRetry(attempts int, f func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var lastErr error
		for i := 0; i < attempts; i++ {
			err := f(ctx)
			if err == nil {
				return nil
			}

			pgErr := &pq.Error{}
			if errors.As(err, &pgErr) && pgErr.Code == "40001" {
				lastErr = err
				continue
			}

			return err
		}
		return lastErr
	}
}
