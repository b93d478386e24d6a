package payments

import (
	"context"
	"errors"

	"github.com/lib/pq"
)

// withOpenRowRetry re-runs f once when the open-payment unique index rejects
// a concurrent insert (SQLSTATE 23505). The second run finds the winner's
// committed row and reuses it.
func withOpenRowRetry(f func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := f(ctx)

		pgErr := &pq.Error{}
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return f(ctx)
		}
		return err
	}
}
