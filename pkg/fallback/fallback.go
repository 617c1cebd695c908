// Package fallback runs an operation against a fixed, ordered chain of
// variants. Each attempt is independent and stateless; there is no backoff
// and no repeat of a variant that has already failed.
package fallback

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Attempt is one variant in a chain. Name is used only for logging.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// ErrNoAttempts is returned when Run is called with an empty chain.
var ErrNoAttempts = errors.New("fallback: no attempts configured")

// Run tries each attempt in order and returns the first success. When every
// attempt fails it returns the zero value and the error from the final
// attempt, which callers classify for user-facing messaging.
func Run[T any](ctx context.Context, logger *zap.Logger, attempts []Attempt[T]) (T, int, error) {
	var zero T

	if len(attempts) == 0 {
		return zero, -1, ErrNoAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for i, attempt := range attempts {
		select {
		case <-ctx.Done():
			return zero, i, ctx.Err()
		default:
		}

		result, err := attempt.Run(ctx)
		if err == nil {
			if i > 0 {
				logger.Info("Fallback variant succeeded",
					zap.String("variant", attempt.Name),
					zap.Int("position", i),
				)
			}
			return result, i, nil
		}

		lastErr = err
		logger.Warn("Fallback variant failed",
			zap.String("variant", attempt.Name),
			zap.Int("position", i),
			zap.Int("remaining", len(attempts)-i-1),
			zap.Error(err),
		)
	}

	return zero, len(attempts) - 1, lastErr
}
