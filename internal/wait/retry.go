package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultAttempts   = 5
	DefaultRetryDelay = time.Second
)

// Retry calls cond up to attempts times, sleeping delay between attempts, and
// returns as soon as it holds. Errors from cond are logged and count as a
// failed attempt. Zero values select DefaultAttempts and DefaultRetryDelay.
func Retry(ctx context.Context, cond Condition, attempts int, delay time.Duration) error {
	return retry(ctx, cond, attempts, delay, sleep)
}

type sleeper func(ctx context.Context, d time.Duration) error

func retry(ctx context.Context, cond Condition, attempts int, delay time.Duration, sleep sleeper) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	for i := 1; i <= attempts; i++ {
		ok, err := cond(ctx)
		if err != nil {
			log.Warn().Err(err).Int("attempt", i).Int("attempts", attempts).Msg("retry attempt failed")
		} else if ok {
			return nil
		}

		if i == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry interrupted after %d attempts: %w", i, err)
		}
	}

	return &ConditionNotMetError{Attempts: attempts}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
