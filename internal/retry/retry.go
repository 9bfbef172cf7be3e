// Package retry provides the single backoff policy applied to every
// external collaborator call: fixed bounded attempts with exponential
// backoff and a retryable-error predicate. Centralizing the policy keeps
// retry-with-sleep loops out of the call paths and guarantees that
// non-retryable failures (malformed responses, validation errors) are never
// re-attempted.
package retry

import (
	"context"
	"log/slog"
	"time"

	retrygo "github.com/avast/retry-go"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/redact"
)

// Policy describes a bounded exponential-backoff retry schedule.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt; it doubles for
	// each attempt after that.
	BaseDelay time.Duration

	// RetryIf reports whether an error is worth another attempt. A nil
	// predicate retries everything.
	RetryIf func(error) bool
}

// DefaultPolicy matches the collaborator contract: three attempts with a
// two-second base delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Do runs fn under the policy. The last error is returned once attempts are
// exhausted or fn fails with a non-retryable error. Context cancellation
// stops the schedule immediately.
func (p Policy) Do(ctx context.Context, operation string, fn func() error) error {
	log := logger.FromContext(ctx)

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = func(error) bool { return true }
	}

	return retrygo.Do(
		fn,
		retrygo.Context(ctx),
		retrygo.Attempts(uint(attempts)),
		retrygo.Delay(p.BaseDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(retryIf),
		retrygo.OnRetry(func(attempt uint, err error) {
			log.Warn("retrying external call",
				slog.String("operation", operation),
				slog.Uint64("attempt", uint64(attempt)+1),
				slog.String("error", redact.Error(err)))
		}),
	)
}
