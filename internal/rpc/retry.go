package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/goran-ethernal/NFTIndexor/pkg/config"
)

const backoffJitter = 0.25

// transientMessages mark errors worth retrying: timeouts, throttling,
// gateway failures and exhausted connection pools.
var transientMessages = []string{
	"timeout",
	"deadline exceeded",
	"429",
	"too many requests",
	"rate limit",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"connection pool",
	"no available connection",
}

// retryableError reports whether err is transient.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}

// calculateBackoff returns the wait before attempt (1-based). The first
// attempt never waits; later ones grow geometrically up to MaxBackoff with
// ±25% jitter.
func calculateBackoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2)) //nolint:mnd
	backoff = min(backoff, float64(cfg.MaxBackoff.Duration))

	spread := backoff * backoffJitter
	backoff += rand.Float64()*2*spread - spread //nolint:gosec,mnd

	return time.Duration(max(backoff, 0))
}

// retryWithBackoff runs fn until it succeeds, fails with a non-transient
// error, exhausts cfg.MaxAttempts or ctx is done. A nil cfg runs fn once.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, operation string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if wait := calculateBackoff(attempt, cfg); wait > 0 {
			RPCRetryInc(operation)

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: cancelled during backoff (attempt %d/%d): %w",
					operation, attempt, cfg.MaxAttempts, ctx.Err())
			}
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: cancelled before attempt %d: %w", operation, attempt, err)
		}

		err := fn()
		if err == nil {
			return nil
		}

		if !retryableError(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("%s: all %d attempts failed after %v: %w",
		operation, cfg.MaxAttempts, time.Since(start), lastErr)
}
