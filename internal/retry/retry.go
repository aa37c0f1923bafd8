// Package retry wraps calls against the RPC boundary with exponential backoff
// on rate-limit failures. Other failures are returned immediately.
package retry

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const (
	DefaultMaxAttempts = 6
	DefaultBaseDelay   = 500 * time.Millisecond

	MaxDelay = time.Duration(math.MaxInt64)
)

// Policy controls when and how long Do waits before retrying.
type Policy struct {
	// MaxAttempts is the number of retries allowed after the first call.
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
	// OnRetry is called before each wait with the zero-based attempt and delay.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep waits for d or until ctx is done. Nil means a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy retries rate-limited calls six times starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Retryable:   IsRateLimited,
	}
}

// Delay returns the wait before retry number attempt (zero-based). It
// saturates at MaxDelay instead of overflowing.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 63 || p.BaseDelay > MaxDelay>>uint(attempt) {
		return MaxDelay
	}
	return p.BaseDelay << uint(attempt)
}

// Do runs op, retrying while the error is retryable and attempts remain.
// The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRateLimited
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= p.MaxAttempts || !retryable(err) {
			return result, err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			// cancelled while backing off; surface the call's own failure
			return result, err
		}
	}
}

// IsRateLimited reports whether err signals an RPC rate limit.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
