package sheets

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/retry"
)

// Waiter blocks until the next call may go out.
// *rate.Limiter and *redis.BoundLimiter both satisfy it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// LocalLimiter paces calls in-process at perMinute
func LocalLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// RetryPolicy retries quota errors only: 5 attempts from 1s, doubling
var RetryPolicy = retry.Policy{
	MaxAttempts:  5,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2,
	Retryable:    IsRateLimited,
}

// LimitedClient paces every call and retries rate-limit errors with backoff.
// Any other error is returned at once.
type LimitedClient struct {
	next   Client
	waiter Waiter
	policy retry.Policy
	logger *logger.Logger
}

// NewLimitedClient wraps next
func NewLimitedClient(next Client, waiter Waiter, log *logger.Logger) *LimitedClient {
	l := &LimitedClient{
		next:   next,
		waiter: waiter,
		policy: RetryPolicy,
		logger: log.Component("sheets"),
	}
	l.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.WithError(err).WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("Sheets rate limited, backing off")
	}
	return l
}

// WithPolicy overrides the retry policy (tests use short delays)
func (l *LimitedClient) WithPolicy(p retry.Policy) *LimitedClient {
	onRetry := l.policy.OnRetry
	l.policy = p
	if l.policy.Retryable == nil {
		l.policy.Retryable = IsRateLimited
	}
	if l.policy.OnRetry == nil {
		l.policy.OnRetry = onRetry
	}
	return l
}

func (l *LimitedClient) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, l.policy, func(ctx context.Context) error {
		if l.waiter != nil {
			if err := l.waiter.Wait(ctx); err != nil {
				return err
			}
		}
		return fn(ctx)
	})
}

// ReadValues implements Client
func (l *LimitedClient) ReadValues(ctx context.Context, spreadsheetID, tab string) ([][]string, error) {
	var rows [][]string
	err := l.call(ctx, func(ctx context.Context) error {
		var err error
		rows, err = l.next.ReadValues(ctx, spreadsheetID, tab)
		return err
	})
	return rows, err
}

// AppendRows implements Client
func (l *LimitedClient) AppendRows(ctx context.Context, spreadsheetID, tab string, rows [][]interface{}) error {
	return l.call(ctx, func(ctx context.Context) error {
		return l.next.AppendRows(ctx, spreadsheetID, tab, rows)
	})
}

// UpdateCells implements Client
func (l *LimitedClient) UpdateCells(ctx context.Context, spreadsheetID, tab string, updates []CellUpdate) error {
	return l.call(ctx, func(ctx context.Context) error {
		return l.next.UpdateCells(ctx, spreadsheetID, tab, updates)
	})
}

// EnsureTab implements Client
func (l *LimitedClient) EnsureTab(ctx context.Context, spreadsheetID, tab string) error {
	return l.call(ctx, func(ctx context.Context) error {
		return l.next.EnsureTab(ctx, spreadsheetID, tab)
	})
}
