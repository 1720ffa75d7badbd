package postgresengine

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

const (
	defaultRetryMaxAttempts  = 3
	defaultRetryBaseDelay    = 25 * time.Millisecond
	defaultRetryJitterFactor = 0.3

	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateClassConnection      = "08"
	sqlStateUniqueViolation      = "23505"

	metricRetryDelay = "ledger_retry_delay"
	metricRetryTotal = "ledger_retry_total"

	labelAttempt = "attempt"
)

// retryPolicy holds configuration for exponential backoff on transient
// store failures during checkout.
type retryPolicy struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:  defaultRetryMaxAttempts,
		baseDelay:    defaultRetryBaseDelay,
		jitterFactor: defaultRetryJitterFactor,
	}
}

type retryableFunc func(ctx context.Context) error

// retryOnTransientError executes fn with exponential backoff retry logic,
// retrying only on transient store failures up to maxAttempts times.
//
// Retry schedule (default): 0 ms, 25 ms, 50 ms (with 30% jitter).
// Domain errors fail fast; so do context cancellation and deadline errors,
// since retrying timeouts during overload only makes the overload worse.
func (l *Ledger) retryOnTransientError(ctx context.Context, fn retryableFunc) error {
	policy := l.checkoutRetry

	var lastErr error

	for attempt := 0; attempt < policy.maxAttempts; attempt++ {
		if attempt > 0 {
			// exponential backoff: baseDelay * 2^(attempt-1)
			delay := policy.baseDelay * time.Duration(1<<(attempt-1))

			// jitter to prevent thundering herd
			jitter := rand.Float64() * float64(delay) * policy.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			l.recordRetryDelayMetric(ctx, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isTransientError(lastErr) {
			return lastErr
		}

		l.recordRetryAttemptMetric(ctx, attempt)
	}

	return lastErr
}

// isTransientError determines if an error is worth retrying.
//
// Serialization failures, deadlocks, and connection-class failures are
// transient. Domain errors never are: a missing borrower or an exhausted
// copy count will not change because we asked again.
func isTransientError(err error) bool {
	if ledger.IsDomainError(err) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientSQLState(pgErr.Code) || pgconn.SafeToRetry(pgErr)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isTransientSQLState(string(pqErr.Code))
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	return false
}

func isTransientSQLState(code string) bool {
	if code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected {
		return true
	}

	return len(code) >= 2 && code[:2] == sqlStateClassConnection
}

// isUniqueViolation reports whether err is a unique constraint violation,
// regardless of which driver produced it.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlStateUniqueViolation
	}

	return false
}

func (l *Ledger) recordRetryDelayMetric(ctx context.Context, attempt int, backoffDelay time.Duration) {
	if l.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operationCheckout,
		labelAttempt:   strconv.Itoa(attempt),
	}

	if contextual, ok := l.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricRetryDelay, backoffDelay, labels)
		return
	}

	l.metricsCollector.RecordDuration(metricRetryDelay, backoffDelay, labels)
}

func (l *Ledger) recordRetryAttemptMetric(ctx context.Context, attempt int) {
	if l.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operationCheckout,
		labelAttempt:   strconv.Itoa(attempt + 1),
	}

	if contextual, ok := l.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricRetryTotal, labels)
		return
	}

	l.metricsCollector.IncrementCounter(metricRetryTotal, labels)
}

