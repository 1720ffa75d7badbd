package postgresengine

import (
	"errors"
	"time"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Option defines a functional option for configuring the Ledger.
type Option func(*Ledger) error

// WithTableNames sets the table names for the borrowings ledger and the two
// referenced tables. Any empty name is rejected.
func WithTableNames(borrowings string, books string, borrowers string) Option {
	return func(l *Ledger) error {
		if borrowings == "" || books == "" || borrowers == "" {
			return ledger.ErrEmptyTableName
		}

		l.borrowingsTableName = borrowings
		l.booksTableName = books
		l.borrowersTableName = borrowers

		return nil
	}
}

// WithClock sets the clock used to stamp borrowedAt/returnedAt and to
// classify overdue loans. Defaults to the system clock in UTC.
func WithClock(clock ledger.Clock) Option {
	return func(l *Ledger) error {
		if clock == nil {
			return ledger.ErrNilClock
		}

		l.clock = clock

		return nil
	}
}

// WithLogger sets the logger for the Ledger.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Operation outcomes, durations, domain conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger ledger.Logger) Option {
	return func(l *Ledger) error {
		l.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Ledger.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger ledger.ContextualLogger) Option {
	return func(l *Ledger) error {
		l.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Ledger.
// The collector will receive performance and operational metrics including
// checkout/return durations, domain conflicts, retries, and database errors.
func WithMetrics(collector ledger.MetricsCollector) Option {
	return func(l *Ledger) error {
		l.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Ledger.
// The collector will receive spans for checkout/return/query operations with
// context propagation and error tracking.
func WithTracing(collector ledger.TracingCollector) Option {
	return func(l *Ledger) error {
		l.tracingCollector = collector
		return nil
	}
}

// WithCheckoutRetry tunes the bounded retry applied to the checkout statement
// on transient store failures. Domain outcomes are never retried.
//
// Retry schedule: 0, baseDelay, 2*baseDelay, 4*baseDelay, ... plus jitter.
func WithCheckoutRetry(maxAttempts int, baseDelay time.Duration, jitterFactor float64) Option {
	return func(l *Ledger) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		if baseDelay < 0 {
			return ErrNegativeBaseDelay
		}

		if jitterFactor < 0.0 || jitterFactor > 1.0 {
			return ErrInvalidJitterFactor
		}

		l.checkoutRetry = retryPolicy{
			maxAttempts:  maxAttempts,
			baseDelay:    baseDelay,
			jitterFactor: jitterFactor,
		}

		return nil
	}
}
