package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

const (
	metricCheckoutDuration = "ledger_checkout_duration"
	metricReturnDuration   = "ledger_return_duration"
	metricConflictTotal    = "ledger_conflict_total"
	metricErrorTotal       = "ledger_error_total"

	spanNameCheckout = "ledger.checkout"
	spanNameReturn   = "ledger.return"

	spanAttrBorrowingID = "borrowing_id"
	spanAttrBorrowerID  = "borrower_id"
	spanAttrBookID      = "book_id"

	labelOperation = "operation"
	labelStatus    = "status"
	labelConflict  = "conflict"
	labelErrorType = "error_type"

	operationCheckout = "checkout"
	operationReturn   = "return"

	statusSuccess = "success"
	statusError   = "error"

	conflictNoCopies        = "no_copies"
	conflictDuplicateLoan   = "duplicate_loan"
	conflictAlreadyReturned = "already_returned"

	errorTypeBuildQuery      = "build_query"
	errorTypeDatabase        = "database"
	errorTypeNotFound        = "not_found"
	errorTypeNoCopies        = "no_copies"
	errorTypeDuplicateLoan   = "duplicate_loan"
	errorTypeAlreadyReturned = "already_returned"
)

func toMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// errorTypeFor maps an error to the label it is recorded under on spans and
// error counters.
func errorTypeFor(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNoCopiesAvailable):
		return errorTypeNoCopies
	case errors.Is(err, ledger.ErrDuplicateActiveLoan):
		return errorTypeDuplicateLoan
	case errors.Is(err, ledger.ErrAlreadyReturned):
		return errorTypeAlreadyReturned
	case ledger.IsDomainError(err):
		return errorTypeNotFound
	default:
		return errorTypeDatabase
	}
}

func (l *Ledger) logQueryWithDuration(ctx context.Context, query string, action string, duration time.Duration) {
	if l.contextualLogger != nil {
		l.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action,
			logAttrQuery, query, logAttrDurationMS, toMilliseconds(duration))

		return
	}

	if l.logger != nil {
		l.logger.Debug(logMsgSQLExecuted+action,
			logAttrQuery, query, logAttrDurationMS, toMilliseconds(duration))
	}
}

func (l *Ledger) logOperation(ctx context.Context, msg string, args ...any) {
	if l.contextualLogger != nil {
		l.contextualLogger.InfoContext(ctx, logMsgOperation+msg, args...)
		return
	}

	if l.logger != nil {
		l.logger.Info(logMsgOperation+msg, args...)
	}
}

func (l *Ledger) logError(ctx context.Context, msg string, err error, args ...any) {
	combined := append([]any{logAttrError, err.Error()}, args...)

	if l.contextualLogger != nil {
		l.contextualLogger.ErrorContext(ctx, msg, combined...)
		return
	}

	if l.logger != nil {
		l.logger.Error(msg, combined...)
	}
}

func (l *Ledger) recordDurationMetrics(
	ctx context.Context,
	metric string,
	duration time.Duration,
	operation string,
	status string,
) {
	labels := map[string]string{labelOperation: operation, labelStatus: status}

	if contextual, ok := l.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	if l.metricsCollector != nil {
		l.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (l *Ledger) recordConflictMetrics(ctx context.Context, operation string, conflict string) {
	labels := map[string]string{labelOperation: operation, labelConflict: conflict}

	if contextual, ok := l.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricConflictTotal, labels)
		return
	}

	if l.metricsCollector != nil {
		l.metricsCollector.IncrementCounter(metricConflictTotal, labels)
	}
}

func (l *Ledger) recordErrorMetrics(ctx context.Context, operation string, errorType string) {
	labels := map[string]string{labelOperation: operation, labelErrorType: errorType}

	if contextual, ok := l.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricErrorTotal, labels)
		return
	}

	if l.metricsCollector != nil {
		l.metricsCollector.IncrementCounter(metricErrorTotal, labels)
	}
}

func (l *Ledger) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, ledger.SpanContext) {
	if l.tracingCollector == nil {
		return ctx, nil
	}

	return l.tracingCollector.StartSpan(ctx, name, attrs)
}

func (l *Ledger) finishSpanSuccess(span ledger.SpanContext, attrs map[string]string) {
	if l.tracingCollector == nil || span == nil {
		return
	}

	l.tracingCollector.FinishSpan(span, statusSuccess, attrs)
}

func (l *Ledger) finishSpanError(span ledger.SpanContext, errorType string) {
	if l.tracingCollector == nil || span == nil {
		return
	}

	l.tracingCollector.FinishSpan(span, statusError, map[string]string{labelErrorType: errorType})
}
