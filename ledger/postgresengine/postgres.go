package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/bostalabs/lending-ledger-go/ledger"
	"github.com/bostalabs/lending-ledger-go/ledger/postgresengine/internal/adapters"
)

const (
	defaultBorrowingsTableName = "borrowings"
	defaultBooksTableName      = "books"
	defaultBorrowersTableName  = "borrowers"

	logMsgBuildQueryFailed     = "failed to build query"
	logMsgDBQueryFailed        = "database query execution failed"
	logMsgDBExecFailed         = "database execution failed"
	logMsgCloseRowsFailed      = "failed to close database rows"
	logMsgScanRowFailed        = "failed to scan database row"
	logMsgRowsAffectedFailed   = "failed to get rows affected count"
	logMsgCheckoutCompleted    = "checkout completed"
	logMsgReturnCompleted      = "return completed"
	logMsgQueryCompleted       = "query completed"
	logMsgNoCopiesAvailable    = "no copies available"
	logMsgDuplicateActiveLoan  = "duplicate active loan rejected"
	logMsgAlreadyReturned      = "already returned"
	logMsgSQLExecuted          = "executed sql for: "
	logMsgOperation            = "ledger operation: "
	logAttrError               = "error"
	logAttrQuery               = "query"
	logAttrBorrowingID         = "borrowing_id"
	logAttrBorrowerID          = "borrower_id"
	logAttrBookID              = "book_id"
	logAttrDurationMS          = "duration_ms"
	logAttrRowCount            = "row_count"
	logAttrRowsAffected        = "rows_affected"
	logActionCheckout          = "checkout"
	logActionReturn            = "return"
	logActionQuery             = "query"

	colID          = "id"
	colBorrowerID  = "borrower_id"
	colBookID      = "book_id"
	colBorrowedAt  = "borrowed_at"
	colDueDate     = "due_date"
	colReturnedAt  = "returned_at"
	colTitle       = "title"
	colISBN        = "isbn"
	colName        = "name"
	colEmail       = "email"
	colTotalCopies = "total_copies"
	colLentCount   = "lent_count"

	cteClaim = "claim"
	cteDone  = "done"

	dialectPostgres = "postgres"
	castUUID        = "?::uuid"
	castTimestamptz = "?::timestamptz"
)

type sqlQueryString = string

// Ledger is the PostgreSQL lending ledger engine. It creates and mutates
// borrowing transactions, enforcing the copy-count bound and the
// one-active-loan-per-book-per-borrower rule through conditional DML, and
// exposes the read surface used by listings and the analytics aggregator.
type Ledger struct {
	db                  adapters.DBAdapter
	borrowingsTableName string
	booksTableName      string
	borrowersTableName  string
	clock               ledger.Clock
	logger              ledger.Logger
	contextualLogger    ledger.ContextualLogger
	metricsCollector    ledger.MetricsCollector
	tracingCollector    ledger.TracingCollector
	checkoutRetry       retryPolicy
}

// NewLedgerFromPGXPool creates a new Ledger using a pgx pool with optional configuration.
func NewLedgerFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Ledger, error) {
	if pool == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	return newLedger(adapters.NewPGXAdapter(pool), options...)
}

// NewLedgerFromSQLDB creates a new Ledger using a sql.DB with optional configuration.
func NewLedgerFromSQLDB(db *sql.DB, options ...Option) (*Ledger, error) {
	if db == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	return newLedger(adapters.NewSQLAdapter(db), options...)
}

// NewLedgerFromSQLX creates a new Ledger using a sqlx.DB with optional configuration.
func NewLedgerFromSQLX(db *sqlx.DB, options ...Option) (*Ledger, error) {
	if db == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	return newLedger(adapters.NewSQLXAdapter(db), options...)
}

func newLedger(db adapters.DBAdapter, options ...Option) (*Ledger, error) {
	l := &Ledger{
		db:                  db,
		borrowingsTableName: defaultBorrowingsTableName,
		booksTableName:      defaultBooksTableName,
		borrowersTableName:  defaultBorrowersTableName,
		clock:               ledger.SystemClock{},
		checkoutRetry:       defaultRetryPolicy(),
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Checkout lends a copy of the given book to the given borrower, due at the
// given instant, and returns the created Borrowing.
//
// Preconditions are checked in order, each short-circuiting with a domain
// error: borrower exists, book exists, due date is set, no open loan for the
// same (borrower, book) pair, and at least one copy left. The availability
// check and the insert execute as one conditional statement, so the store
// decides between racing checkouts for the last copy.
//
// A due date in the past is accepted. The resulting borrowing simply reports
// overdue from the start.
//
// Transient store failures are retried with bounded exponential backoff;
// domain errors are returned as-is and are never retried.
func (l *Ledger) Checkout(
	ctx context.Context,
	borrowerID uuid.UUID,
	bookID uuid.UUID,
	dueDate time.Time,
) (ledger.Borrowing, error) {

	if dueDate.IsZero() {
		return ledger.Borrowing{}, ledger.InvalidInput("dueDate", "must not be the zero time")
	}

	var borrowing ledger.Borrowing

	err := l.retryOnTransientError(ctx, func(retryCtx context.Context) error {
		executed, execErr := l.executeCheckout(retryCtx, borrowerID, bookID, dueDate)
		if execErr != nil {
			return execErr
		}

		borrowing = executed

		return nil
	})

	return borrowing, err
}

func (l *Ledger) executeCheckout(
	ctx context.Context,
	borrowerID uuid.UUID,
	bookID uuid.UUID,
	dueDate time.Time,
) (ledger.Borrowing, error) {

	var empty ledger.Borrowing

	ctx, span := l.startSpan(ctx, spanNameCheckout, map[string]string{
		spanAttrBorrowerID: borrowerID.String(),
		spanAttrBookID:     bookID.String(),
	})

	start := time.Now()

	if err := l.checkBorrowerExists(ctx, borrowerID); err != nil {
		l.finishSpanError(span, errorTypeFor(err))
		return empty, err
	}

	bookTitle, err := l.checkBookExists(ctx, bookID)
	if err != nil {
		l.finishSpanError(span, errorTypeFor(err))
		return empty, err
	}

	if err = l.checkNoOpenLoan(ctx, borrowerID, bookID); err != nil {
		if errors.Is(err, ledger.ErrDuplicateActiveLoan) {
			l.recordConflictMetrics(ctx, operationCheckout, conflictDuplicateLoan)
			l.logOperation(ctx, logMsgDuplicateActiveLoan,
				logAttrBorrowerID, borrowerID.String(), logAttrBookID, bookID.String())
		}

		l.finishSpanError(span, errorTypeFor(err))

		return empty, err
	}

	borrowing := ledger.Borrowing{
		ID:         uuid.New(),
		BorrowerID: borrowerID,
		BookID:     bookID,
		BorrowedAt: l.clock.Now().UTC(),
		DueDate:    dueDate.UTC(),
	}

	sqlQuery, buildErr := l.buildCheckoutQuery(borrowing)
	if buildErr != nil {
		l.logError(ctx, logMsgBuildQueryFailed, buildErr)
		l.finishSpanError(span, errorTypeBuildQuery)

		return empty, buildErr
	}

	execStart := time.Now()
	tag, execErr := l.db.Exec(ctx, sqlQuery)
	l.logQueryWithDuration(ctx, sqlQuery, logActionCheckout, time.Since(execStart))

	if execErr != nil {
		if isUniqueViolation(execErr) {
			// a concurrent checkout for the same pair won the race
			l.recordConflictMetrics(ctx, operationCheckout, conflictDuplicateLoan)
			return empty, ledger.DuplicateActiveLoan(borrowerID, bookID)
		}

		l.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		l.recordErrorMetrics(ctx, operationCheckout, errorTypeDatabase)
		l.finishSpanError(span, errorTypeDatabase)

		return empty, errors.Join(ledger.ErrCheckoutFailed, execErr)
	}

	rowsAffected, rowsErr := tag.RowsAffected()
	if rowsErr != nil {
		l.logError(ctx, logMsgRowsAffectedFailed, rowsErr)
		l.finishSpanError(span, errorTypeDatabase)

		return empty, errors.Join(ledger.ErrRowsAffectedFailed, rowsErr)
	}

	if rowsAffected == 0 {
		l.recordConflictMetrics(ctx, operationCheckout, conflictNoCopies)
		l.logOperation(ctx, logMsgNoCopiesAvailable, logAttrBookID, bookID.String())
		l.finishSpanError(span, errorTypeNoCopies)

		return empty, ledger.NoCopiesAvailable(bookID, bookTitle)
	}

	duration := time.Since(start)
	l.recordDurationMetrics(ctx, metricCheckoutDuration, duration, operationCheckout, statusSuccess)
	l.logOperation(ctx, logMsgCheckoutCompleted,
		logAttrBorrowingID, borrowing.ID.String(),
		logAttrDurationMS, toMilliseconds(duration))
	l.finishSpanSuccess(span, map[string]string{spanAttrBorrowingID: borrowing.ID.String()})

	return borrowing, nil
}

// ReturnBook closes the given borrowing, stamping returnedAt with the
// injected clock, and returns the updated record.
//
// Return semantics are at-most-once: the conditional update only fires while
// the borrowing is open, and a zero rows-affected count surfaces the
// already-returned conflict instead of silently succeeding. The conditional
// update is naturally safe for callers to retry after a timeout.
func (l *Ledger) ReturnBook(ctx context.Context, borrowingID uuid.UUID) (ledger.Borrowing, error) {
	var empty ledger.Borrowing

	ctx, span := l.startSpan(ctx, spanNameReturn, map[string]string{
		spanAttrBorrowingID: borrowingID.String(),
	})

	start := time.Now()

	sqlQuery, buildErr := l.buildReturnQuery(borrowingID, l.clock.Now().UTC())
	if buildErr != nil {
		l.logError(ctx, logMsgBuildQueryFailed, buildErr)
		l.finishSpanError(span, errorTypeBuildQuery)

		return empty, buildErr
	}

	execStart := time.Now()
	tag, execErr := l.db.Exec(ctx, sqlQuery)
	l.logQueryWithDuration(ctx, sqlQuery, logActionReturn, time.Since(execStart))

	if execErr != nil {
		l.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		l.recordErrorMetrics(ctx, operationReturn, errorTypeDatabase)
		l.finishSpanError(span, errorTypeDatabase)

		return empty, errors.Join(ledger.ErrReturnFailed, execErr)
	}

	rowsAffected, rowsErr := tag.RowsAffected()
	if rowsErr != nil {
		l.logError(ctx, logMsgRowsAffectedFailed, rowsErr)
		l.finishSpanError(span, errorTypeDatabase)

		return empty, errors.Join(ledger.ErrRowsAffectedFailed, rowsErr)
	}

	if rowsAffected == 0 {
		return empty, l.classifyFailedReturn(ctx, span, borrowingID)
	}

	returned, findErr := l.FindBorrowing(ctx, borrowingID)
	if findErr != nil {
		l.finishSpanError(span, errorTypeDatabase)
		return empty, findErr
	}

	duration := time.Since(start)
	l.recordDurationMetrics(ctx, metricReturnDuration, duration, operationReturn, statusSuccess)
	l.logOperation(ctx, logMsgReturnCompleted,
		logAttrBorrowingID, borrowingID.String(),
		logAttrDurationMS, toMilliseconds(duration))
	l.finishSpanSuccess(span, nil)

	return returned, nil
}

// classifyFailedReturn distinguishes a missing borrowing from an
// already-returned one after the conditional update affected no rows.
func (l *Ledger) classifyFailedReturn(
	ctx context.Context,
	span ledger.SpanContext,
	borrowingID uuid.UUID,
) error {

	existing, findErr := l.FindBorrowing(ctx, borrowingID)
	if findErr != nil {
		l.finishSpanError(span, errorTypeFor(findErr))
		return findErr
	}

	if existing.Returned() {
		l.recordConflictMetrics(ctx, operationReturn, conflictAlreadyReturned)
		l.logOperation(ctx, logMsgAlreadyReturned, logAttrBorrowingID, borrowingID.String())
		l.finishSpanError(span, errorTypeAlreadyReturned)

		return ledger.AlreadyReturned(borrowingID)
	}

	l.finishSpanError(span, errorTypeDatabase)

	return errors.Join(ledger.ErrReturnFailed, errors.New("conditional update affected no rows"))
}

func (l *Ledger) checkBorrowerExists(ctx context.Context, borrowerID uuid.UUID) error {
	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(l.borrowersTableName).
		Select(colID).
		Where(goqu.C(colID).Eq(borrowerID.String())).
		ToSQL()
	if toSQLErr != nil {
		return errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var id string
	if scanErr := l.db.QueryRow(ctx, sqlQuery).Scan(&id); scanErr != nil {
		if errors.Is(scanErr, adapters.ErrNoRows) {
			return ledger.BorrowerNotFound(borrowerID)
		}

		return errors.Join(ledger.ErrQueryingLedgerFailed, scanErr)
	}

	return nil
}

func (l *Ledger) checkBookExists(ctx context.Context, bookID uuid.UUID) (string, error) {
	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(l.booksTableName).
		Select(colTitle).
		Where(goqu.C(colID).Eq(bookID.String())).
		ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var title string
	if scanErr := l.db.QueryRow(ctx, sqlQuery).Scan(&title); scanErr != nil {
		if errors.Is(scanErr, adapters.ErrNoRows) {
			return "", ledger.BookNotFound(bookID)
		}

		return "", errors.Join(ledger.ErrQueryingLedgerFailed, scanErr)
	}

	return title, nil
}

func (l *Ledger) checkNoOpenLoan(ctx context.Context, borrowerID uuid.UUID, bookID uuid.UUID) error {
	count, err := l.countOpenLoans(ctx, borrowerID, bookID)
	if err != nil {
		return err
	}

	if count > 0 {
		return ledger.DuplicateActiveLoan(borrowerID, bookID)
	}

	return nil
}

func (l *Ledger) countOpenLoans(ctx context.Context, borrowerID uuid.UUID, bookID uuid.UUID) (int64, error) {
	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(l.borrowingsTableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colBorrowerID).Eq(borrowerID.String()),
			goqu.C(colBookID).Eq(bookID.String()),
			goqu.C(colReturnedAt).IsNull(),
		).
		ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var count int64
	if scanErr := l.db.QueryRow(ctx, sqlQuery).Scan(&count); scanErr != nil {
		return 0, errors.Join(ledger.ErrQueryingLedgerFailed, scanErr)
	}

	return count, nil
}

// buildCheckoutQuery builds the conditional insert: a data-modifying CTE
// claims a copy by incrementing the book's lent-copy counter while copies
// remain, and the insert feeds off the claim. The row lock taken by the
// claiming update serializes racing checkouts for the same book.
func (l *Ledger) buildCheckoutQuery(b ledger.Borrowing) (sqlQueryString, error) {
	builder := goqu.Dialect(dialectPostgres)

	claimStmt := goqu.L(
		fmt.Sprintf(
			"UPDATE %s SET %s = %s + 1 WHERE %s = ? AND %s < %s RETURNING %s",
			l.booksTableName, colLentCount, colLentCount, colID, colLentCount, colTotalCopies, colID,
		),
		b.BookID.String(),
	)

	selectStmt := builder.
		From(cteClaim).
		Select(
			goqu.L(castUUID, b.ID.String()),
			goqu.L(castUUID, b.BorrowerID.String()),
			goqu.C(colID),
			goqu.L(castTimestamptz, b.BorrowedAt),
			goqu.L(castTimestamptz, b.DueDate),
		)

	insertStmt := builder.
		Insert(l.borrowingsTableName).
		Cols(colID, colBorrowerID, colBookID, colBorrowedAt, colDueDate).
		FromQuery(selectStmt).
		With(cteClaim, claimStmt)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildReturnQuery builds the conditional return: a data-modifying CTE closes
// the borrowing only while it is still open, and the outer update releases
// the claimed copy for every row the CTE actually closed.
//
// returnedAt is clamped to borrowedAt so the record never closes before it
// opened, even with a skewed clock.
func (l *Ledger) buildReturnQuery(borrowingID uuid.UUID, returnedAt time.Time) (sqlQueryString, error) {
	builder := goqu.Dialect(dialectPostgres)

	doneStmt := goqu.L(
		fmt.Sprintf(
			"UPDATE %s SET %s = GREATEST(?::timestamptz, %s) WHERE %s = ? AND %s IS NULL RETURNING %s",
			l.borrowingsTableName, colReturnedAt, colBorrowedAt, colID, colReturnedAt, colBookID,
		),
		returnedAt,
		borrowingID.String(),
	)

	updateStmt := builder.
		Update(l.booksTableName).
		Set(goqu.Record{colLentCount: goqu.L(colLentCount + " - 1")}).
		Where(goqu.C(colID).In(builder.From(cteDone).Select(colBookID))).
		With(cteDone, doneStmt)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
