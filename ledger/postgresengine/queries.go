package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/bostalabs/lending-ledger-go/ledger"
	"github.com/bostalabs/lending-ledger-go/ledger/postgresengine/internal/adapters"
)

const (
	tableAliasBorrowings = "b"
	tableAliasBorrowers  = "r"
	tableAliasBooks      = "k"
)

// FindBorrowing loads a single borrowing by ID.
func (l *Ledger) FindBorrowing(ctx context.Context, borrowingID uuid.UUID) (ledger.Borrowing, error) {
	var empty ledger.Borrowing

	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(l.borrowingsTableName).
		Select(colID, colBorrowerID, colBookID, colBorrowedAt, colDueDate, colReturnedAt).
		Where(goqu.C(colID).Eq(borrowingID.String())).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var (
		idStr, borrowerIDStr, bookIDStr string
		borrowedAt, dueDate             time.Time
		returnedAt                      sql.NullTime
	)

	start := time.Now()
	scanErr := l.db.QueryRow(ctx, sqlQuery).
		Scan(&idStr, &borrowerIDStr, &bookIDStr, &borrowedAt, &dueDate, &returnedAt)
	l.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if scanErr != nil {
		if errors.Is(scanErr, adapters.ErrNoRows) {
			return empty, ledger.BorrowingNotFound(borrowingID)
		}

		l.logError(ctx, logMsgScanRowFailed, scanErr)

		return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	return assembleBorrowing(idStr, borrowerIDStr, bookIDStr, borrowedAt, dueDate, returnedAt)
}

// Availability reports how many copies of the given book are lent out and how
// many exist, read in one statement so the two counts are consistent.
func (l *Ledger) Availability(ctx context.Context, bookID uuid.UUID) (ledger.Availability, error) {
	var empty ledger.Availability

	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(l.booksTableName).
		Select(colLentCount, colTotalCopies).
		Where(goqu.C(colID).Eq(bookID.String())).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	availability := ledger.Availability{BookID: bookID}

	start := time.Now()
	scanErr := l.db.QueryRow(ctx, sqlQuery).Scan(&availability.ActiveCount, &availability.TotalCopies)
	l.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if scanErr != nil {
		if errors.Is(scanErr, adapters.ErrNoRows) {
			return empty, ledger.BookNotFound(bookID)
		}

		l.logError(ctx, logMsgScanRowFailed, scanErr)

		return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	return availability, nil
}

// ActiveLoanCount counts the open borrowings held by the given borrower.
func (l *Ledger) ActiveLoanCount(ctx context.Context, borrowerID uuid.UUID) (int64, error) {
	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(l.borrowingsTableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colBorrowerID).Eq(borrowerID.String()),
			goqu.C(colReturnedAt).IsNull(),
		).
		ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var count int64

	start := time.Now()
	scanErr := l.db.QueryRow(ctx, sqlQuery).Scan(&count)
	l.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return 0, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	return count, nil
}

// ActiveLoansByBorrower lists the open borrowings of the given borrower,
// soonest due first.
func (l *Ledger) ActiveLoansByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]ledger.BorrowingDetails, error) {
	query := l.detailsQuery().
		Where(
			goqu.T(tableAliasBorrowings).Col(colBorrowerID).Eq(borrowerID.String()),
			goqu.T(tableAliasBorrowings).Col(colReturnedAt).IsNull(),
		).
		Order(goqu.T(tableAliasBorrowings).Col(colDueDate).Asc())

	return l.queryDetails(ctx, query)
}

// ListByBorrower lists the borrowing history of the given borrower, newest
// first, one page at a time.
func (l *Ledger) ListByBorrower(
	ctx context.Context,
	borrowerID uuid.UUID,
	req ledger.PageRequest,
) (ledger.Page[ledger.BorrowingDetails], error) {

	filter := goqu.Ex{tableAliasBorrowings + "." + colBorrowerID: borrowerID.String()}

	return l.queryDetailsPage(ctx, req, filter,
		goqu.T(tableAliasBorrowings).Col(colBorrowedAt).Desc())
}

// ListAll lists all borrowings, newest first, one page at a time.
func (l *Ledger) ListAll(
	ctx context.Context,
	req ledger.PageRequest,
) (ledger.Page[ledger.BorrowingDetails], error) {

	return l.queryDetailsPage(ctx, req, nil,
		goqu.T(tableAliasBorrowings).Col(colBorrowedAt).Desc())
}

// ListOverdue lists the borrowings that are open and past due as of the
// injected clock, most overdue first.
func (l *Ledger) ListOverdue(
	ctx context.Context,
	req ledger.PageRequest,
) (ledger.Page[ledger.BorrowingDetails], error) {

	filter := goqu.And(
		goqu.T(tableAliasBorrowings).Col(colReturnedAt).IsNull(),
		goqu.T(tableAliasBorrowings).Col(colDueDate).Lt(l.clock.Now().UTC()),
	)

	return l.queryDetailsPage(ctx, req, filter,
		goqu.T(tableAliasBorrowings).Col(colDueDate).Asc())
}

// BorrowingsInWindow lists the borrowings whose checkout instant falls inside
// the window, boundaries included, newest first.
func (l *Ledger) BorrowingsInWindow(ctx context.Context, w ledger.Window) ([]ledger.BorrowingDetails, error) {
	query := l.detailsQuery().
		Where(
			goqu.T(tableAliasBorrowings).Col(colBorrowedAt).Gte(w.Start()),
			goqu.T(tableAliasBorrowings).Col(colBorrowedAt).Lte(w.End()),
		).
		Order(goqu.T(tableAliasBorrowings).Col(colBorrowedAt).Desc())

	return l.queryDetails(ctx, query)
}

// OverdueInWindow lists the open, past-due borrowings whose due date falls
// inside the window, boundaries included, most overdue first. now is the
// instant overdue is judged against.
func (l *Ledger) OverdueInWindow(ctx context.Context, w ledger.Window, now time.Time) ([]ledger.BorrowingDetails, error) {
	query := l.detailsQuery().
		Where(
			goqu.T(tableAliasBorrowings).Col(colDueDate).Gte(w.Start()),
			goqu.T(tableAliasBorrowings).Col(colDueDate).Lte(w.End()),
			goqu.T(tableAliasBorrowings).Col(colDueDate).Lt(now),
			goqu.T(tableAliasBorrowings).Col(colReturnedAt).IsNull(),
		).
		Order(goqu.T(tableAliasBorrowings).Col(colDueDate).Asc())

	return l.queryDetails(ctx, query)
}

// CountsInWindow tallies the borrowings checked out inside the window by
// status as of now, in one statement with filtered aggregates.
func (l *Ledger) CountsInWindow(ctx context.Context, w ledger.Window, now time.Time) (ledger.WindowCounts, error) {
	var empty ledger.WindowCounts

	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(l.borrowingsTableName).
		Select(
			goqu.COUNT(goqu.Star()),
			goqu.L("COUNT(*) FILTER (WHERE ? IS NULL AND ? >= ?)",
				goqu.C(colReturnedAt), goqu.C(colDueDate), now),
			goqu.L("COUNT(*) FILTER (WHERE ? IS NULL AND ? < ?)",
				goqu.C(colReturnedAt), goqu.C(colDueDate), now),
			goqu.L("COUNT(*) FILTER (WHERE ? IS NOT NULL)", goqu.C(colReturnedAt)),
		).
		Where(
			goqu.C(colBorrowedAt).Gte(w.Start()),
			goqu.C(colBorrowedAt).Lte(w.End()),
		).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var counts ledger.WindowCounts

	start := time.Now()
	scanErr := l.db.QueryRow(ctx, sqlQuery).
		Scan(&counts.Total, &counts.Active, &counts.Overdue, &counts.Returned)
	l.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	return counts, nil
}

// detailsQuery is the shared three-way join behind every details listing.
func (l *Ledger) detailsQuery() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(goqu.T(l.borrowingsTableName).As(tableAliasBorrowings)).
		Join(
			goqu.T(l.borrowersTableName).As(tableAliasBorrowers),
			goqu.On(goqu.T(tableAliasBorrowings).Col(colBorrowerID).Eq(goqu.T(tableAliasBorrowers).Col(colID))),
		).
		Join(
			goqu.T(l.booksTableName).As(tableAliasBooks),
			goqu.On(goqu.T(tableAliasBorrowings).Col(colBookID).Eq(goqu.T(tableAliasBooks).Col(colID))),
		).
		Select(
			goqu.T(tableAliasBorrowings).Col(colID),
			goqu.T(tableAliasBorrowings).Col(colBorrowerID),
			goqu.T(tableAliasBorrowings).Col(colBookID),
			goqu.T(tableAliasBorrowings).Col(colBorrowedAt),
			goqu.T(tableAliasBorrowings).Col(colDueDate),
			goqu.T(tableAliasBorrowings).Col(colReturnedAt),
			goqu.T(tableAliasBorrowers).Col(colName),
			goqu.T(tableAliasBorrowers).Col(colEmail),
			goqu.T(tableAliasBooks).Col(colTitle),
			goqu.T(tableAliasBooks).Col(colISBN),
		)
}

func (l *Ledger) queryDetails(ctx context.Context, query *goqu.SelectDataset) ([]ledger.BorrowingDetails, error) {
	sqlQuery, _, toSQLErr := query.ToSQL()
	if toSQLErr != nil {
		return nil, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := l.db.Query(ctx, sqlQuery)
	l.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if queryErr != nil {
		l.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(ledger.ErrQueryingLedgerFailed, queryErr)
	}

	defer l.closeRows(ctx, rows)

	details := make([]ledger.BorrowingDetails, 0)

	for rows.Next() {
		detail, scanErr := scanDetailsRow(rows)
		if scanErr != nil {
			l.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ledger.ErrScanningRowFailed, scanErr)
		}

		details = append(details, detail)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(ledger.ErrQueryingLedgerFailed, rowsErr)
	}

	return details, nil
}

func (l *Ledger) queryDetailsPage(
	ctx context.Context,
	req ledger.PageRequest,
	filter goqu.Expression,
	order exp.OrderedExpression,
) (ledger.Page[ledger.BorrowingDetails], error) {

	var empty ledger.Page[ledger.BorrowingDetails]

	countQuery := goqu.Dialect(dialectPostgres).
		From(l.borrowingsTableName).
		Select(goqu.COUNT(goqu.Star()))

	listQuery := l.detailsQuery()

	if filter != nil {
		countQuery = countQuery.From(goqu.T(l.borrowingsTableName).As(tableAliasBorrowings)).Where(filter)
		listQuery = listQuery.Where(filter)
	}

	total, countErr := l.queryCount(ctx, countQuery)
	if countErr != nil {
		return empty, countErr
	}

	listQuery = listQuery.
		Order(order).
		Offset(req.Offset()).
		Limit(req.Limit())

	items, listErr := l.queryDetails(ctx, listQuery)
	if listErr != nil {
		return empty, listErr
	}

	return ledger.BuildPage(items, total, req), nil
}

func (l *Ledger) queryCount(ctx context.Context, query *goqu.SelectDataset) (int64, error) {
	sqlQuery, _, toSQLErr := query.ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var count int64

	start := time.Now()
	scanErr := l.db.QueryRow(ctx, sqlQuery).Scan(&count)
	l.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return 0, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	return count, nil
}

func (l *Ledger) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		l.logError(ctx, logMsgCloseRowsFailed, closeErr)
	}
}

func scanDetailsRow(rows adapters.DBRows) (ledger.BorrowingDetails, error) {
	var (
		empty                           ledger.BorrowingDetails
		idStr, borrowerIDStr, bookIDStr string
		borrowedAt, dueDate             time.Time
		returnedAt                      sql.NullTime
		name, email, title, isbn        string
	)

	if scanErr := rows.Scan(
		&idStr, &borrowerIDStr, &bookIDStr, &borrowedAt, &dueDate, &returnedAt,
		&name, &email, &title, &isbn,
	); scanErr != nil {
		return empty, scanErr
	}

	borrowing, assembleErr := assembleBorrowing(idStr, borrowerIDStr, bookIDStr, borrowedAt, dueDate, returnedAt)
	if assembleErr != nil {
		return empty, assembleErr
	}

	return ledger.BorrowingDetails{
		Borrowing:     borrowing,
		BorrowerName:  name,
		BorrowerEmail: email,
		BookTitle:     title,
		BookISBN:      isbn,
	}, nil
}

func assembleBorrowing(
	idStr string,
	borrowerIDStr string,
	bookIDStr string,
	borrowedAt time.Time,
	dueDate time.Time,
	returnedAt sql.NullTime,
) (ledger.Borrowing, error) {

	var empty ledger.Borrowing

	id, parseErr := uuid.Parse(idStr)
	if parseErr != nil {
		return empty, parseErr
	}

	borrowerID, parseErr := uuid.Parse(borrowerIDStr)
	if parseErr != nil {
		return empty, parseErr
	}

	bookID, parseErr := uuid.Parse(bookIDStr)
	if parseErr != nil {
		return empty, parseErr
	}

	borrowing := ledger.Borrowing{
		ID:         id,
		BorrowerID: borrowerID,
		BookID:     bookID,
		BorrowedAt: borrowedAt.UTC(),
		DueDate:    dueDate.UTC(),
	}

	if returnedAt.Valid {
		t := returnedAt.Time.UTC()
		borrowing.ReturnedAt = &t
	}

	return borrowing, nil
}
