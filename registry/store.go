package registry

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

const (
	defaultBorrowersTableName = "borrowers"

	colID    = "id"
	colName  = "name"
	colEmail = "email"
	colPhone = "phone"

	dialectPostgres = "postgres"

	sqlStateUniqueViolation = "23505"
)

// ActiveLoanChecker reports how many open borrowings a borrower holds.
// The ledger engine satisfies it.
type ActiveLoanChecker interface {
	ActiveLoanCount(ctx context.Context, borrowerID uuid.UUID) (int64, error)
}

// Store is the Postgres-backed borrower registry.
type Store struct {
	pool        *pgxpool.Pool
	tableName   string
	loanChecker ActiveLoanChecker
	logger      ledger.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithTableName overrides the default borrowers table name.
func WithTableName(name string) StoreOption {
	return func(s *Store) error {
		if name == "" {
			return ledger.ErrEmptyTableName
		}

		s.tableName = name

		return nil
	}
}

// WithLogger sets a logger for the store.
func WithLogger(logger ledger.Logger) StoreOption {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStore creates a borrower registry store backed by the given pool.
// Remove consults loanChecker so a borrower with open loans cannot be
// deleted out from under the ledger.
func NewStore(pool *pgxpool.Pool, loanChecker ActiveLoanChecker, options ...StoreOption) (*Store, error) {
	if pool == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	if loanChecker == nil {
		return nil, ErrNilActiveLoanChecker
	}

	s := &Store{
		pool:        pool,
		tableName:   defaultBorrowersTableName,
		loanChecker: loanChecker,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ErrNilActiveLoanChecker is returned when NewStore is given a nil checker.
var ErrNilActiveLoanChecker = errors.New("active loan checker must not be nil")

// Create inserts a new borrower. The email must be unique across the registry.
func (s *Store) Create(ctx context.Context, borrower Borrower) error {
	sqlQuery, args, toSQLErr := goqu.Dialect(dialectPostgres).
		Insert(s.tableName).
		Prepared(true).
		Rows(goqu.Record{
			colID:    borrower.ID.String(),
			colName:  borrower.Name,
			colEmail: borrower.Email,
			colPhone: borrower.Phone,
		}).
		ToSQL()
	if toSQLErr != nil {
		return errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := s.pool.Exec(ctx, sqlQuery, args...); execErr != nil {
		if isUniqueViolation(execErr) {
			return ledger.EmailExists(borrower.Email)
		}

		s.logExecError(sqlQuery, execErr)

		return errors.Join(ledger.ErrQueryingLedgerFailed, execErr)
	}

	return nil
}

// GetByID loads a borrower by their ID.
func (s *Store) GetByID(ctx context.Context, borrowerID uuid.UUID) (Borrower, error) {
	var empty Borrower

	sqlQuery, args, toSQLErr := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colID, colName, colEmail, colPhone).
		Prepared(true).
		Where(goqu.C(colID).Eq(borrowerID.String())).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	borrower, scanErr := scanBorrower(s.pool.QueryRow(ctx, sqlQuery, args...))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return empty, ledger.BorrowerNotFound(borrowerID)
		}

		return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	return borrower, nil
}

// List lists all borrowers ordered by name, one page at a time.
func (s *Store) List(ctx context.Context, req ledger.PageRequest) (ledger.Page[Borrower], error) {
	var empty ledger.Page[Borrower]

	countSQL, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(goqu.COUNT(goqu.Star())).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var total int64
	if scanErr := s.pool.QueryRow(ctx, countSQL).Scan(&total); scanErr != nil {
		return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	listSQL, args, toSQLErr := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colID, colName, colEmail, colPhone).
		Prepared(true).
		Order(goqu.C(colName).Asc()).
		Offset(req.Offset()).
		Limit(req.Limit()).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := s.pool.Query(ctx, listSQL, args...)
	if queryErr != nil {
		s.logExecError(listSQL, queryErr)
		return empty, errors.Join(ledger.ErrQueryingLedgerFailed, queryErr)
	}

	defer rows.Close()

	borrowers := make([]Borrower, 0)

	for rows.Next() {
		borrower, scanErr := scanBorrower(rows)
		if scanErr != nil {
			return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
		}

		borrowers = append(borrowers, borrower)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return empty, errors.Join(ledger.ErrQueryingLedgerFailed, rowsErr)
	}

	return ledger.BuildPage(borrowers, total, req), nil
}

// Remove deletes a borrower. A borrower with open loans cannot be removed;
// every book must come back first.
func (s *Store) Remove(ctx context.Context, borrowerID uuid.UUID) error {
	activeLoans, checkErr := s.loanChecker.ActiveLoanCount(ctx, borrowerID)
	if checkErr != nil {
		return checkErr
	}

	if activeLoans > 0 {
		return ledger.BorrowerHasActiveLoans(borrowerID, activeLoans)
	}

	sqlQuery, args, toSQLErr := goqu.Dialect(dialectPostgres).
		Delete(s.tableName).
		Prepared(true).
		Where(goqu.C(colID).Eq(borrowerID.String())).
		ToSQL()
	if toSQLErr != nil {
		return errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	tag, execErr := s.pool.Exec(ctx, sqlQuery, args...)
	if execErr != nil {
		s.logExecError(sqlQuery, execErr)
		return errors.Join(ledger.ErrQueryingLedgerFailed, execErr)
	}

	if tag.RowsAffected() == 0 {
		return ledger.BorrowerNotFound(borrowerID)
	}

	return nil
}

func (s *Store) logExecError(query string, err error) {
	if s.logger != nil {
		s.logger.Error("registry query failed", "error", err.Error(), "query", query)
	}
}

func scanBorrower(row pgx.Row) (Borrower, error) {
	var (
		empty    Borrower
		idStr    string
		borrower Borrower
	)

	if scanErr := row.Scan(&idStr, &borrower.Name, &borrower.Email, &borrower.Phone); scanErr != nil {
		return empty, scanErr
	}

	id, parseErr := uuid.Parse(idStr)
	if parseErr != nil {
		return empty, parseErr
	}

	borrower.ID = id

	return borrower, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}
