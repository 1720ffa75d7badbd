package catalog

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
	defaultBooksTableName = "books"

	colID            = "id"
	colTitle         = "title"
	colAuthor        = "author"
	colISBN          = "isbn"
	colTotalCopies   = "total_copies"
	colLentCount     = "lent_count"
	colShelfLocation = "shelf_location"
	colShelfMetadata = "shelf_metadata"

	dialectPostgres = "postgres"

	sqlStateUniqueViolation = "23505"
)

// Store is the Postgres-backed book catalog.
type Store struct {
	pool      *pgxpool.Pool
	tableName string
	logger    ledger.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithTableName overrides the default books table name.
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

// NewStore creates a book catalog store backed by the given pool.
func NewStore(pool *pgxpool.Pool, options ...StoreOption) (*Store, error) {
	if pool == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	s := &Store{
		pool:      pool,
		tableName: defaultBooksTableName,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Create inserts a new book. The ISBN must be unique across the catalog.
func (s *Store) Create(ctx context.Context, book Book) error {
	sqlQuery, args, toSQLErr := goqu.Dialect(dialectPostgres).
		Insert(s.tableName).
		Prepared(true).
		Rows(goqu.Record{
			colID:            book.ID.String(),
			colTitle:         book.Title,
			colAuthor:        book.Author,
			colISBN:          book.ISBN,
			colTotalCopies:   book.TotalCopies,
			colLentCount:     0,
			colShelfLocation: book.ShelfLocation,
			colShelfMetadata: string(book.ShelfMetadata),
		}).
		ToSQL()
	if toSQLErr != nil {
		return errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := s.pool.Exec(ctx, sqlQuery, args...); execErr != nil {
		if isUniqueViolation(execErr) {
			return ledger.ISBNExists(book.ISBN)
		}

		s.logExecError(sqlQuery, execErr)

		return errors.Join(ledger.ErrQueryingLedgerFailed, execErr)
	}

	return nil
}

// GetByID loads a book by its ID.
func (s *Store) GetByID(ctx context.Context, bookID uuid.UUID) (Book, error) {
	return s.getBy(ctx, goqu.C(colID).Eq(bookID.String()), ledger.BookNotFound(bookID))
}

// GetByISBN loads a book by its ISBN.
func (s *Store) GetByISBN(ctx context.Context, isbn string) (Book, error) {
	return s.getBy(ctx, goqu.C(colISBN).Eq(isbn), ledger.BookNotFoundByISBN(isbn))
}

// Search lists the books whose title, author, or ISBN contains the term,
// case-insensitively, ordered by title, one page at a time.
func (s *Store) Search(ctx context.Context, term string, req ledger.PageRequest) (ledger.Page[Book], error) {
	pattern := "%" + term + "%"
	filter := goqu.Or(
		goqu.C(colTitle).ILike(pattern),
		goqu.C(colAuthor).ILike(pattern),
		goqu.C(colISBN).ILike(pattern),
	)

	return s.listWhere(ctx, filter, req)
}

// List lists all books ordered by title, one page at a time.
func (s *Store) List(ctx context.Context, req ledger.PageRequest) (ledger.Page[Book], error) {
	return s.listWhere(ctx, nil, req)
}

func (s *Store) getBy(ctx context.Context, filter goqu.Expression, notFound error) (Book, error) {
	var empty Book

	sqlQuery, args, toSQLErr := s.selectColumns().
		Prepared(true).
		Where(filter).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	book, scanErr := scanBook(s.pool.QueryRow(ctx, sqlQuery, args...))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return empty, notFound
		}

		return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	return book, nil
}

func (s *Store) listWhere(
	ctx context.Context,
	filter goqu.Expression,
	req ledger.PageRequest,
) (ledger.Page[Book], error) {

	var empty ledger.Page[Book]

	countQuery := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(goqu.COUNT(goqu.Star())).
		Prepared(true)

	listQuery := s.selectColumns().
		Prepared(true).
		Order(goqu.C(colTitle).Asc()).
		Offset(req.Offset()).
		Limit(req.Limit())

	if filter != nil {
		countQuery = countQuery.Where(filter)
		listQuery = listQuery.Where(filter)
	}

	countSQL, countArgs, toSQLErr := countQuery.ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	var total int64
	if scanErr := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); scanErr != nil {
		return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
	}

	listSQL, listArgs, toSQLErr := listQuery.ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := s.pool.Query(ctx, listSQL, listArgs...)
	if queryErr != nil {
		s.logExecError(listSQL, queryErr)
		return empty, errors.Join(ledger.ErrQueryingLedgerFailed, queryErr)
	}

	defer rows.Close()

	books := make([]Book, 0)

	for rows.Next() {
		book, scanErr := scanBook(rows)
		if scanErr != nil {
			return empty, errors.Join(ledger.ErrScanningRowFailed, scanErr)
		}

		books = append(books, book)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return empty, errors.Join(ledger.ErrQueryingLedgerFailed, rowsErr)
	}

	return ledger.BuildPage(books, total, req), nil
}

func (s *Store) selectColumns() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colID, colTitle, colAuthor, colISBN, colTotalCopies, colShelfLocation, colShelfMetadata)
}

func (s *Store) logExecError(query string, err error) {
	if s.logger != nil {
		s.logger.Error("catalog query failed", "error", err.Error(), "query", query)
	}
}

func scanBook(row pgx.Row) (Book, error) {
	var (
		empty    Book
		idStr    string
		book     Book
		metadata string
	)

	if scanErr := row.Scan(
		&idStr, &book.Title, &book.Author, &book.ISBN,
		&book.TotalCopies, &book.ShelfLocation, &metadata,
	); scanErr != nil {
		return empty, scanErr
	}

	id, parseErr := uuid.Parse(idStr)
	if parseErr != nil {
		return empty, parseErr
	}

	book.ID = id
	book.ShelfMetadata = []byte(metadata)

	return book, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}
