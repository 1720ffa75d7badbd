// Package postgresengine provides the PostgreSQL implementation of the lending ledger.
//
// The engine enforces the ledger's inventory invariants through single-statement
// conditional DML, so the store itself arbitrates between racing writers:
//
//   - Checkout claims a copy with a data-modifying CTE that increments the book's
//     lent-copy counter only while copies remain; the borrowing insert feeds off the
//     claim, and zero rows affected means no copies were available. A unique partial
//     index over the open borrowings backs the one-active-loan-per-book-per-borrower
//     rule, so the second of two racing duplicate checkouts is rejected by the store.
//   - Return is a conditional update that only fires while the borrowing is open;
//     zero rows affected surfaces the already-returned conflict instead of silently
//     succeeding.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Atomic checkout/return with conflict detection via rows-affected checks
//   - Bounded retry with exponential backoff for transient store failures (checkout only)
//   - Injected clock so "now" is sampled once per operation
//   - Configurable table names and dependency-free observability hooks
//
// Usage example:
//
//	pool, _ := pgxpool.New(context.Background(), dsn)
//	lgr, _ := postgresengine.NewLedgerFromPGXPool(
//		pool,
//		postgresengine.WithLogger(logger),
//	)
//
//	borrowing, err := lgr.Checkout(ctx, borrowerID, bookID, dueDate)
//	borrowing, err = lgr.ReturnBook(ctx, borrowing.ID)
package postgresengine
