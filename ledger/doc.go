// Package ledger provides the core abstractions and types for the lending
// ledger: borrowing records, derived loan status, availability computation,
// date windows, pagination, and the domain error taxonomy.
//
// This package contains no storage code. The types defined here are shared
// by the storage engines (see ledger/postgresengine) and by read-side
// consumers such as the analytics aggregator.
//
// Key types:
//   - Borrowing: a single lending transaction, mutable exactly once (return)
//   - Status: derived loan state, never stored, computed against a sampled "now"
//   - Window: a closed date interval for analytics queries
//   - DomainError: deterministic business failures with stable machine-readable codes
//
// Common usage pattern:
//
//	now := clock.Now()
//	for _, b := range borrowings {
//		switch ledger.StatusOf(b, now) {
//		case ledger.StatusOverdue:
//			// ...
//		}
//	}
package ledger
