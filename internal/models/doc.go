// Package models defines the core domain types for the circulation service.
//
// # Entities
//
//   - Borrower: a registered library patron, identified by a six-digit card id
//   - Book / Author: catalog entries, read-only from the core's perspective
//   - Loan: one checkout of one book by one borrower
//   - Fine: money owed on an overdue loan, at most one per loan
//
// # Design Principles
//
//  1. **Day granularity**: all circulation dates are calendar dates (Date),
//     never timestamps. Due dates, overdue counts and fine amounts only ever
//     move in whole days.
//  2. **Exact money**: fine amounts are integer cents (Cents), never floats,
//     so reconciliation comparisons are deterministic.
//  3. **Single representation of "not returned"**: legacy rows may carry NULL,
//     "" or "0000-00-00" for the return date; the storage layer normalizes all
//     of them to a nil *Date before a Loan reaches the core.
//  4. **Avoid circular references**: entities refer to each other by id
//     (card id, loan id, isbn) instead of pointers.
package models
