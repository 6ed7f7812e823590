// Package storage provides abstractions for persistent circulation data.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/circulation/internal/models"
)

// ErrNotFound is returned when a referenced borrower, loan or fine does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a storage-level uniqueness constraint rejects
// a write, e.g. two concurrent checkouts racing for the same ISBN. Callers
// treat it as a retryable business failure, not a fault.
var ErrConflict = errors.New("storage conflict")

// Repository is the narrow query/mutation capability set the circulation core
// depends on. The same set is available directly on a Store (auto-commit) and
// inside a transaction via InTransaction.
type Repository interface {
	// Borrowers.
	GetBorrower(ctx context.Context, cardID string) (*models.Borrower, error)
	BorrowerSSNExists(ctx context.Context, ssn string) (bool, error)
	// MaxCardNumber returns the highest card id interpreted as a number,
	// 0 when no borrowers exist.
	MaxCardNumber(ctx context.Context) (int, error)
	InsertBorrower(ctx context.Context, b *models.Borrower) error

	// Catalog.
	UpsertBook(ctx context.Context, book models.Book) error
	SearchBooks(ctx context.Context, query string) ([]models.BookSearchResult, error)

	// Loans.
	GetLoan(ctx context.Context, loanID int) (*models.Loan, error)
	CountActiveLoans(ctx context.Context, cardID string) (int, error)
	HasActiveLoanForISBN(ctx context.Context, isbn string) (bool, error)
	// MaxLoanID returns the highest loan id in storage, 0 when none exist.
	MaxLoanID(ctx context.Context) (int, error)
	InsertLoan(ctx context.Context, loan *models.Loan) error
	// SetLoanReturned records the return date on an active loan. It reports
	// false when the loan does not exist or was already returned; that is not
	// an error.
	SetLoanReturned(ctx context.Context, loanID int, dateIn models.Date) (bool, error)
	// ListOverdueLoans returns loans that are either still out past their due
	// date as of today, or were returned after their due date.
	ListOverdueLoans(ctx context.Context, today models.Date) ([]models.Loan, error)

	// Fines.
	GetFine(ctx context.Context, loanID int) (*models.Fine, error)
	InsertFine(ctx context.Context, fine *models.Fine) error
	// UpdateFineAmount replaces the stored amount of an unpaid fine.
	UpdateFineAmount(ctx context.Context, loanID int, amount models.Cents) error
	// HasUnpaidFineOnActiveLoan reports whether the borrower owes money on a
	// loan that is still active. This is the checkout-gating predicate.
	HasUnpaidFineOnActiveLoan(ctx context.Context, cardID string) (bool, error)
	// MarkBorrowerFinesPaid marks every unpaid fine on the borrower's loans as
	// paid and returns the number of rows updated.
	MarkBorrowerFinesPaid(ctx context.Context, cardID string) (int, error)
	// ListFineDetails returns fines joined with their loan and borrower,
	// ordered by card id then loan id. includePaid controls whether settled
	// fines appear.
	ListFineDetails(ctx context.Context, includePaid bool) ([]models.FineDetail, error)
}

// Store is the persistence gateway for the circulation core.
type Store interface {
	Repository

	// InTransaction runs fn against a Repository bound to a single
	// transaction. If fn returns an error the transaction rolls back and the
	// error is returned; otherwise the transaction commits. No partial state
	// survives a failure.
	InTransaction(ctx context.Context, fn func(r Repository) error) error

	// Close releases any resources held by the store.
	Close() error
}
