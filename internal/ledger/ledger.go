// Package ledger owns the loan lifecycle: it decides when a checkout is
// permitted, creates loan records, and handles check-in batches.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/circulation/internal/clock"
	"github.com/mmynk/circulation/internal/models"
	"github.com/mmynk/circulation/internal/storage"
)

// MaxActiveLoans is the most books a borrower may have out at once.
const MaxActiveLoans = 3

// MaxCheckInBatch is the most loans one check-in request may cover.
const MaxCheckInBatch = 3

// Checkout gate failures, in the order the gates are checked.
var (
	ErrBorrowerNotFound  = errors.New("borrower not found")
	ErrUnpaidFineBlock   = errors.New("borrower has unpaid fines on checked-out books and cannot checkout new books")
	ErrTooManyActiveLoans = fmt.Errorf("borrower already has %d active loans and cannot checkout more books", MaxActiveLoans)
	ErrBookUnavailable   = errors.New("this book is currently not available (already checked out)")
)

// Check-in batch failures.
var (
	ErrNoSelection      = errors.New("no loans selected")
	ErrTooManyAtOnce    = fmt.Errorf("at most %d loans can be checked in at once", MaxCheckInBatch)
	ErrNothingCheckedIn = errors.New("none of the selected loans were active")
)

// ErrValidation wraps missing/malformed input, reported before any
// transaction begins.
var ErrValidation = errors.New("invalid input")

// CheckoutResult is a successful checkout: the created loan plus a
// confirmation message carrying the due date.
type CheckoutResult struct {
	Loan    *models.Loan
	Message string
}

// Ledger is the loan lifecycle service.
type Ledger struct {
	store storage.Store
	clock clock.Clock
}

// New creates a Ledger over the given store and clock.
func New(store storage.Store, clk clock.Clock) *Ledger {
	return &Ledger{store: store, clock: clk}
}

// Checkout lends the book with the given ISBN to the borrower with the given
// card id. All eligibility gates and the insert run inside one transaction;
// the first failing gate wins and nothing is written.
func (l *Ledger) Checkout(ctx context.Context, isbn, cardID string) (*CheckoutResult, error) {
	isbn = strings.TrimSpace(isbn)
	cardID = strings.TrimSpace(cardID)
	if isbn == "" {
		return nil, fmt.Errorf("%w: ISBN is required", ErrValidation)
	}
	if cardID == "" {
		return nil, fmt.Errorf("%w: borrower card ID is required", ErrValidation)
	}

	slog.Info("Checkout requested", "isbn", isbn, "card_id", cardID)

	var result *CheckoutResult
	err := l.store.InTransaction(ctx, func(r storage.Repository) error {
		// 1) Borrower exists.
		if _, err := r.GetBorrower(ctx, cardID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: card ID %s", ErrBorrowerNotFound, cardID)
			}
			return err
		}

		// 2) No unpaid fine on a book the borrower still has out.
		owing, err := r.HasUnpaidFineOnActiveLoan(ctx, cardID)
		if err != nil {
			return err
		}
		if owing {
			return ErrUnpaidFineBlock
		}

		// 3) Under the active-loan limit.
		active, err := r.CountActiveLoans(ctx, cardID)
		if err != nil {
			return err
		}
		if active >= MaxActiveLoans {
			return ErrTooManyActiveLoans
		}

		// 4) Book not already out. The partial unique index on active loans
		// backstops this check against concurrent checkouts.
		out, err := r.HasActiveLoanForISBN(ctx, isbn)
		if err != nil {
			return err
		}
		if out {
			return fmt.Errorf("%w: ISBN %s", ErrBookUnavailable, isbn)
		}

		// 5) Allocate the next loan id and insert. The allocation happens
		// inside the same write transaction, so concurrent checkouts cannot
		// observe the same maximum.
		maxID, err := r.MaxLoanID(ctx)
		if err != nil {
			return err
		}

		today := l.clock.Today()
		loan := &models.Loan{
			ID:      maxID + 1,
			ISBN:    isbn,
			CardID:  cardID,
			DateOut: today,
			DueDate: today.AddDays(models.LoanPeriodDays),
		}
		if err := r.InsertLoan(ctx, loan); err != nil {
			return err
		}

		result = &CheckoutResult{
			Loan:    loan,
			Message: fmt.Sprintf("Checkout successful. Due date: %s", loan.DueDate),
		}
		return nil
	})
	if err != nil {
		slog.Warn("Checkout failed", "isbn", isbn, "card_id", cardID, "error", err)
		return nil, err
	}

	slog.Info("Checkout successful",
		"loan_id", result.Loan.ID,
		"isbn", isbn,
		"card_id", cardID,
		"due_date", result.Loan.DueDate.String(),
	)
	return result, nil
}

// CheckIn marks up to MaxCheckInBatch loans as returned today. Ids that do
// not match an active loan are silently skipped; only a wholly ineffective
// batch is an error. Each loan updates independently, so a failure on one id
// cannot corrupt loans already committed.
func (l *Ledger) CheckIn(ctx context.Context, loanIDs []int) (int, error) {
	ids := dedupe(loanIDs)
	if len(ids) == 0 {
		return 0, ErrNoSelection
	}
	if len(ids) > MaxCheckInBatch {
		return 0, ErrTooManyAtOnce
	}

	today := l.clock.Today()
	updated := 0
	for _, id := range ids {
		ok, err := l.store.SetLoanReturned(ctx, id, today)
		if err != nil {
			slog.Error("Check-in failed", "loan_id", id, "error", err)
			return updated, err
		}
		if ok {
			updated++
			slog.Info("Loan checked in", "loan_id", id, "date_in", today.String())
		} else {
			slog.Info("Check-in skipped, loan not active", "loan_id", id)
		}
	}

	if updated == 0 {
		return 0, ErrNothingCheckedIn
	}
	return updated, nil
}

func dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	var out []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
