// Package fines computes overdue amounts, reconciles persisted fine records
// against them, and enforces payment preconditions.
package fines

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

// DailyRateCents is the fine accrued per day overdue.
const DailyRateCents models.Cents = 25

// ErrActiveLoansBlock rejects payment while the borrower still has any book
// out, finable or not.
var ErrActiveLoansBlock = errors.New("borrower has unreturned books; cannot accept payment")

// ErrValidation wraps missing/malformed input.
var ErrValidation = errors.New("invalid input")

// ReconcileResult reports what a reconciliation pass wrote.
type ReconcileResult struct {
	Created int
	Updated int
}

// BorrowerFines groups a borrower's fines with their total, for the fines
// management view.
type BorrowerFines struct {
	CardID       string
	BorrowerName string
	Fines        []models.FineDetail
	Total        models.Cents
}

// Engine is the fine accrual and settlement service.
type Engine struct {
	store storage.Store
	clock clock.Clock
}

// New creates an Engine over the given store and clock.
func New(store storage.Store, clk clock.Clock) *Engine {
	return &Engine{store: store, clock: clk}
}

// CalculateFineAmount computes the fine for a loan as of today, regardless of
// whether the loan has been returned: elapsed whole days past the due date at
// the daily rate. Not-overdue loans yield exactly zero.
func (e *Engine) CalculateFineAmount(loan *models.Loan) models.Cents {
	days := e.clock.Today().DaysSince(loan.DueDate)
	if days <= 0 {
		return 0
	}
	return models.Cents(days) * DailyRateCents
}

// ReconcileAll scans every overdue loan and brings its fine record up to
// date: missing fines are created unpaid, unpaid fines with a stale amount
// are rewritten, paid fines are left frozen. The whole pass runs in one
// transaction; any failure rolls everything back. Running it twice with no
// intervening state change writes nothing the second time.
func (e *Engine) ReconcileAll(ctx context.Context) (ReconcileResult, error) {
	today := e.clock.Today()
	var result ReconcileResult

	err := e.store.InTransaction(ctx, func(r storage.Repository) error {
		loans, err := r.ListOverdueLoans(ctx, today)
		if err != nil {
			return err
		}
		slog.Info("Fine reconciliation started", "date", today.String(), "overdue_count", len(loans))

		for i := range loans {
			loan := &loans[i]
			amount := e.CalculateFineAmount(loan)
			if amount <= 0 {
				// Returned-late loans stay in the overdue scan, but under the
				// always-current-date policy their amount can be zero.
				continue
			}

			existing, err := r.GetFine(ctx, loan.ID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				fine := &models.Fine{LoanID: loan.ID, Amount: amount}
				if err := r.InsertFine(ctx, fine); err != nil {
					return fmt.Errorf("create fine for loan %d: %w", loan.ID, err)
				}
				result.Created++
				slog.Info("Fine created", "loan_id", loan.ID, "amount", amount.String())
			case err != nil:
				return err
			case existing.Paid:
				// Frozen.
			case existing.Amount != amount:
				if err := r.UpdateFineAmount(ctx, loan.ID, amount); err != nil {
					return fmt.Errorf("update fine for loan %d: %w", loan.ID, err)
				}
				result.Updated++
				slog.Info("Fine updated",
					"loan_id", loan.ID,
					"old", existing.Amount.String(),
					"new", amount.String(),
				)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Fine reconciliation failed", "error", err)
		return ReconcileResult{}, err
	}

	slog.Info("Fine reconciliation complete", "created", result.Created, "updated", result.Updated)
	return result, nil
}

// HasPendingUnpaidFines reports whether the borrower owes money on a book
// they still have out. This predicate gates checkout: money owed on already
// returned books does not block new checkouts, money owed on unreturned
// overdue books does.
func (e *Engine) HasPendingUnpaidFines(ctx context.Context, cardID string) (bool, error) {
	return e.store.HasUnpaidFineOnActiveLoan(ctx, strings.TrimSpace(cardID))
}

// PayBorrowerFines settles every unpaid fine for the borrower in one
// transaction. Payment is refused while any of the borrower's books remains
// out. Returns the number of fines marked paid; zero means nothing was owed
// and is not an error.
func (e *Engine) PayBorrowerFines(ctx context.Context, cardID string) (int, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return 0, fmt.Errorf("%w: borrower card ID is required", ErrValidation)
	}

	var paid int
	err := e.store.InTransaction(ctx, func(r storage.Repository) error {
		active, err := r.CountActiveLoans(ctx, cardID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveLoansBlock
		}

		paid, err = r.MarkBorrowerFinesPaid(ctx, cardID)
		return err
	})
	if err != nil {
		slog.Warn("Fine payment failed", "card_id", cardID, "error", err)
		return 0, err
	}

	slog.Info("Fines paid", "card_id", cardID, "count", paid)
	return paid, nil
}

// FinesByBorrower returns fines grouped per borrower with totals, ordered by
// card id then loan id, for the fines management view.
func (e *Engine) FinesByBorrower(ctx context.Context, includePaid bool) ([]BorrowerFines, error) {
	details, err := e.store.ListFineDetails(ctx, includePaid)
	if err != nil {
		return nil, err
	}

	var grouped []BorrowerFines
	for _, d := range details {
		if len(grouped) == 0 || grouped[len(grouped)-1].CardID != d.CardID {
			grouped = append(grouped, BorrowerFines{
				CardID:       d.CardID,
				BorrowerName: d.BorrowerName,
			})
		}
		g := &grouped[len(grouped)-1]
		g.Fines = append(g.Fines, d)
		g.Total += d.Amount
	}
	return grouped, nil
}
