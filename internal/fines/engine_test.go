package fines

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/circulation/internal/clock"
	"github.com/mmynk/circulation/internal/ledger"
	"github.com/mmynk/circulation/internal/models"
	"github.com/mmynk/circulation/internal/storage"
	"github.com/mmynk/circulation/internal/storage/sqlite"
)

func setup(t *testing.T, today string) (*Engine, storage.Store, *clock.Simulated) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base, err := models.ParseDate(today)
	require.NoError(t, err)
	clk := clock.NewSimulated(clock.Fixed(base))

	return New(store, clk), store, clk
}

func addBorrower(t *testing.T, store storage.Store, cardID, ssn string) {
	t.Helper()
	require.NoError(t, store.InsertBorrower(context.Background(), &models.Borrower{
		CardID: cardID, SSN: ssn, Name: "Borrower " + cardID, Address: "1 Library Way",
	}))
}

func addLoan(t *testing.T, store storage.Store, id int, isbn, cardID, dateOut string) {
	t.Helper()
	out, err := models.ParseDate(dateOut)
	require.NoError(t, err)
	require.NoError(t, store.InsertLoan(context.Background(), &models.Loan{
		ID: id, ISBN: isbn, CardID: cardID,
		DateOut: out, DueDate: out.AddDays(models.LoanPeriodDays),
	}))
}

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestCalculateFineAmount(t *testing.T) {
	testCases := []struct {
		name     string
		today    string
		expected models.Cents
	}{
		{"five days overdue", "2024-01-20", 125},
		{"one day overdue", "2024-01-16", 25},
		{"due today", "2024-01-15", 0},
		{"not yet due", "2024-01-10", 0},
		{"twenty days overdue", "2024-02-04", 500},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := setup(t, tt.today)
			loan := &models.Loan{
				DateOut: mustDate(t, "2024-01-01"),
				DueDate: mustDate(t, "2024-01-15"),
			}
			assert.Equal(t, tt.expected, engine.CalculateFineAmount(loan))
		})
	}
}

func TestCalculateFineAmountUsesTodayEvenWhenReturned(t *testing.T) {
	// Always-current-date policy: the amount keeps accruing from the due
	// date to the evaluation date, return date or not.
	engine, _, _ := setup(t, "2024-01-25")
	back := mustDate(t, "2024-01-18")
	loan := &models.Loan{
		DateOut: mustDate(t, "2024-01-01"),
		DueDate: mustDate(t, "2024-01-15"),
		DateIn:  &back,
	}
	assert.Equal(t, models.Cents(250), engine.CalculateFineAmount(loan))
}

func TestReconcileAll(t *testing.T) {
	engine, store, clk := setup(t, "2024-01-20")
	ctx := context.Background()
	addBorrower(t, store, "000001", "123456789")
	addLoan(t, store, 1, "111", "000001", "2024-01-01") // due 2024-01-15, 5 days late
	addLoan(t, store, 2, "222", "000001", "2024-01-18") // due 2024-02-01

	t.Run("creates fines for overdue loans", func(t *testing.T) {
		result, err := engine.ReconcileAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReconcileResult{Created: 1, Updated: 0}, result)

		fine, err := store.GetFine(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.Cents(125), fine.Amount)
		assert.False(t, fine.Paid)

		_, err = store.GetFine(ctx, 2)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("is idempotent", func(t *testing.T) {
		result, err := engine.ReconcileAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReconcileResult{Created: 0, Updated: 0}, result)
	})

	t.Run("updates unpaid fines as days accrue", func(t *testing.T) {
		clk.Set(mustDate(t, "2024-01-25"))

		result, err := engine.ReconcileAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReconcileResult{Created: 0, Updated: 1}, result)

		fine, err := store.GetFine(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.Cents(250), fine.Amount)
	})

	t.Run("paid fines are frozen", func(t *testing.T) {
		// Return both books (loan 2 on time) and settle.
		_, err := store.SetLoanReturned(ctx, 1, mustDate(t, "2024-01-25"))
		require.NoError(t, err)
		_, err = store.SetLoanReturned(ctx, 2, mustDate(t, "2024-01-28"))
		require.NoError(t, err)
		count, err := engine.PayBorrowerFines(ctx, "000001")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		// Clock moves on; the settled amount must not.
		clk.Set(mustDate(t, "2024-03-01"))
		result, err := engine.ReconcileAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReconcileResult{Created: 0, Updated: 0}, result)

		fine, err := store.GetFine(ctx, 1)
		require.NoError(t, err)
		assert.True(t, fine.Paid)
		assert.Equal(t, models.Cents(250), fine.Amount)
	})
}

func TestHasPendingUnpaidFines(t *testing.T) {
	engine, store, _ := setup(t, "2024-01-20")
	ctx := context.Background()
	addBorrower(t, store, "000001", "123456789")
	addLoan(t, store, 1, "111", "000001", "2024-01-01")
	require.NoError(t, store.InsertFine(ctx, &models.Fine{LoanID: 1, Amount: 125}))

	pending, err := engine.HasPendingUnpaidFines(ctx, "000001")
	require.NoError(t, err)
	assert.True(t, pending)

	// Fine on a returned book no longer blocks checkout, even while unpaid.
	_, err = store.SetLoanReturned(ctx, 1, mustDate(t, "2024-01-20"))
	require.NoError(t, err)

	pending, err = engine.HasPendingUnpaidFines(ctx, "000001")
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestPayBorrowerFines(t *testing.T) {
	engine, store, _ := setup(t, "2024-01-20")
	ctx := context.Background()
	addBorrower(t, store, "000001", "123456789")

	t.Run("requires a card id", func(t *testing.T) {
		_, err := engine.PayBorrowerFines(ctx, "  ")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("zero owed is a valid outcome", func(t *testing.T) {
		count, err := engine.PayBorrowerFines(ctx, "000001")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("blocked while any book is out, finable or not", func(t *testing.T) {
		addLoan(t, store, 1, "111", "000001", "2024-01-18") // not overdue, no fine
		_, err := engine.PayBorrowerFines(ctx, "000001")
		assert.ErrorIs(t, err, ErrActiveLoansBlock)
	})

	t.Run("settles everything once books are back", func(t *testing.T) {
		_, err := store.SetLoanReturned(ctx, 1, mustDate(t, "2024-01-20"))
		require.NoError(t, err)
		require.NoError(t, store.InsertFine(ctx, &models.Fine{LoanID: 1, Amount: 125}))

		count, err := engine.PayBorrowerFines(ctx, "000001")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestFinesByBorrower(t *testing.T) {
	engine, store, _ := setup(t, "2024-02-01")
	ctx := context.Background()
	addBorrower(t, store, "000001", "123456789")
	addBorrower(t, store, "000002", "987654321")
	addLoan(t, store, 1, "111", "000001", "2024-01-01")
	addLoan(t, store, 2, "222", "000001", "2024-01-01")
	addLoan(t, store, 3, "333", "000002", "2024-01-01")

	_, err := engine.ReconcileAll(ctx)
	require.NoError(t, err)

	grouped, err := engine.FinesByBorrower(ctx, false)
	require.NoError(t, err)
	require.Len(t, grouped, 2)

	assert.Equal(t, "000001", grouped[0].CardID)
	assert.Len(t, grouped[0].Fines, 2)
	// 17 days late at 0.25/day, two loans.
	assert.Equal(t, models.Cents(850), grouped[0].Total)

	assert.Equal(t, "000002", grouped[1].CardID)
	assert.Equal(t, models.Cents(425), grouped[1].Total)
}

// TestCirculationScenario walks the full workflow: checkout on a simulated
// date, fine accrual while overdue, the payment block while the book is out,
// check-in, payment, and the frozen amount afterwards.
func TestCirculationScenario(t *testing.T) {
	engine, store, clk := setup(t, "2024-01-01")
	ctx := context.Background()
	led := ledger.New(store, clk)
	addBorrower(t, store, "000001", "123456789")

	// Checkout on 2024-01-01: due 2024-01-15.
	result, err := led.Checkout(ctx, "111", "000001")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", result.Loan.DueDate.String())

	// Five days overdue: reconciliation creates one fine of 1.25.
	clk.Set(mustDate(t, "2024-01-20"))
	rec, err := engine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Created: 1, Updated: 0}, rec)
	fine, err := store.GetFine(ctx, result.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.25", fine.Amount.String())

	// Cannot pay while still holding the loan.
	_, err = engine.PayBorrowerFines(ctx, "000001")
	assert.ErrorIs(t, err, ErrActiveLoansBlock)

	// Check the book in; the loan stays overdue (returned after due date)
	// and the amount stays 1.25.
	updated, err := led.CheckIn(ctx, []int{result.Loan.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	rec, err = engine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Created: 0, Updated: 0}, rec)
	fine, err = store.GetFine(ctx, result.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.25", fine.Amount.String())

	// Pay; the fine is settled and frozen even if reconciled much later.
	count, err := engine.PayBorrowerFines(ctx, "000001")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	clk.Set(mustDate(t, "2024-06-01"))
	_, err = engine.ReconcileAll(ctx)
	require.NoError(t, err)
	fine, err = store.GetFine(ctx, result.Loan.ID)
	require.NoError(t, err)
	assert.True(t, fine.Paid)
	assert.Equal(t, "1.25", fine.Amount.String())
}
