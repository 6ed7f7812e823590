package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/circulation/internal/models"
	"github.com/mmynk/circulation/internal/storage"
)

// activeLoan is the SQL predicate for "book not yet returned". Historical
// rows may carry an empty string or a zero-date sentinel instead of NULL;
// all three mean active.
const activeLoan = "(date_in IS NULL OR date_in = '' OR date_in = '0000-00-00')"

const loanColumns = "loan_id, isbn, card_id, date_out, due_date, date_in"

// scanLoan reads one loan row, normalizing the dual NULL/empty-sentinel
// representation of "not returned" to a nil DateIn so the core never sees it.
func scanLoan(row interface{ Scan(...any) error }) (*models.Loan, error) {
	l := &models.Loan{}
	var dateOut, dueDate string
	var dateIn sql.NullString
	if err := row.Scan(&l.ID, &l.ISBN, &l.CardID, &dateOut, &dueDate, &dateIn); err != nil {
		return nil, err
	}

	var err error
	if l.DateOut, err = models.ParseDate(dateOut); err != nil {
		return nil, fmt.Errorf("loan %d date_out: %w", l.ID, err)
	}
	if l.DueDate, err = models.ParseDate(dueDate); err != nil {
		return nil, fmt.Errorf("loan %d due_date: %w", l.ID, err)
	}
	if dateIn.Valid && dateIn.String != "" && dateIn.String != "0000-00-00" {
		d, err := models.ParseDate(dateIn.String)
		if err != nil {
			return nil, fmt.Errorf("loan %d date_in: %w", l.ID, err)
		}
		l.DateIn = &d
	}
	return l, nil
}

// GetLoan retrieves a loan by id.
func (q *queries) GetLoan(ctx context.Context, loanID int) (*models.Loan, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+loanColumns+" FROM book_loans WHERE loan_id = ?", loanID)
	loan, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", loanID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// CountActiveLoans returns how many books the borrower currently has out.
func (q *queries) CountActiveLoans(ctx context.Context, cardID string) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM book_loans WHERE card_id = ? AND "+activeLoan,
		cardID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active loans: %w", err)
	}
	return count, nil
}

// HasActiveLoanForISBN reports whether the book is currently checked out.
func (q *queries) HasActiveLoanForISBN(ctx context.Context, isbn string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM book_loans WHERE isbn = ? AND "+activeLoan+")",
		isbn,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check book availability: %w", err)
	}
	return exists, nil
}

// MaxLoanID returns the highest loan id in storage, 0 when none exist.
func (q *queries) MaxLoanID(ctx context.Context) (int, error) {
	var max int
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(loan_id), 0) FROM book_loans",
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max loan id: %w", err)
	}
	return max, nil
}

// InsertLoan persists a new loan. An active-loan collision on the ISBN
// surfaces as storage.ErrConflict via the partial unique index.
func (q *queries) InsertLoan(ctx context.Context, loan *models.Loan) error {
	var dateIn sql.NullString
	if loan.DateIn != nil {
		dateIn = sql.NullString{String: loan.DateIn.String(), Valid: true}
	}
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO book_loans (loan_id, isbn, card_id, date_out, due_date, date_in) VALUES (?, ?, ?, ?, ?, ?)",
		loan.ID, loan.ISBN, loan.CardID, loan.DateOut.String(), loan.DueDate.String(), dateIn,
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", mapConstraintErr(err))
	}
	return nil
}

// SetLoanReturned records the return date on an active loan. The WHERE clause
// makes the update a no-op for returned or nonexistent loans, so the
// active -> returned transition can only happen once.
func (q *queries) SetLoanReturned(ctx context.Context, loanID int, dateIn models.Date) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE book_loans SET date_in = ? WHERE loan_id = ? AND "+activeLoan,
		dateIn.String(), loanID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set loan returned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListOverdueLoans returns loans that are still out past their due date as of
// today, or were returned after their due date.
func (q *queries) ListOverdueLoans(ctx context.Context, today models.Date) ([]models.Loan, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+loanColumns+" FROM book_loans WHERE ("+activeLoan+" AND due_date < ?)"+
			" OR (NOT "+activeLoan+" AND date_in > due_date) ORDER BY loan_id",
		today.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan overdue loan: %w", err)
		}
		loans = append(loans, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate overdue loans: %w", err)
	}
	return loans, nil
}
