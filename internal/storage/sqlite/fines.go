package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/circulation/internal/models"
	"github.com/mmynk/circulation/internal/storage"
)

// GetFine retrieves the fine for a loan, if any.
func (q *queries) GetFine(ctx context.Context, loanID int) (*models.Fine, error) {
	f := &models.Fine{}
	err := q.db.QueryRowContext(ctx,
		"SELECT loan_id, fine_amt_cents, paid FROM fines WHERE loan_id = ?",
		loanID,
	).Scan(&f.LoanID, &f.Amount, &f.Paid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fine for loan %d: %w", loanID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fine: %w", err)
	}
	return f, nil
}

// InsertFine persists a new fine.
func (q *queries) InsertFine(ctx context.Context, fine *models.Fine) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO fines (loan_id, fine_amt_cents, paid) VALUES (?, ?, ?)",
		fine.LoanID, int64(fine.Amount), fine.Paid,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fine: %w", mapConstraintErr(err))
	}
	return nil
}

// UpdateFineAmount replaces the stored amount of an unpaid fine. Paid fines
// are frozen; the WHERE clause makes touching one a no-op.
func (q *queries) UpdateFineAmount(ctx context.Context, loanID int, amount models.Cents) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE fines SET fine_amt_cents = ? WHERE loan_id = ? AND paid = 0",
		int64(amount), loanID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fine amount: %w", err)
	}
	return nil
}

// HasUnpaidFineOnActiveLoan reports whether the borrower owes money on a book
// they still have out. This is the predicate that blocks checkout.
func (q *queries) HasUnpaidFineOnActiveLoan(ctx context.Context, cardID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM fines f
			JOIN book_loans l ON l.loan_id = f.loan_id
			WHERE f.paid = 0 AND l.card_id = ? AND `+activeLoan+`)`,
		cardID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unpaid fines: %w", err)
	}
	return exists, nil
}

// MarkBorrowerFinesPaid settles every unpaid fine on the borrower's loans and
// returns the number of rows updated.
func (q *queries) MarkBorrowerFinesPaid(ctx context.Context, cardID string) (int, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE fines SET paid = 1
		 WHERE paid = 0 AND loan_id IN (SELECT loan_id FROM book_loans WHERE card_id = ?)`,
		cardID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark fines paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(affected), nil
}

// ListFineDetails returns fines joined with their loan and borrower, ordered
// by card id then loan id.
func (q *queries) ListFineDetails(ctx context.Context, includePaid bool) ([]models.FineDetail, error) {
	query := `SELECT f.loan_id, b.card_id, b.name, l.isbn, l.due_date, l.date_in, f.fine_amt_cents, f.paid
		FROM fines f
		JOIN book_loans l ON l.loan_id = f.loan_id
		JOIN borrowers b ON b.card_id = l.card_id`
	if !includePaid {
		query += " WHERE f.paid = 0"
	}
	query += " ORDER BY b.card_id, f.loan_id"

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list fines: %w", err)
	}
	defer rows.Close()

	var details []models.FineDetail
	for rows.Next() {
		var d models.FineDetail
		var dueDate string
		var dateIn sql.NullString
		if err := rows.Scan(&d.LoanID, &d.CardID, &d.BorrowerName, &d.ISBN, &dueDate, &dateIn, &d.Amount, &d.Paid); err != nil {
			return nil, fmt.Errorf("failed to scan fine: %w", err)
		}
		if d.DueDate, err = models.ParseDate(dueDate); err != nil {
			return nil, fmt.Errorf("fine for loan %d due_date: %w", d.LoanID, err)
		}
		if dateIn.Valid && dateIn.String != "" && dateIn.String != "0000-00-00" {
			parsed, err := models.ParseDate(dateIn.String)
			if err != nil {
				return nil, fmt.Errorf("fine for loan %d date_in: %w", d.LoanID, err)
			}
			d.DateIn = &parsed
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fines: %w", err)
	}
	return details, nil
}
