package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/circulation/internal/models"
	"github.com/mmynk/circulation/internal/storage"
)

// GetBorrower retrieves a borrower by card id.
func (q *queries) GetBorrower(ctx context.Context, cardID string) (*models.Borrower, error) {
	b := &models.Borrower{}
	var phone sql.NullString
	err := q.db.QueryRowContext(ctx,
		"SELECT card_id, ssn, name, address, phone FROM borrowers WHERE card_id = ?",
		cardID,
	).Scan(&b.CardID, &b.SSN, &b.Name, &b.Address, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("borrower %s: %w", cardID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}
	b.Phone = phone.String
	return b, nil
}

// BorrowerSSNExists reports whether any borrower is registered with the given
// identity code.
func (q *queries) BorrowerSSNExists(ctx context.Context, ssn string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM borrowers WHERE ssn = ?)", ssn,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ssn: %w", err)
	}
	return exists, nil
}

// MaxCardNumber returns the highest card id as a number, 0 when no borrowers
// exist. Card ids are zero-padded strings, so the cast keeps numeric order.
func (q *queries) MaxCardNumber(ctx context.Context) (int, error) {
	var max int
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(card_id AS INTEGER)), 0) FROM borrowers",
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max card number: %w", err)
	}
	return max, nil
}

// InsertBorrower persists a new borrower.
func (q *queries) InsertBorrower(ctx context.Context, b *models.Borrower) error {
	phone := sql.NullString{String: b.Phone, Valid: b.Phone != ""}
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO borrowers (card_id, ssn, name, address, phone) VALUES (?, ?, ?, ?, ?)",
		b.CardID, b.SSN, b.Name, b.Address, phone,
	)
	if err != nil {
		return fmt.Errorf("failed to insert borrower: %w", mapConstraintErr(err))
	}
	return nil
}
