// Package registry handles borrower registration and catalog search, the
// simple CRUD collaborators the circulation core reads from.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/circulation/internal/models"
	"github.com/mmynk/circulation/internal/storage"
)

// ErrValidation wraps missing/malformed registration input.
var ErrValidation = errors.New("invalid input")

// ErrDuplicateSSN rejects registration when the identity code is already on
// file.
var ErrDuplicateSSN = errors.New("a borrower with that SSN already exists")

// RegisterResult is a successful registration: the created borrower plus a
// confirmation message carrying the new card id.
type RegisterResult struct {
	Borrower *models.Borrower
	Message  string
}

// Registry is the borrower/catalog service.
type Registry struct {
	store storage.Store
}

// New creates a Registry over the given store.
func New(store storage.Store) *Registry {
	return &Registry{store: store}
}

// RegisterBorrower creates a borrower. The SSN must be 9 digits and unique;
// the phone, when given, is normalized to digits (keeping the last 10 when
// longer) and must end up 7-10 digits long. The card id is the zero-padded
// successor of the highest existing card number, allocated inside the insert
// transaction.
func (g *Registry) RegisterBorrower(ctx context.Context, name, ssn, address, phone string) (*RegisterResult, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	ssn = digitsOnly(ssn)
	phone = normalizePhone(phone)

	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	case len(name) > 100:
		return nil, fmt.Errorf("%w: name must be at most 100 characters", ErrValidation)
	case len(ssn) != 9:
		return nil, fmt.Errorf("%w: SSN must be exactly 9 digits", ErrValidation)
	case address == "":
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	case len(address) > 255:
		return nil, fmt.Errorf("%w: address must be at most 255 characters", ErrValidation)
	case phone != "" && len(phone) < 7:
		return nil, fmt.Errorf("%w: phone must contain 7-10 digits", ErrValidation)
	}

	var result *RegisterResult
	err := g.store.InTransaction(ctx, func(r storage.Repository) error {
		exists, err := r.BorrowerSSNExists(ctx, ssn)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateSSN
		}

		// Next card id in the existing zero-padded 6-digit format.
		max, err := r.MaxCardNumber(ctx)
		if err != nil {
			return err
		}
		cardID := fmt.Sprintf("%06d", max+1)

		b := &models.Borrower{
			CardID:  cardID,
			SSN:     ssn,
			Name:    name,
			Address: address,
			Phone:   phone,
		}
		if err := r.InsertBorrower(ctx, b); err != nil {
			return err
		}

		result = &RegisterResult{
			Borrower: b,
			Message:  fmt.Sprintf("Borrower created successfully. Card ID: %s", cardID),
		}
		return nil
	})
	if err != nil {
		slog.Warn("Borrower registration failed", "error", err)
		return nil, err
	}

	slog.Info("Borrower registered", "card_id", result.Borrower.CardID)
	return result, nil
}

// SearchBooks matches q against title, ISBN or author name. An empty query
// returns no results rather than the whole catalog.
func (g *Registry) SearchBooks(ctx context.Context, q string) ([]models.BookSearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	return g.store.SearchBooks(ctx, q)
}

// AddBook creates or updates a catalog entry.
func (g *Registry) AddBook(ctx context.Context, isbn, title string, authors []string) error {
	isbn = strings.TrimSpace(isbn)
	title = strings.TrimSpace(title)
	if isbn == "" {
		return fmt.Errorf("%w: ISBN is required", ErrValidation)
	}
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return g.store.UpsertBook(ctx, models.Book{ISBN: isbn, Title: title, Authors: authors})
}

// digitsOnly strips everything but ASCII digits.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizePhone strips non-digits and keeps the last 10 digits when longer,
// preserving area code plus number.
func normalizePhone(s string) string {
	d := digitsOnly(s)
	if len(d) > 10 {
		d = d[len(d)-10:]
	}
	return d
}
