package models

// Borrower represents a registered library patron.
// Borrowers are created once by registration and are immutable afterwards;
// circulation state lives on their loans, not here.
type Borrower struct {
	// CardID is the six-digit zero-padded card identifier (e.g. "000042").
	// Card ids form a monotonically increasing numeric sequence.
	CardID string

	// SSN is the 9-digit identity code, unique system-wide. Kept as a string
	// to preserve leading zeros.
	SSN string

	// Name is the borrower's display name.
	Name string

	// Address is the borrower's mailing address.
	Address string

	// Phone is the normalized phone number (7-10 digits), empty if not given.
	Phone string
}
