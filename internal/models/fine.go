package models

// Fine represents money owed on an overdue loan. There is at most one fine
// per loan, keyed by the loan id.
type Fine struct {
	// LoanID is the loan this fine belongs to.
	LoanID int

	// Amount is the fine amount in cents. While the fine is unpaid it tracks
	// the latest reconciliation; once paid it is frozen forever.
	Amount Cents

	// Paid marks the fine as settled. Paid fines are excluded from
	// reconciliation.
	Paid bool
}

// FineDetail is a fine joined with its loan and borrower, as shown on the
// fines management view.
type FineDetail struct {
	LoanID       int
	CardID       string
	BorrowerName string
	ISBN         string
	DueDate      Date
	DateIn       *Date
	Amount       Cents
	Paid         bool
}
