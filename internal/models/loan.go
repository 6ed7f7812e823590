package models

// LoanPeriodDays is the checkout period: a book is due back 14 days after
// the day it went out.
const LoanPeriodDays = 14

// Loan represents one checkout of one book by one borrower.
// A loan is created by checkout, mutated exactly once by check-in, and never
// deleted.
type Loan struct {
	// ID is the loan identifier, allocated as max-in-storage plus one.
	ID int

	// ISBN identifies the book on loan.
	ISBN string

	// CardID identifies the borrower holding the loan.
	CardID string

	// DateOut is the day the book was checked out.
	DateOut Date

	// DueDate is DateOut plus LoanPeriodDays.
	DueDate Date

	// DateIn is the day the book came back, nil while the loan is active.
	// The storage layer normalizes legacy empty-sentinel return dates to nil,
	// so nil is the only "not returned" representation seen here.
	DateIn *Date
}

// Active reports whether the book is still out. The active -> returned
// transition happens exactly once, at check-in.
func (l *Loan) Active() bool {
	return l.DateIn == nil
}

// Overdue reports whether the loan is overdue as of the given date: either
// still out past its due date, or returned after its due date.
func (l *Loan) Overdue(today Date) bool {
	if l.Active() {
		return l.DueDate.Before(today)
	}
	return l.DateIn.After(l.DueDate)
}
