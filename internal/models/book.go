package models

// Book is a catalog entry. The circulation core only reads books (existence
// and display); the catalog itself is simple CRUD.
type Book struct {
	ISBN    string
	Title   string
	Authors []string
}

// BookSearchResult is a book plus its current availability, as shown on the
// search page.
type BookSearchResult struct {
	Book

	// Available is true when no active loan exists for this ISBN.
	Available bool

	// BorrowedBy is the card id of the borrower currently holding the book,
	// empty when available.
	BorrowedBy string
}
