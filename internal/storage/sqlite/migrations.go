package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
//
// Dates are stored as "YYYY-MM-DD" TEXT; lexicographic order matches calendar
// order so date comparisons work directly in SQL. Fine amounts are stored as
// integer cents. The partial unique index on active loans is the storage-level
// backstop for the "one concurrent copy per ISBN" rule: if two checkouts race
// past the application-level availability check, the second insert fails with
// a constraint violation instead of committing a duplicate active loan.
const schema = `
CREATE TABLE IF NOT EXISTS borrowers (
    card_id TEXT PRIMARY KEY,
    ssn TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    address TEXT NOT NULL,
    phone TEXT
);

CREATE TABLE IF NOT EXISTS books (
    isbn TEXT PRIMARY KEY,
    title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS authors (
    author_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS book_authors (
    isbn TEXT NOT NULL,
    author_id INTEGER NOT NULL,
    PRIMARY KEY (isbn, author_id),
    FOREIGN KEY (isbn) REFERENCES books(isbn) ON DELETE CASCADE,
    FOREIGN KEY (author_id) REFERENCES authors(author_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS book_loans (
    loan_id INTEGER PRIMARY KEY,
    isbn TEXT NOT NULL,
    card_id TEXT NOT NULL,
    date_out TEXT NOT NULL,
    due_date TEXT NOT NULL,
    date_in TEXT,
    FOREIGN KEY (card_id) REFERENCES borrowers(card_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_active_loan_per_isbn
    ON book_loans(isbn) WHERE date_in IS NULL;

CREATE INDEX IF NOT EXISTS idx_book_loans_card_id ON book_loans(card_id);

CREATE TABLE IF NOT EXISTS fines (
    loan_id INTEGER PRIMARY KEY,
    fine_amt_cents INTEGER NOT NULL,
    paid INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (loan_id) REFERENCES book_loans(loan_id)
);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
