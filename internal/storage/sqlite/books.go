package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/circulation/internal/models"
)

// UpsertBook creates or updates a catalog entry and links its authors.
func (q *queries) UpsertBook(ctx context.Context, book models.Book) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO books (isbn, title) VALUES (?, ?) ON CONFLICT(isbn) DO UPDATE SET title = excluded.title",
		book.ISBN, book.Title,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert book: %w", err)
	}

	for _, name := range book.Authors {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO authors (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name,
		); err != nil {
			return fmt.Errorf("failed to insert author: %w", err)
		}

		var authorID int64
		err := q.db.QueryRowContext(ctx,
			"SELECT author_id FROM authors WHERE name = ?", name,
		).Scan(&authorID)
		if err != nil {
			return fmt.Errorf("failed to get author id: %w", err)
		}

		if _, err := q.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO book_authors (isbn, author_id) VALUES (?, ?)",
			book.ISBN, authorID,
		); err != nil {
			return fmt.Errorf("failed to link author: %w", err)
		}
	}
	return nil
}

// SearchBooks matches the query against title, ISBN, or author name
// (case-insensitive substring) and decorates each hit with its authors and
// current availability, ordered by title.
func (q *queries) SearchBooks(ctx context.Context, query string) ([]models.BookSearchResult, error) {
	pattern := "%" + query + "%"
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT bk.isbn, bk.title FROM books bk
		 LEFT JOIN book_authors ba ON ba.isbn = bk.isbn
		 LEFT JOIN authors a ON a.author_id = ba.author_id
		 WHERE bk.title LIKE ? OR bk.isbn LIKE ? OR a.name LIKE ?
		 ORDER BY bk.title`,
		pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}
	defer rows.Close()

	var results []models.BookSearchResult
	for rows.Next() {
		var r models.BookSearchResult
		if err := rows.Scan(&r.ISBN, &r.Title); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}

	for i := range results {
		r := &results[i]

		authorRows, err := q.db.QueryContext(ctx,
			`SELECT a.name FROM authors a
			 JOIN book_authors ba ON ba.author_id = a.author_id
			 WHERE ba.isbn = ? ORDER BY a.name`,
			r.ISBN,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get authors: %w", err)
		}
		for authorRows.Next() {
			var name string
			if err := authorRows.Scan(&name); err != nil {
				authorRows.Close()
				return nil, fmt.Errorf("failed to scan author: %w", err)
			}
			r.Authors = append(r.Authors, name)
		}
		authorRows.Close()
		if err := authorRows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate authors: %w", err)
		}

		var borrowedBy string
		err = q.db.QueryRowContext(ctx,
			"SELECT card_id FROM book_loans WHERE isbn = ? AND "+activeLoan,
			r.ISBN,
		).Scan(&borrowedBy)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			r.Available = true
		case err != nil:
			return nil, fmt.Errorf("failed to check availability: %w", err)
		default:
			r.BorrowedBy = borrowedBy
		}
	}
	return results, nil
}
