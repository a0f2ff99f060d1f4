// Package data provides the data models and database interaction logic
// for the library management system.
package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/aoideee/library-api/internal/validator"
)

// Book represents a single book record stored in the database.
// It maps directly to a row in the "books" table.
type Book struct {
	ID               int64     `json:"id" db:"id"`                               // Unique identifier assigned by the store
	Title            string    `json:"title" db:"title"`                         // Title of the book
	Author           string    `json:"author" db:"author"`                       // Author name
	ISBN             string    `json:"isbn" db:"isbn"`                           // 10 or 13 character ISBN, unique across the catalog
	AvailableCopies  int       `json:"available_copies" db:"available_copies"`   // Copies currently on the shelf, never negative
	RegistrationDate Date      `json:"registration_date" db:"registration_date"` // Day the book entered the catalog
	CreatedAt        time.Time `json:"created_at" db:"created_at"`               // Timestamp when the record was created
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`               // Timestamp when the record was last modified
}

// BookSummary is the slice of a book embedded in checkout views.
type BookSummary struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// Summary returns the summary view of b.
func (b *Book) Summary() BookSummary {
	return BookSummary{ID: b.ID, Title: b.Title, Author: b.Author, ISBN: b.ISBN}
}

// CreateBookInput holds the fields a client must supply when creating a new book.
// AvailableCopies defaults to 1 when omitted.
type CreateBookInput struct {
	Title           string `json:"title"            validate:"required"`
	Author          string `json:"author"           validate:"required"`
	ISBN            string `json:"isbn"             validate:"required"`
	AvailableCopies *int   `json:"available_copies" validate:"omitempty,min=0"`
}

// UpdateBookInput holds the fields a client may supply when partially updating a book.
// Every field is a pointer so we can distinguish between "not provided" (nil)
// and "intentionally set to zero/empty". Only non-nil fields are applied.
type UpdateBookInput struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	ISBN            *string `json:"isbn"`
	AvailableCopies *int    `json:"available_copies" validate:"omitempty,min=0"`
}

// ValidateISBN records an error unless isbn is 10 or 13 characters long.
func ValidateISBN(v *validator.Validator, isbn string) {
	v.Check(isbn != "", "isbn", "must be provided")
	v.Check(len(isbn) == 10 || len(isbn) == 13, "isbn", "must be 10 or 13 characters long")
}

// BookFilter narrows a book listing. Every non-empty field must be contained
// (case-sensitively) in the matching column.
type BookFilter struct {
	Title  string
	Author string
	ISBN   string
}

// IsEmpty reports whether f places no constraint at all.
func (f BookFilter) IsEmpty() bool {
	return f.Title == "" && f.Author == "" && f.ISBN == ""
}

// Matches is the in-process equivalent of the SQL the BookModel generates.
func (f BookFilter) Matches(b *Book) bool {
	return contains(b.Title, f.Title) && contains(b.Author, f.Author) && contains(b.ISBN, f.ISBN)
}

func (f BookFilter) expressions() []exp.Expression {
	var where []exp.Expression
	if f.Title != "" {
		where = append(where, goqu.C("title").Like(containsPattern(f.Title)))
	}
	if f.Author != "" {
		where = append(where, goqu.C("author").Like(containsPattern(f.Author)))
	}
	if f.ISBN != "" {
		where = append(where, goqu.C("isbn").Like(containsPattern(f.ISBN)))
	}
	return where
}

var bookColumns = []any{
	"id", "title", "author", "isbn", "available_copies", "registration_date", "created_at", "updated_at",
}

// BookModel runs book queries against a pool or an open transaction.
type BookModel struct {
	q sqlx.ExtContext
}

// Insert adds a new book record to the database.
// After a successful insert, the store-assigned id and timestamps are
// written back into the book struct.
func (m BookModel) Insert(ctx context.Context, book *Book) error {
	query, args, err := dialect.Insert("books").
		Rows(goqu.Record{
			"title":             book.Title,
			"author":            book.Author,
			"isbn":              book.ISBN,
			"available_copies":  book.AvailableCopies,
			"registration_date": book.RegistrationDate,
		}).
		Returning(bookColumns...).
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	if err := sqlx.GetContext(ctx, m.q, book, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateISBN
		}
		return err
	}
	return nil
}

// Get retrieves a single book by its primary key.
// Returns ErrRecordNotFound if no book with the given id exists.
func (m BookModel) Get(ctx context.Context, id int64) (*Book, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}
	return m.getOne(ctx, dialect.From("books").Select(bookColumns...).Where(goqu.C("id").Eq(id)))
}

// GetForUpdate is Get with a row lock held until the surrounding
// transaction ends.
func (m BookModel) GetForUpdate(ctx context.Context, id int64) (*Book, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}
	return m.getOne(ctx, dialect.From("books").Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait))
}

func (m BookModel) GetByISBN(ctx context.Context, isbn string) (*Book, error) {
	return m.getOne(ctx, dialect.From("books").Select(bookColumns...).Where(goqu.C("isbn").Eq(isbn)))
}

func (m BookModel) getOne(ctx context.Context, ds *goqu.SelectDataset) (*Book, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var book Book
	if err := sqlx.GetContext(ctx, m.q, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &book, nil
}

// GetAll retrieves every book matching filter, ordered by id.
func (m BookModel) GetAll(ctx context.Context, filter BookFilter) ([]*Book, error) {
	query, args, err := dialect.From("books").
		Select(bookColumns...).
		Where(filter.expressions()...).
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	books := []*Book{}
	if err := sqlx.SelectContext(ctx, m.q, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// Update saves the modified fields of book back to the database.
// The refreshed updated_at value is scanned back into the struct.
func (m BookModel) Update(ctx context.Context, book *Book) error {
	query, args, err := dialect.Update("books").
		Set(goqu.Record{
			"title":            book.Title,
			"author":           book.Author,
			"isbn":             book.ISBN,
			"available_copies": book.AvailableCopies,
			"updated_at":       goqu.L("CURRENT_TIMESTAMP"),
		}).
		Where(goqu.C("id").Eq(book.ID)).
		Returning("updated_at").
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	err = m.q.QueryRowxContext(ctx, query, args...).Scan(&book.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrRecordNotFound
	case isUniqueViolation(err):
		return ErrDuplicateISBN
	default:
		return err
	}
}

// AdjustCopies adds delta to available_copies. The guard lives in the
// WHERE clause, so a decrement that would go negative changes nothing and
// reports ErrNoCopiesAvailable.
func (m BookModel) AdjustCopies(ctx context.Context, id int64, delta int) error {
	query, args, err := dialect.Update("books").
		Set(goqu.Record{
			"available_copies": goqu.L("available_copies + ?", delta),
			"updated_at":       goqu.L("CURRENT_TIMESTAMP"),
		}).
		Where(goqu.C("id").Eq(id), goqu.L("available_copies + ? >= 0", delta)).
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	n, err := execRows(ctx, m.q, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := m.Get(ctx, id); err != nil {
			return err
		}
		return ErrNoCopiesAvailable
	}
	return nil
}

// Delete removes the book with the given id. Its checkouts go with it.
// Returns ErrRecordNotFound if no matching record exists.
func (m BookModel) Delete(ctx context.Context, id int64) error {
	// Guard against obviously bad IDs before touching the database.
	if id < 1 {
		return ErrRecordNotFound
	}

	query, args, err := dialect.Delete("books").Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	n, err := execRows(ctx, m.q, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteAll empties the catalog and reports how many books were removed.
func (m BookModel) DeleteAll(ctx context.Context) (int64, error) {
	query, args, err := dialect.Delete("books").Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}
	return execRows(ctx, m.q, query, args)
}
