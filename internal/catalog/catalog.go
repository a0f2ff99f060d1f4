// Package catalog manages the book catalog.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/aoideee/library-api/internal/data"
	"github.com/aoideee/library-api/internal/lending"
	"github.com/aoideee/library-api/internal/validator"
)

// DefaultCopies is used when a new book does not say how many copies it has.
const DefaultCopies = 1

type Service struct {
	store   data.Store
	lending *lending.Service
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store data.Store, lend *lending.Service, opts ...Option) *Service {
	s := &Service{store: store, lending: lend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a book after checking its fields and that the ISBN is free.
func (s *Service) Create(ctx context.Context, input data.CreateBookInput) (*data.Book, error) {
	v := validator.New()
	v.CheckStruct(input)
	data.ValidateISBN(v, input.ISBN)
	if !v.Valid() {
		return nil, data.ValidationFailed(v.Errors)
	}

	copies := DefaultCopies
	if input.AvailableCopies != nil {
		copies = *input.AvailableCopies
	}

	book := &data.Book{
		Title:            input.Title,
		Author:           input.Author,
		ISBN:             input.ISBN,
		AvailableCopies:  copies,
		RegistrationDate: data.DateOf(s.now()),
	}

	if err := s.ensureISBNFree(ctx, s.store, input.ISBN, 0); err != nil {
		return nil, err
	}
	if err := s.store.Books().Insert(ctx, book); err != nil {
		if errors.Is(err, data.ErrDuplicateISBN) {
			return nil, isbnTaken(input.ISBN)
		}
		return nil, data.StoreFailure("insert book", err)
	}
	return book, nil
}

func (s *Service) List(ctx context.Context) ([]*data.Book, error) {
	books, err := s.store.Books().GetAll(ctx, data.BookFilter{})
	if err != nil {
		return nil, data.StoreFailure("list books", err)
	}
	return books, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*data.Book, error) {
	book, err := s.store.Books().Get(ctx, id)
	if err != nil {
		return nil, bookLookupError(err, id)
	}
	return book, nil
}

// Update applies the supplied fields only. A changed ISBN must not belong to
// another book.
func (s *Service) Update(ctx context.Context, id int64, input data.UpdateBookInput) (*data.Book, error) {
	v := validator.New()
	v.CheckStruct(input)
	if input.Title != nil {
		v.Check(*input.Title != "", "title", "must not be empty")
	}
	if input.Author != nil {
		v.Check(*input.Author != "", "author", "must not be empty")
	}
	if input.ISBN != nil {
		data.ValidateISBN(v, *input.ISBN)
	}
	if !v.Valid() {
		return nil, data.ValidationFailed(v.Errors)
	}

	var book *data.Book
	err := s.store.Atomically(ctx, func(tx data.Store) error {
		var err error
		book, err = tx.Books().GetForUpdate(ctx, id)
		if err != nil {
			return bookLookupError(err, id)
		}

		if input.Title != nil {
			book.Title = *input.Title
		}
		if input.Author != nil {
			book.Author = *input.Author
		}
		if input.ISBN != nil && *input.ISBN != book.ISBN {
			if err := s.ensureISBNFree(ctx, tx, *input.ISBN, book.ID); err != nil {
				return err
			}
			book.ISBN = *input.ISBN
		}
		if input.AvailableCopies != nil {
			book.AvailableCopies = *input.AvailableCopies
		}

		if err := tx.Books().Update(ctx, book); err != nil {
			switch {
			case errors.Is(err, data.ErrDuplicateISBN):
				return isbnTaken(book.ISBN)
			case errors.Is(err, data.ErrRecordNotFound):
				return data.NotFound("book %d not found", id)
			default:
				return data.StoreFailure("update book", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapUnexpected("update book", err)
	}
	return book, nil
}

// Delete removes a book and its checkouts.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Books().Delete(ctx, id); err != nil {
		return bookLookupError(err, id)
	}
	return nil
}

// DeleteAll empties the catalog and reports how many books were removed.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.store.Books().DeleteAll(ctx)
	if err != nil {
		return 0, data.StoreFailure("delete all books", err)
	}
	return n, nil
}

// Search returns books matching every supplied term as a case-sensitive
// substring. At least one term is required.
func (s *Service) Search(ctx context.Context, filter data.BookFilter) ([]*data.Book, error) {
	if filter.IsEmpty() {
		return nil, data.InvalidField("query", "at least one of title, author or isbn must be provided")
	}

	books, err := s.store.Books().GetAll(ctx, filter)
	if err != nil {
		return nil, data.StoreFailure("search books", err)
	}
	return books, nil
}

// ListCheckouts returns the lending history of a book.
func (s *Service) ListCheckouts(ctx context.Context, id int64) ([]*data.CheckoutDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.lending.ListForBook(ctx, id)
}

func (s *Service) ensureISBNFree(ctx context.Context, store data.Store, isbn string, self int64) error {
	existing, err := store.Books().GetByISBN(ctx, isbn)
	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		return nil
	case err != nil:
		return data.StoreFailure("find book by isbn", err)
	case existing.ID != self:
		return isbnTaken(isbn)
	}
	return nil
}

func isbnTaken(isbn string) error {
	return data.Conflict("a book with isbn %s already exists", isbn)
}

func bookLookupError(err error, id int64) error {
	if errors.Is(err, data.ErrRecordNotFound) {
		return data.NotFound("book %d not found", id)
	}
	return data.StoreFailure("get book", err)
}

func wrapUnexpected(op string, err error) error {
	var de *data.Error
	if errors.As(err, &de) {
		return err
	}
	return data.StoreFailure(op, err)
}
