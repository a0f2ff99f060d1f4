// Package lending implements the checkout/return lifecycle. A checkout is
// Active until it is returned; Returned is terminal.
package lending

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/aoideee/library-api/internal/data"
	"github.com/aoideee/library-api/internal/validator"
)

// DefaultLoanPeriodDays is the number of days between checkout and due date.
const DefaultLoanPeriodDays = 7

// Recorder receives lifecycle events. *metrics.Collector satisfies it.
type Recorder interface {
	RecordCheckout()
	RecordReturn(method string)
	RecordRejection(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCheckout() {}
func (nopRecorder) RecordReturn(string) {}
func (nopRecorder) RecordRejection(string) {}

// Rejection reasons reported to the Recorder.
const (
	reasonDuplicate = "duplicate_checkout"
	reasonNoCopies  = "no_copies"
	reasonReturned  = "already_returned"
	reasonNoActive  = "no_active_checkout"
)

// Service runs checkouts and returns against a data.Store.
type Service struct {
	store    data.Store
	now      func() time.Time
	loanDays int
	metrics  Recorder
	logger   *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLoanPeriod(days int) Option {
	return func(s *Service) { s.loanDays = days }
}

func WithMetrics(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store data.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		now:      time.Now,
		loanDays: DefaultLoanPeriodDays,
		metrics:  nopRecorder{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the UTC calendar date of the service clock. Every due-date and
// overdue decision uses it.
func (s *Service) Today() data.Date {
	return data.DateOf(s.now())
}

// Checkout lends one copy of a book to a user. Checks run in order and the
// first failure wins: input, user, book, duplicate active checkout, copies.
func (s *Service) Checkout(ctx context.Context, input data.CheckoutInput) (*data.Checkout, error) {
	v := validator.New()
	v.CheckStruct(input)
	if !v.Valid() {
		return nil, data.ValidationFailed(v.Errors)
	}

	today := s.Today()
	var (
		checkout *data.Checkout
		reason   string
	)

	err := s.store.Atomically(ctx, func(tx data.Store) error {
		if err := requireUser(ctx, tx, input.UserID); err != nil {
			return err
		}

		// The book row lock serialises concurrent checkouts of the same book.
		book, err := tx.Books().GetForUpdate(ctx, input.BookID)
		if err != nil {
			return lookupError(err, "book", input.BookID)
		}

		_, err = tx.Checkouts().GetActiveForUpdate(ctx, input.UserID, input.BookID)
		switch {
		case err == nil:
			reason = reasonDuplicate
			return data.Conflict("user %d already has book %d checked out", input.UserID, input.BookID)
		case !errors.Is(err, data.ErrRecordNotFound):
			return data.StoreFailure("find active checkout", err)
		}

		if book.AvailableCopies <= 0 {
			reason = reasonNoCopies
			return data.Conflict("no copies of book %d are available", book.ID)
		}

		if err := tx.Books().AdjustCopies(ctx, book.ID, -1); err != nil {
			if errors.Is(err, data.ErrNoCopiesAvailable) {
				reason = reasonNoCopies
				return data.Conflict("no copies of book %d are available", book.ID)
			}
			return data.StoreFailure("decrement available copies", err)
		}

		checkout = &data.Checkout{
			UserID:       input.UserID,
			BookID:       input.BookID,
			CheckoutDate: today,
			ReturnDate:   today.AddDays(s.loanDays),
		}
		if err := tx.Checkouts().Insert(ctx, checkout); err != nil {
			return data.StoreFailure("insert checkout", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("checkout", reason, err)
	}

	s.metrics.RecordCheckout()
	s.logger.Info("book checked out",
		slog.Int64("checkout_id", checkout.ID),
		slog.Int64("user_id", checkout.UserID),
		slog.Int64("book_id", checkout.BookID),
		slog.String("due", checkout.ReturnDate.String()),
	)
	return checkout, nil
}

// ReturnByID closes the checkout with the given id. Returning an already
// returned checkout is a conflict and leaves the copy count untouched.
func (s *Service) ReturnByID(ctx context.Context, id int64) (*data.Checkout, error) {
	if id < 1 {
		return nil, data.InvalidField("id", "must be a positive integer")
	}

	today := s.Today()
	var (
		checkout *data.Checkout
		reason   string
	)

	err := s.store.Atomically(ctx, func(tx data.Store) error {
		c, err := tx.Checkouts().GetForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, "checkout", id)
		}
		if c.Returned {
			reason = reasonReturned
			return data.Conflict("checkout %d has already been returned", id)
		}

		checkout = c
		return markReturned(ctx, tx, c, today)
	})
	if err != nil {
		return nil, s.fail("return checkout", reason, err)
	}

	s.recordReturn("id", checkout)
	return checkout, nil
}

// ReturnByUserAndBook closes the active checkout of the book by the user.
// With no active checkout the result is NotFound, including when the pair
// was checked out and already returned.
func (s *Service) ReturnByUserAndBook(ctx context.Context, input data.CheckoutInput) (*data.Checkout, error) {
	v := validator.New()
	v.CheckStruct(input)
	if !v.Valid() {
		return nil, data.ValidationFailed(v.Errors)
	}

	today := s.Today()
	var (
		checkout *data.Checkout
		reason   string
	)

	err := s.store.Atomically(ctx, func(tx data.Store) error {
		if err := requireUser(ctx, tx, input.UserID); err != nil {
			return err
		}
		if _, err := tx.Books().GetForUpdate(ctx, input.BookID); err != nil {
			return lookupError(err, "book", input.BookID)
		}

		c, err := tx.Checkouts().GetActiveForUpdate(ctx, input.UserID, input.BookID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				reason = reasonNoActive
				return data.NotFound("user %d has no active checkout of book %d", input.UserID, input.BookID)
			}
			return data.StoreFailure("find active checkout", err)
		}

		checkout = c
		return markReturned(ctx, tx, c, today)
	})
	if err != nil {
		return nil, s.fail("return book", reason, err)
	}

	s.recordReturn("pair", checkout)
	return checkout, nil
}

func markReturned(ctx context.Context, tx data.Store, c *data.Checkout, today data.Date) error {
	c.Returned = true
	c.ReturnedDate = &today
	if err := tx.Checkouts().MarkReturned(ctx, c); err != nil {
		return data.StoreFailure("mark checkout returned", err)
	}
	if err := tx.Books().AdjustCopies(ctx, c.BookID, 1); err != nil {
		return data.StoreFailure("increment available copies", err)
	}
	return nil
}

func (s *Service) recordReturn(method string, c *data.Checkout) {
	s.metrics.RecordReturn(method)
	s.logger.Info("book returned",
		slog.Int64("checkout_id", c.ID),
		slog.Int64("user_id", c.UserID),
		slog.Int64("book_id", c.BookID),
		slog.String("method", method),
	)
}

// fail normalises err to *data.Error and reports business-rule rejections.
func (s *Service) fail(op, reason string, err error) error {
	var de *data.Error
	if !errors.As(err, &de) {
		return data.StoreFailure(op, err)
	}
	if reason != "" && de.Kind != data.KindStoreFailure {
		s.metrics.RecordRejection(reason)
	}
	return err
}

func requireUser(ctx context.Context, tx data.Store, id int64) error {
	if _, err := tx.Users().Get(ctx, id); err != nil {
		return lookupError(err, "user", id)
	}
	return nil
}

func lookupError(err error, entity string, id int64) error {
	if errors.Is(err, data.ErrRecordNotFound) {
		return data.NotFound("%s %d not found", entity, id)
	}
	return data.StoreFailure("get "+entity, err)
}
