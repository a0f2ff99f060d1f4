package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// Checkout is one lending of one book copy to one user. ReturnedDate is
// set exactly when Returned is true.
type Checkout struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	BookID       int64     `json:"book_id" db:"book_id"`
	CheckoutDate Date      `json:"checkout_date" db:"checkout_date"`
	ReturnDate   Date      `json:"return_date" db:"return_date"` // due date
	Returned     bool      `json:"returned" db:"returned"`
	ReturnedDate *Date     `json:"returned_date" db:"returned_date"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsOverdue reports whether c is still out and its due date is before today.
func (c *Checkout) IsOverdue(today Date) bool {
	return !c.Returned && c.ReturnDate.Before(today)
}

// CheckoutDetail is a checkout together with its borrower and book.
type CheckoutDetail struct {
	Checkout
	Overdue bool        `json:"overdue"`
	User    UserSummary `json:"user"`
	Book    BookSummary `json:"book"`
}

// MarkOverdue sets the Overdue flag of every detail relative to today.
func MarkOverdue(details []*CheckoutDetail, today Date) {
	for _, d := range details {
		d.Overdue = d.IsOverdue(today)
	}
}

type CheckoutInput struct {
	UserID int64 `json:"user_id" validate:"required,min=1"`
	BookID int64 `json:"book_id" validate:"required,min=1"`
}

// CheckoutFilter narrows a checkout listing. Nil fields place no
// constraint; date bounds are inclusive except DueBefore.
type CheckoutFilter struct {
	UserID         *int64
	BookID         *int64
	Returned       *bool
	DueBefore      *Date
	CheckedOutFrom *Date
	CheckedOutTo   *Date
}

func (f CheckoutFilter) ForUser(id int64) CheckoutFilter {
	f.UserID = &id
	return f
}

func (f CheckoutFilter) ForBook(id int64) CheckoutFilter {
	f.BookID = &id
	return f
}

// Active keeps only checkouts that have not been returned.
func (f CheckoutFilter) Active() CheckoutFilter {
	returned := false
	f.Returned = &returned
	return f
}

// Overdue keeps only active checkouts due before today.
func (f CheckoutFilter) Overdue(today Date) CheckoutFilter {
	f = f.Active()
	f.DueBefore = &today
	return f
}

// Between keeps checkouts whose checkout date lies in [from, to].
func (f CheckoutFilter) Between(from, to Date) CheckoutFilter {
	f.CheckedOutFrom = &from
	f.CheckedOutTo = &to
	return f
}

// Matches is the in-process equivalent of the SQL the CheckoutModel generates.
func (f CheckoutFilter) Matches(c *Checkout) bool {
	switch {
	case f.UserID != nil && c.UserID != *f.UserID:
		return false
	case f.BookID != nil && c.BookID != *f.BookID:
		return false
	case f.Returned != nil && c.Returned != *f.Returned:
		return false
	case f.DueBefore != nil && !c.ReturnDate.Before(*f.DueBefore):
		return false
	case f.CheckedOutFrom != nil && c.CheckoutDate.Before(*f.CheckedOutFrom):
		return false
	case f.CheckedOutTo != nil && c.CheckoutDate.After(*f.CheckedOutTo):
		return false
	}
	return true
}

func (f CheckoutFilter) expressions() []exp.Expression {
	var where []exp.Expression
	if f.UserID != nil {
		where = append(where, goqu.I("c.user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		where = append(where, goqu.I("c.book_id").Eq(*f.BookID))
	}
	if f.Returned != nil {
		where = append(where, goqu.I("c.returned").Eq(*f.Returned))
	}
	if f.DueBefore != nil {
		where = append(where, goqu.I("c.return_date").Lt(*f.DueBefore))
	}
	if f.CheckedOutFrom != nil {
		where = append(where, goqu.I("c.checkout_date").Gte(*f.CheckedOutFrom))
	}
	if f.CheckedOutTo != nil {
		where = append(where, goqu.I("c.checkout_date").Lte(*f.CheckedOutTo))
	}
	return where
}

var checkoutColumns = []any{
	"id", "user_id", "book_id", "checkout_date", "return_date", "returned", "returned_date", "created_at", "updated_at",
}

// checkoutRow is the flat shape of the checkouts/users/books join.
type checkoutRow struct {
	Checkout
	UserName   string `db:"user_name"`
	UserEmail  string `db:"user_email"`
	BookTitle  string `db:"book_title"`
	BookAuthor string `db:"book_author"`
	BookISBN   string `db:"book_isbn"`
}

func (r *checkoutRow) detail() *CheckoutDetail {
	return &CheckoutDetail{
		Checkout: r.Checkout,
		User:     UserSummary{ID: r.UserID, Name: r.UserName, Email: r.UserEmail},
		Book:     BookSummary{ID: r.BookID, Title: r.BookTitle, Author: r.BookAuthor, ISBN: r.BookISBN},
	}
}

// CheckoutModel runs checkout queries against a pool or an open transaction.
type CheckoutModel struct {
	q sqlx.ExtContext
}

func (m CheckoutModel) Insert(ctx context.Context, checkout *Checkout) error {
	query, args, err := dialect.Insert("checkouts").
		Rows(goqu.Record{
			"user_id":       checkout.UserID,
			"book_id":       checkout.BookID,
			"checkout_date": checkout.CheckoutDate,
			"return_date":   checkout.ReturnDate,
			"returned":      checkout.Returned,
			"returned_date": checkout.ReturnedDate,
		}).
		Returning(checkoutColumns...).
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, m.q, checkout, query, args...)
}

// Get returns the checkout with its user and book summaries.
func (m CheckoutModel) Get(ctx context.Context, id int64) (*CheckoutDetail, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query, args, err := detailQuery().Where(goqu.I("c.id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var row checkoutRow
	if err := sqlx.GetContext(ctx, m.q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return row.detail(), nil
}

// GetForUpdate locks the checkout row for the rest of the transaction.
func (m CheckoutModel) GetForUpdate(ctx context.Context, id int64) (*Checkout, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}
	return m.getLocked(ctx, goqu.C("id").Eq(id))
}

// GetActiveForUpdate locks the oldest unreturned checkout of bookID by userID.
func (m CheckoutModel) GetActiveForUpdate(ctx context.Context, userID, bookID int64) (*Checkout, error) {
	return m.getLocked(ctx,
		goqu.C("user_id").Eq(userID),
		goqu.C("book_id").Eq(bookID),
		goqu.C("returned").IsFalse(),
	)
}

func (m CheckoutModel) getLocked(ctx context.Context, where ...exp.Expression) (*Checkout, error) {
	query, args, err := dialect.From("checkouts").
		Select(checkoutColumns...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		Limit(1).
		ForUpdate(exp.Wait).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var checkout Checkout
	if err := sqlx.GetContext(ctx, m.q, &checkout, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &checkout, nil
}

// MarkReturned persists the Returned and ReturnedDate fields of checkout.
func (m CheckoutModel) MarkReturned(ctx context.Context, checkout *Checkout) error {
	query, args, err := dialect.Update("checkouts").
		Set(goqu.Record{
			"returned":      checkout.Returned,
			"returned_date": checkout.ReturnedDate,
			"updated_at":    goqu.L("CURRENT_TIMESTAMP"),
		}).
		Where(goqu.C("id").Eq(checkout.ID)).
		Returning("updated_at").
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	err = m.q.QueryRowxContext(ctx, query, args...).Scan(&checkout.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	return err
}

// GetAll returns every checkout matching filter with user and book
// summaries, ordered by id.
func (m CheckoutModel) GetAll(ctx context.Context, filter CheckoutFilter) ([]*CheckoutDetail, error) {
	query, args, err := detailQuery().Where(filter.expressions()...).Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []checkoutRow
	if err := sqlx.SelectContext(ctx, m.q, &rows, query, args...); err != nil {
		return nil, err
	}

	details := make([]*CheckoutDetail, 0, len(rows))
	for i := range rows {
		details = append(details, rows[i].detail())
	}
	return details, nil
}

func detailQuery() *goqu.SelectDataset {
	return dialect.From(goqu.T("checkouts").As("c")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("c.user_id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("c.book_id")))).
		Select(
			goqu.I("c.id"),
			goqu.I("c.user_id"),
			goqu.I("c.book_id"),
			goqu.I("c.checkout_date"),
			goqu.I("c.return_date"),
			goqu.I("c.returned"),
			goqu.I("c.returned_date"),
			goqu.I("c.created_at"),
			goqu.I("c.updated_at"),
			goqu.I("u.name").As("user_name"),
			goqu.I("u.email").As("user_email"),
			goqu.I("b.title").As("book_title"),
			goqu.I("b.author").As("book_author"),
			goqu.I("b.isbn").As("book_isbn"),
		).
		Order(goqu.I("c.id").Asc())
}
