package memstore

import (
	"context"
	"time"

	"github.com/aoideee/library-api/internal/data"
)

type users struct {
	run runner
	now func() time.Time
}

func (t users) Insert(_ context.Context, user *data.User) error {
	return t.run(true, func(st *state) error {
		if emailTaken(st, user.Email, 0) {
			return data.ErrDuplicateEmail
		}
		now := t.now()
		user.ID = st.nextUserID
		user.CreatedAt, user.UpdatedAt = now, now
		st.nextUserID++

		cp := *user
		st.users[user.ID] = &cp
		return nil
	})
}

func (t users) Get(_ context.Context, id int64) (*data.User, error) {
	var out *data.User
	err := t.run(false, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return data.ErrRecordNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (t users) GetByEmail(_ context.Context, email string) (*data.User, error) {
	var out *data.User
	err := t.run(false, func(st *state) error {
		for _, id := range sortedIDs(st.users) {
			if u := st.users[id]; u.Email == email {
				cp := *u
				out = &cp
				return nil
			}
		}
		return data.ErrRecordNotFound
	})
	return out, err
}

func (t users) GetAll(_ context.Context) ([]*data.User, error) {
	out := []*data.User{}
	err := t.run(false, func(st *state) error {
		for _, id := range sortedIDs(st.users) {
			cp := *st.users[id]
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (t users) Update(_ context.Context, user *data.User) error {
	return t.run(true, func(st *state) error {
		stored, ok := st.users[user.ID]
		if !ok {
			return data.ErrRecordNotFound
		}
		if emailTaken(st, user.Email, user.ID) {
			return data.ErrDuplicateEmail
		}
		stored.Name = user.Name
		stored.Email = user.Email
		stored.UpdatedAt = t.now()
		user.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (t users) Delete(_ context.Context, id int64) error {
	return t.run(true, func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return data.ErrRecordNotFound
		}
		delete(st.users, id)
		st.deleteCheckoutsWhere(func(c *data.Checkout) bool { return c.UserID == id })
		return nil
	})
}

func emailTaken(st *state, email string, except int64) bool {
	for id, u := range st.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

type books struct {
	run runner
	now func() time.Time
}

func (t books) Insert(_ context.Context, book *data.Book) error {
	return t.run(true, func(st *state) error {
		if isbnTaken(st, book.ISBN, 0) {
			return data.ErrDuplicateISBN
		}
		now := t.now()
		book.ID = st.nextBookID
		book.CreatedAt, book.UpdatedAt = now, now
		st.nextBookID++

		cp := *book
		st.books[book.ID] = &cp
		return nil
	})
}

func (t books) Get(_ context.Context, id int64) (*data.Book, error) {
	var out *data.Book
	err := t.run(false, func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return data.ErrRecordNotFound
		}
		cp := *b
		out = &cp
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: inside Atomically the whole store is
// already exclusively held.
func (t books) GetForUpdate(ctx context.Context, id int64) (*data.Book, error) {
	return t.Get(ctx, id)
}

func (t books) GetByISBN(_ context.Context, isbn string) (*data.Book, error) {
	var out *data.Book
	err := t.run(false, func(st *state) error {
		for _, id := range sortedIDs(st.books) {
			if b := st.books[id]; b.ISBN == isbn {
				cp := *b
				out = &cp
				return nil
			}
		}
		return data.ErrRecordNotFound
	})
	return out, err
}

func (t books) GetAll(_ context.Context, filter data.BookFilter) ([]*data.Book, error) {
	out := []*data.Book{}
	err := t.run(false, func(st *state) error {
		for _, id := range sortedIDs(st.books) {
			if b := st.books[id]; filter.Matches(b) {
				cp := *b
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

func (t books) Update(_ context.Context, book *data.Book) error {
	return t.run(true, func(st *state) error {
		stored, ok := st.books[book.ID]
		if !ok {
			return data.ErrRecordNotFound
		}
		if isbnTaken(st, book.ISBN, book.ID) {
			return data.ErrDuplicateISBN
		}
		stored.Title = book.Title
		stored.Author = book.Author
		stored.ISBN = book.ISBN
		stored.AvailableCopies = book.AvailableCopies
		stored.UpdatedAt = t.now()
		book.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (t books) AdjustCopies(_ context.Context, id int64, delta int) error {
	return t.run(true, func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return data.ErrRecordNotFound
		}
		if b.AvailableCopies+delta < 0 {
			return data.ErrNoCopiesAvailable
		}
		b.AvailableCopies += delta
		b.UpdatedAt = t.now()
		return nil
	})
}

func (t books) Delete(_ context.Context, id int64) error {
	return t.run(true, func(st *state) error {
		if _, ok := st.books[id]; !ok {
			return data.ErrRecordNotFound
		}
		delete(st.books, id)
		st.deleteCheckoutsWhere(func(c *data.Checkout) bool { return c.BookID == id })
		return nil
	})
}

func (t books) DeleteAll(_ context.Context) (int64, error) {
	var n int64
	err := t.run(true, func(st *state) error {
		n = int64(len(st.books))
		clear(st.books)
		clear(st.checkouts)
		return nil
	})
	return n, err
}

func isbnTaken(st *state, isbn string, except int64) bool {
	for id, b := range st.books {
		if id != except && b.ISBN == isbn {
			return true
		}
	}
	return false
}

type checkouts struct {
	run runner
	now func() time.Time
}

func (t checkouts) Insert(_ context.Context, checkout *data.Checkout) error {
	return t.run(true, func(st *state) error {
		if _, ok := st.users[checkout.UserID]; !ok {
			return data.ErrRecordNotFound
		}
		if _, ok := st.books[checkout.BookID]; !ok {
			return data.ErrRecordNotFound
		}
		now := t.now()
		checkout.ID = st.nextCheckoutID
		checkout.CreatedAt, checkout.UpdatedAt = now, now
		st.nextCheckoutID++

		st.checkouts[checkout.ID] = copyCheckout(checkout)
		return nil
	})
}

func (t checkouts) Get(_ context.Context, id int64) (*data.CheckoutDetail, error) {
	var out *data.CheckoutDetail
	err := t.run(false, func(st *state) error {
		c, ok := st.checkouts[id]
		if !ok {
			return data.ErrRecordNotFound
		}
		out = detail(st, c)
		return nil
	})
	return out, err
}

func (t checkouts) GetForUpdate(_ context.Context, id int64) (*data.Checkout, error) {
	var out *data.Checkout
	err := t.run(false, func(st *state) error {
		c, ok := st.checkouts[id]
		if !ok {
			return data.ErrRecordNotFound
		}
		out = copyCheckout(c)
		return nil
	})
	return out, err
}

func (t checkouts) GetActiveForUpdate(_ context.Context, userID, bookID int64) (*data.Checkout, error) {
	var out *data.Checkout
	err := t.run(false, func(st *state) error {
		for _, id := range sortedIDs(st.checkouts) {
			c := st.checkouts[id]
			if c.UserID == userID && c.BookID == bookID && !c.Returned {
				out = copyCheckout(c)
				return nil
			}
		}
		return data.ErrRecordNotFound
	})
	return out, err
}

func (t checkouts) MarkReturned(_ context.Context, checkout *data.Checkout) error {
	return t.run(true, func(st *state) error {
		stored, ok := st.checkouts[checkout.ID]
		if !ok {
			return data.ErrRecordNotFound
		}
		stored.Returned = checkout.Returned
		stored.ReturnedDate = nil
		if checkout.ReturnedDate != nil {
			d := *checkout.ReturnedDate
			stored.ReturnedDate = &d
		}
		stored.UpdatedAt = t.now()
		checkout.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (t checkouts) GetAll(_ context.Context, filter data.CheckoutFilter) ([]*data.CheckoutDetail, error) {
	out := []*data.CheckoutDetail{}
	err := t.run(false, func(st *state) error {
		for _, id := range sortedIDs(st.checkouts) {
			if c := st.checkouts[id]; filter.Matches(c) {
				out = append(out, detail(st, c))
			}
		}
		return nil
	})
	return out, err
}

func detail(st *state, c *data.Checkout) *data.CheckoutDetail {
	d := &data.CheckoutDetail{Checkout: *copyCheckout(c)}
	if u, ok := st.users[c.UserID]; ok {
		d.User = u.Summary()
	}
	if b, ok := st.books[c.BookID]; ok {
		d.Book = b.Summary()
	}
	return d
}
