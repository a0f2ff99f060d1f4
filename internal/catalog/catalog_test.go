package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/library-api/internal/data"
	"github.com/aoideee/library-api/internal/data/memstore"
	"github.com/aoideee/library-api/internal/lending"
)

var now = time.Date(2023, time.October, 20, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func newService(t *testing.T) (*Service, *lending.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New(memstore.WithClock(clock))
	lend := lending.NewService(store, lending.WithClock(clock))
	return NewService(store, lend, WithClock(clock)), lend, store
}

func ptr[T any](v T) *T { return &v }

func hobbit() data.CreateBookInput {
	return data.CreateBookInput{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780544003415", AvailableCopies: ptr(1)}
}

func TestCreate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	book, err := svc.Create(ctx, hobbit())
	require.NoError(t, err)
	assert.Positive(t, book.ID)
	assert.Equal(t, 1, book.AvailableCopies)
	assert.Equal(t, "2023-10-20", book.RegistrationDate.String())

	_, err = svc.Create(ctx, hobbit())
	assert.Equal(t, data.KindConflict, data.KindOf(err))
}

func TestCreate_DefaultsToOneCopy(t *testing.T) {
	svc, _, _ := newService(t)

	book, err := svc.Create(context.Background(), data.CreateBookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "0441013597"})
	require.NoError(t, err)
	assert.Equal(t, DefaultCopies, book.AvailableCopies)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newService(t)

	tests := []struct {
		name   string
		input  data.CreateBookInput
		fields map[string]string
	}{
		{
			name:  "everything missing",
			input: data.CreateBookInput{},
			fields: map[string]string{
				"title":  "must be provided",
				"author": "must be provided",
				"isbn":   "must be provided",
			},
		},
		{
			name:   "isbn length",
			input:  data.CreateBookInput{Title: "T", Author: "A", ISBN: "12345"},
			fields: map[string]string{"isbn": "must be 10 or 13 characters long"},
		},
		{
			name:   "negative copies",
			input:  data.CreateBookInput{Title: "T", Author: "A", ISBN: "1234567890", AvailableCopies: ptr(-1)},
			fields: map[string]string{"available_copies": "must be at least 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)

			var de *data.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, data.KindValidation, de.Kind)
			assert.Equal(t, tt.fields, de.Fields)
		})
	}
}

func TestUpdate_Partial(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	book, err := svc.Create(ctx, hobbit())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, book.ID, data.UpdateBookInput{AvailableCopies: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.AvailableCopies)
	assert.Equal(t, "The Hobbit", updated.Title)

	// Keeping its own ISBN is not a conflict.
	_, err = svc.Update(ctx, book.ID, data.UpdateBookInput{ISBN: ptr("9780544003415"), Title: ptr("The Hobbit (75th)")})
	require.NoError(t, err)

	got, err := svc.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit (75th)", got.Title)
}

func TestUpdate_Errors(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	book, err := svc.Create(ctx, hobbit())
	require.NoError(t, err)
	dune, err := svc.Create(ctx, data.CreateBookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "0441013597"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, dune.ID, data.UpdateBookInput{ISBN: ptr(book.ISBN)})
	assert.Equal(t, data.KindConflict, data.KindOf(err))

	_, err = svc.Update(ctx, book.ID, data.UpdateBookInput{Title: ptr("")})
	assert.Equal(t, data.KindValidation, data.KindOf(err))

	_, err = svc.Update(ctx, book.ID, data.UpdateBookInput{AvailableCopies: ptr(-2)})
	assert.Equal(t, data.KindValidation, data.KindOf(err))

	_, err = svc.Update(ctx, 999, data.UpdateBookInput{Title: ptr("X")})
	assert.Equal(t, data.KindNotFound, data.KindOf(err))

	got, err := svc.Get(ctx, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, "0441013597", got.ISBN, "rejected updates leave the book untouched")
}

func TestDelete(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	book, err := svc.Create(ctx, hobbit())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, book.ID))
	assert.Equal(t, data.KindNotFound, data.KindOf(svc.Delete(ctx, book.ID)))

	_, err = svc.Get(ctx, book.ID)
	assert.Equal(t, data.KindNotFound, data.KindOf(err))
}

func TestDeleteAll(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, hobbit())
	require.NoError(t, err)
	_, err = svc.Create(ctx, data.CreateBookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "0441013597"})
	require.NoError(t, err)

	n, err := svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	books, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestSearch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, hobbit())
	require.NoError(t, err)
	_, err = svc.Create(ctx, data.CreateBookInput{Title: "The Silmarillion", Author: "J.R.R. Tolkien", ISBN: "9780261102736"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, data.CreateBookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "0441013597"})
	require.NoError(t, err)

	_, err = svc.Search(ctx, data.BookFilter{})
	assert.Equal(t, data.KindValidation, data.KindOf(err))

	found, err := svc.Search(ctx, data.BookFilter{Title: "Hobbit"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "The Hobbit", found[0].Title)

	found, err = svc.Search(ctx, data.BookFilter{Title: "hobbit"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = svc.Search(ctx, data.BookFilter{Author: "Tolkien"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = svc.Search(ctx, data.BookFilter{Author: "Tolkien", Title: "Silm"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestListCheckouts(t *testing.T) {
	svc, lend, store := newService(t)
	ctx := context.Background()
	book, err := svc.Create(ctx, hobbit())
	require.NoError(t, err)

	user := &data.User{Name: "John Doe", Email: "john@gmail.com"}
	require.NoError(t, store.Users().Insert(ctx, user))
	_, err = lend.Checkout(ctx, data.CheckoutInput{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	history, err := svc.ListCheckouts(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "John Doe", history[0].User.Name)

	_, err = svc.ListCheckouts(ctx, 42)
	assert.Equal(t, data.KindNotFound, data.KindOf(err))
}
