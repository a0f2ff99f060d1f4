package directory

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

type fixture struct {
	now   time.Time
	store *memstore.Store
	lend  *lending.Service
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2023, time.October, 20, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.store = memstore.New(memstore.WithClock(clock))
	f.lend = lending.NewService(f.store, lending.WithClock(clock))
	f.svc = NewService(f.store, f.lend, WithClock(clock))
	return f
}

func (f *fixture) book(t *testing.T, title, isbn string) *data.Book {
	t.Helper()
	b := &data.Book{Title: title, Author: "J.R.R. Tolkien", ISBN: isbn, AvailableCopies: 1}
	require.NoError(t, f.store.Books().Insert(context.Background(), b))
	return b
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, data.RegisterUserInput{Name: "John Doe", Email: "john@gmail.com"})
	require.NoError(t, err)
	assert.Positive(t, user.ID)
	assert.Equal(t, "2023-10-20", user.RegistrationDate.String())

	_, err = f.svc.Register(ctx, data.RegisterUserInput{Name: "Johnny", Email: "john@gmail.com"})
	assert.Equal(t, data.KindConflict, data.KindOf(err))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		input  data.RegisterUserInput
		fields map[string]string
	}{
		{"empty", data.RegisterUserInput{}, map[string]string{"name": "must be provided", "email": "must be provided"}},
		{"bad email", data.RegisterUserInput{Name: "John", Email: "john@gmail"}, map[string]string{"email": "must be a valid email address"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.input)

			var de *data.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.fields, de.Fields)
		})
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john, err := f.svc.Register(ctx, data.RegisterUserInput{Name: "John Doe", Email: "john@gmail.com"})
	require.NoError(t, err)
	jane, err := f.svc.Register(ctx, data.RegisterUserInput{Name: "Jane Roe", Email: "jane@gmail.com"})
	require.NoError(t, err)

	name := "John Q. Doe"
	updated, err := f.svc.Update(ctx, john.ID, data.UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "John Q. Doe", updated.Name)
	assert.Equal(t, "john@gmail.com", updated.Email)

	taken := "jane@gmail.com"
	_, err = f.svc.Update(ctx, john.ID, data.UpdateUserInput{Email: &taken})
	assert.Equal(t, data.KindConflict, data.KindOf(err))

	bad := "not-an-email"
	_, err = f.svc.Update(ctx, jane.ID, data.UpdateUserInput{Email: &bad})
	assert.Equal(t, data.KindValidation, data.KindOf(err))

	_, err = f.svc.Update(ctx, 404, data.UpdateUserInput{Name: &name})
	assert.Equal(t, data.KindNotFound, data.KindOf(err))
}

func TestDelete_CascadesCheckouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.Register(ctx, data.RegisterUserInput{Name: "John Doe", Email: "john@gmail.com"})
	require.NoError(t, err)
	book := f.book(t, "The Hobbit", "9780544003415")

	_, err = f.lend.Checkout(ctx, data.CheckoutInput{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, user.ID))
	assert.Equal(t, data.KindNotFound, data.KindOf(f.svc.Delete(ctx, user.ID)))

	all, err := f.lend.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPerUserQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.Register(ctx, data.RegisterUserInput{Name: "John Doe", Email: "john@gmail.com"})
	require.NoError(t, err)
	hobbit := f.book(t, "The Hobbit", "9780544003415")
	dune := f.book(t, "Dune", "0441013597")
	silm := f.book(t, "The Silmarillion", "9780261102736")

	early, err := f.lend.Checkout(ctx, data.CheckoutInput{UserID: user.ID, BookID: hobbit.ID})
	require.NoError(t, err)
	returned, err := f.lend.Checkout(ctx, data.CheckoutInput{UserID: user.ID, BookID: dune.ID})
	require.NoError(t, err)
	_, err = f.lend.ReturnByID(ctx, returned.ID)
	require.NoError(t, err)

	f.now = f.now.Add(5 * 24 * time.Hour)
	_, err = f.lend.Checkout(ctx, data.CheckoutInput{UserID: user.ID, BookID: silm.ID})
	require.NoError(t, err)
	f.now = f.now.Add(5 * 24 * time.Hour)

	history, err := f.svc.ListCheckouts(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	open, err := f.svc.ListOpenBooks(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	overdue, err := f.svc.ListOverdue(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, early.ID, overdue[0].ID)

	for _, query := range []func(context.Context, int64) ([]*data.CheckoutDetail, error){
		f.svc.ListCheckouts, f.svc.ListOpenBooks, f.svc.ListOverdue,
	} {
		_, err := query(ctx, 999)
		assert.Equal(t, data.KindNotFound, data.KindOf(err))
	}
}
