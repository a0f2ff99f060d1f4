package data

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookFilter_Matches(t *testing.T) {
	book := &Book{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780261103344"}

	assert.True(t, BookFilter{}.Matches(book))
	assert.True(t, BookFilter{Title: "Hob"}.Matches(book))
	assert.True(t, BookFilter{Title: "Hobbit", Author: "Tolkien"}.Matches(book))
	assert.False(t, BookFilter{Title: "hobbit"}.Matches(book), "matching is case-sensitive")
	assert.False(t, BookFilter{Title: "Hobbit", ISBN: "111"}.Matches(book))
}

func TestBookFilter_SQL(t *testing.T) {
	query, args, err := dialect.From("books").
		Where(BookFilter{Title: "50%_off", Author: "Tolkien"}.expressions()...).
		Prepared(true).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, query, `"title" LIKE $1`)
	assert.Contains(t, query, `"author" LIKE $2`)
	assert.Equal(t, []any{`%50\%\_off%`, "%Tolkien%"}, args)
}

func TestCheckoutFilter_Matches(t *testing.T) {
	today := MustParseDate("2023-11-01")
	active := &Checkout{UserID: 1, BookID: 2, CheckoutDate: MustParseDate("2023-10-20"), ReturnDate: MustParseDate("2023-10-27")}
	returnedOn := MustParseDate("2023-10-25")
	returned := &Checkout{UserID: 1, BookID: 3, CheckoutDate: MustParseDate("2023-10-18"), ReturnDate: MustParseDate("2023-10-25"), Returned: true, ReturnedDate: &returnedOn}

	assert.True(t, CheckoutFilter{}.ForUser(1).Matches(active))
	assert.False(t, CheckoutFilter{}.ForUser(2).Matches(active))
	assert.True(t, CheckoutFilter{}.ForBook(3).Matches(returned))

	assert.True(t, CheckoutFilter{}.Active().Matches(active))
	assert.False(t, CheckoutFilter{}.Active().Matches(returned))

	assert.True(t, CheckoutFilter{}.Overdue(today).Matches(active))
	assert.False(t, CheckoutFilter{}.Overdue(today).Matches(returned))
	assert.False(t, CheckoutFilter{}.Overdue(MustParseDate("2023-10-27")).Matches(active), "due today is not overdue")

	window := CheckoutFilter{}.Between(MustParseDate("2023-10-20"), MustParseDate("2023-10-31"))
	assert.True(t, window.Matches(active), "lower bound is inclusive")
	assert.False(t, window.Matches(returned))
	assert.True(t, CheckoutFilter{}.Between(MustParseDate("2023-10-01"), MustParseDate("2023-10-20")).Matches(active), "upper bound is inclusive")
}

func TestCheckoutFilter_BuildersDoNotAlias(t *testing.T) {
	base := CheckoutFilter{}.ForUser(1)
	a := base.ForBook(2)
	b := base.ForBook(3)

	assert.Nil(t, base.BookID)
	assert.Equal(t, int64(2), *a.BookID)
	assert.Equal(t, int64(3), *b.BookID)
}

func TestCheckoutFilter_SQL(t *testing.T) {
	today := MustParseDate("2023-11-01")
	query, args, err := detailQuery().
		Where(CheckoutFilter{}.ForUser(7).Overdue(today).expressions()...).
		Prepared(true).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, query, `INNER JOIN "users" AS "u"`)
	assert.Contains(t, query, `INNER JOIN "books" AS "b"`)
	assert.Contains(t, query, `"c"."returned" IS FALSE`)
	assert.Contains(t, query, `"c"."return_date" < $2`)
	assert.Equal(t, []any{int64(7), "2023-11-01"}, args)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, `%a\\b%`, containsPattern(`a\b`))
	assert.Equal(t, "%plain%", containsPattern("plain"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(InvalidField("isbn", "must be provided")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", NotFound("book %d not found", 3))))
	assert.Equal(t, KindConflict, KindOf(Conflict("dup")))
	assert.Equal(t, KindStoreFailure, KindOf(errors.New("boom")))

	cause := errors.New("connection reset")
	err := StoreFailure("insert book", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert book: connection reset", err.Error())
	assert.Equal(t, "not_found", KindNotFound.String())
}
