// Package analytics summarises and exports borrowing activity over a period
// of checkout dates.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aoideee/library-api/internal/data"
	"github.com/aoideee/library-api/internal/validator"
)

// EpochStart is the default start of a period.
var EpochStart = data.NewDate(1970, time.January, 1)

// Period is an inclusive range of checkout dates.
type Period struct {
	Start data.Date `json:"start"`
	End   data.Date `json:"end"`
}

// Summary is the aggregate view of a period.
type Summary struct {
	Period Period `json:"period"`

	NoOfBorrowings    int `json:"no_of_borrowings"`
	NoOfReturns       int `json:"no_of_returns"`
	NoOfNotReturned   int `json:"no_of_not_returned"`
	NoOfOverdues      int `json:"no_of_overdues"`
	NoOfUsersBorrowed int `json:"no_of_users_borrowed"`
	NoOfBooksBorrowed int `json:"no_of_books_borrowed"`

	Borrowings         []*data.CheckoutDetail `json:"borrowings"`
	Returns            []*data.CheckoutDetail `json:"returns"`
	NotReturned        []*data.CheckoutDetail `json:"not_returned"`
	Overdues           []*data.CheckoutDetail `json:"overdues"`
	UsersBorrowedBooks []int64                `json:"users_borrowed_books"`
	BooksBorrowed      []int64                `json:"books_borrowed"`
}

// Table is a rectangular export ready to be written as CSV.
type Table struct {
	Filename string
	Header   []string
	Rows     [][]string
}

var checkoutHeader = []string{
	"id", "user id", "book id", "checkout date", "return date", "returned",
	"returned date", "overdue", "user name", "user email", "book title",
	"book author", "book ISBN",
}

var statsHeader = []string{
	"period start", "period end", "no of borrowings", "no of returns",
	"no of not returned", "no of overdues", "no of users borrowed",
	"no of books borrowed",
}

const notReturnedYet = "has not been returned yet"

type Service struct {
	store data.Store
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store data.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() data.Date {
	return data.DateOf(s.now())
}

// Aggregate summarises checkouts whose checkout date lies in [start, end].
// Empty bounds default to 1970-01-01 and today.
func (s *Service) Aggregate(ctx context.Context, start, end string) (*Summary, error) {
	period, err := s.parsePeriod(start, end)
	if err != nil {
		return nil, err
	}

	today := s.today()
	rows, err := s.fetch(ctx, data.CheckoutFilter{}.Between(period.Start, period.End), today)
	if err != nil {
		return nil, err
	}
	return summarize(period, rows, today), nil
}

// Export is Aggregate flattened into the 21-column table. The period
// statistics occupy the last eight columns of the first data row only.
func (s *Service) Export(ctx context.Context, start, end string) (*Table, error) {
	summary, err := s.Aggregate(ctx, start, end)
	if err != nil {
		return nil, err
	}

	header := make([]string, 0, len(checkoutHeader)+len(statsHeader))
	header = append(header, checkoutHeader...)
	header = append(header, statsHeader...)

	table := &Table{
		Filename: filename(summary.Period),
		Header:   header,
		Rows:     make([][]string, 0, len(summary.Borrowings)),
	}
	for i, c := range summary.Borrowings {
		row := checkoutRecord(c)
		if i == 0 {
			row = append(row, summary.stats()...)
		} else {
			row = append(row, make([]string, len(statsHeader))...)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ExportLastMonthOverdue lists the overdue checkouts made between one
// month ago and today.
func (s *Service) ExportLastMonthOverdue(ctx context.Context) (*Table, error) {
	today := s.today()
	period := lastMonth(today)
	return s.exportPlain(ctx, period, data.CheckoutFilter{}.Between(period.Start, period.End).Overdue(today), today)
}

// ExportLastMonthBorrowings lists every checkout made between one month ago
// and today.
func (s *Service) ExportLastMonthBorrowings(ctx context.Context) (*Table, error) {
	today := s.today()
	period := lastMonth(today)
	return s.exportPlain(ctx, period, data.CheckoutFilter{}.Between(period.Start, period.End), today)
}

func (s *Service) exportPlain(ctx context.Context, period Period, filter data.CheckoutFilter, today data.Date) (*Table, error) {
	rows, err := s.fetch(ctx, filter, today)
	if err != nil {
		return nil, err
	}

	table := &Table{
		Filename: filename(period),
		Header:   append([]string(nil), checkoutHeader...),
		Rows:     make([][]string, 0, len(rows)),
	}
	for _, c := range rows {
		table.Rows = append(table.Rows, checkoutRecord(c))
	}
	return table, nil
}

func (s *Service) fetch(ctx context.Context, filter data.CheckoutFilter, today data.Date) ([]*data.CheckoutDetail, error) {
	rows, err := s.store.Checkouts().GetAll(ctx, filter)
	if err != nil {
		return nil, data.StoreFailure("list checkouts for period", err)
	}
	data.MarkOverdue(rows, today)
	return rows, nil
}

func (s *Service) parsePeriod(start, end string) (Period, error) {
	if start == "" {
		start = EpochStart.String()
	}
	if end == "" {
		end = s.today().String()
	}

	v := validator.New()
	v.Check(validator.Matches(start, validator.DateRX), "start", "must be a date in YYYY-MM-DD format")
	v.Check(validator.Matches(end, validator.DateRX), "end", "must be a date in YYYY-MM-DD format")

	startDate, err := data.ParseDate(start)
	v.Check(err == nil, "start", "must be a valid calendar date")
	endDate, err := data.ParseDate(end)
	v.Check(err == nil, "end", "must be a valid calendar date")

	if !v.Valid() {
		return Period{}, data.ValidationFailed(v.Errors)
	}
	if startDate.After(endDate) {
		return Period{}, data.InvalidField("start", "must not be after end")
	}
	return Period{Start: startDate, End: endDate}, nil
}

func lastMonth(today data.Date) Period {
	return Period{Start: today.AddMonths(-1), End: today}
}

func filename(p Period) string {
	return fmt.Sprintf("%s-%s-borrowing-data.csv", p.Start, p.End)
}

// summarize derives the period statistics from rows. Distinct ids keep the
// order in which they first appear.
func summarize(period Period, rows []*data.CheckoutDetail, today data.Date) *Summary {
	s := &Summary{
		Period:             period,
		Borrowings:         rows,
		Returns:            []*data.CheckoutDetail{},
		NotReturned:        []*data.CheckoutDetail{},
		Overdues:           []*data.CheckoutDetail{},
		UsersBorrowedBooks: []int64{},
		BooksBorrowed:      []int64{},
	}
	if s.Borrowings == nil {
		s.Borrowings = []*data.CheckoutDetail{}
	}

	seenUsers := make(map[int64]struct{})
	seenBooks := make(map[int64]struct{})

	for _, c := range rows {
		if c.ReturnedDate != nil {
			s.Returns = append(s.Returns, c)
		} else {
			s.NotReturned = append(s.NotReturned, c)
		}
		if c.IsOverdue(today) {
			s.Overdues = append(s.Overdues, c)
		}
		if _, ok := seenUsers[c.UserID]; !ok {
			seenUsers[c.UserID] = struct{}{}
			s.UsersBorrowedBooks = append(s.UsersBorrowedBooks, c.UserID)
		}
		if _, ok := seenBooks[c.BookID]; !ok {
			seenBooks[c.BookID] = struct{}{}
			s.BooksBorrowed = append(s.BooksBorrowed, c.BookID)
		}
	}

	s.NoOfBorrowings = len(s.Borrowings)
	s.NoOfReturns = len(s.Returns)
	s.NoOfNotReturned = len(s.NotReturned)
	s.NoOfOverdues = len(s.Overdues)
	s.NoOfUsersBorrowed = len(s.UsersBorrowedBooks)
	s.NoOfBooksBorrowed = len(s.BooksBorrowed)
	return s
}

func (s *Summary) stats() []string {
	return []string{
		s.Period.Start.String(),
		s.Period.End.String(),
		strconv.Itoa(s.NoOfBorrowings),
		strconv.Itoa(s.NoOfReturns),
		strconv.Itoa(s.NoOfNotReturned),
		strconv.Itoa(s.NoOfOverdues),
		strconv.Itoa(s.NoOfUsersBorrowed),
		strconv.Itoa(s.NoOfBooksBorrowed),
	}
}

func checkoutRecord(c *data.CheckoutDetail) []string {
	returnedDate := notReturnedYet
	if c.ReturnedDate != nil {
		returnedDate = c.ReturnedDate.String()
	}
	return []string{
		strconv.FormatInt(c.ID, 10),
		strconv.FormatInt(c.UserID, 10),
		strconv.FormatInt(c.BookID, 10),
		c.CheckoutDate.String(),
		c.ReturnDate.String(),
		yesNo(c.Returned),
		returnedDate,
		yesNo(c.Overdue),
		c.User.Name,
		c.User.Email,
		c.Book.Title,
		c.Book.Author,
		c.Book.ISBN,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
