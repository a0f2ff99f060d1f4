// Package memstore implements data.Store in process memory. It backs the
// -store=memory mode and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aoideee/library-api/internal/data"
)

type state struct {
	users     map[int64]*data.User
	books     map[int64]*data.Book
	checkouts map[int64]*data.Checkout

	nextUserID     int64
	nextBookID     int64
	nextCheckoutID int64
}

func newState() *state {
	return &state{
		users:          make(map[int64]*data.User),
		books:          make(map[int64]*data.Book),
		checkouts:      make(map[int64]*data.Checkout),
		nextUserID:     1,
		nextBookID:     1,
		nextCheckoutID: 1,
	}
}

func (st *state) clone() *state {
	next := &state{
		users:          make(map[int64]*data.User, len(st.users)),
		books:          make(map[int64]*data.Book, len(st.books)),
		checkouts:      make(map[int64]*data.Checkout, len(st.checkouts)),
		nextUserID:     st.nextUserID,
		nextBookID:     st.nextBookID,
		nextCheckoutID: st.nextCheckoutID,
	}
	for id, u := range st.users {
		cp := *u
		next.users[id] = &cp
	}
	for id, b := range st.books {
		cp := *b
		next.books[id] = &cp
	}
	for id, c := range st.checkouts {
		next.checkouts[id] = copyCheckout(c)
	}
	return next
}

// runner executes fn with shared (write=false) or exclusive access to the
// state.
type runner func(write bool, fn func(st *state) error) error

// Store is a mutex-guarded data.Store.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) run(write bool, fn func(*state) error) error {
	if write {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return fn(s.st)
}

func (s *Store) Users() data.UserStore         { return users{run: s.run, now: s.now} }
func (s *Store) Books() data.BookStore         { return books{run: s.run, now: s.now} }
func (s *Store) Checkouts() data.CheckoutStore { return checkouts{run: s.run, now: s.now} }

// Atomically holds the write lock for the whole of fn and works on a copy
// of the state, which replaces the live state only when fn succeeds.
func (s *Store) Atomically(ctx context.Context, fn func(data.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&txStore{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// txStore is the view handed to an Atomically callback. The lock is
// already held, so its runner touches the working copy directly.
type txStore struct {
	st  *state
	now func() time.Time
}

func (t *txStore) run(_ bool, fn func(*state) error) error { return fn(t.st) }

func (t *txStore) Users() data.UserStore         { return users{run: t.run, now: t.now} }
func (t *txStore) Books() data.BookStore         { return books{run: t.run, now: t.now} }
func (t *txStore) Checkouts() data.CheckoutStore { return checkouts{run: t.run, now: t.now} }

func (t *txStore) Atomically(_ context.Context, fn func(data.Store) error) error {
	return fn(t)
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyCheckout(c *data.Checkout) *data.Checkout {
	cp := *c
	if c.ReturnedDate != nil {
		d := *c.ReturnedDate
		cp.ReturnedDate = &d
	}
	return &cp
}

// deleteCheckoutsWhere mirrors ON DELETE CASCADE.
func (st *state) deleteCheckoutsWhere(match func(*data.Checkout) bool) {
	for id, c := range st.checkouts {
		if match(c) {
			delete(st.checkouts, id)
		}
	}
}
