package data

import "context"

// Store is the persistence boundary shared by the services. Both the
// PostgreSQL Models and the in-memory memstore.Store implement it.
type Store interface {
	Users() UserStore
	Books() BookStore
	Checkouts() CheckoutStore

	// Atomically runs fn against a Store whose reads and writes all commit
	// together, or not at all when fn returns an error. Row locks taken
	// through the GetForUpdate methods are held until fn returns.
	Atomically(ctx context.Context, fn func(Store) error) error
}

type UserStore interface {
	Insert(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetAll(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
}

type BookStore interface {
	Insert(ctx context.Context, book *Book) error
	Get(ctx context.Context, id int64) (*Book, error)
	GetForUpdate(ctx context.Context, id int64) (*Book, error)
	GetByISBN(ctx context.Context, isbn string) (*Book, error)
	GetAll(ctx context.Context, filter BookFilter) ([]*Book, error)
	Update(ctx context.Context, book *Book) error
	AdjustCopies(ctx context.Context, id int64, delta int) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
}

type CheckoutStore interface {
	Insert(ctx context.Context, checkout *Checkout) error
	Get(ctx context.Context, id int64) (*CheckoutDetail, error)
	GetForUpdate(ctx context.Context, id int64) (*Checkout, error)
	GetActiveForUpdate(ctx context.Context, userID, bookID int64) (*Checkout, error)
	MarkReturned(ctx context.Context, checkout *Checkout) error
	GetAll(ctx context.Context, filter CheckoutFilter) ([]*CheckoutDetail, error)
}
