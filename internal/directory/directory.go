// Package directory manages library members.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/aoideee/library-api/internal/data"
	"github.com/aoideee/library-api/internal/lending"
	"github.com/aoideee/library-api/internal/validator"
)

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

// Register creates a user. The email must be well formed and unused.
func (s *Service) Register(ctx context.Context, input data.RegisterUserInput) (*data.User, error) {
	v := validator.New()
	v.CheckStruct(input)
	data.ValidateEmail(v, input.Email)
	if !v.Valid() {
		return nil, data.ValidationFailed(v.Errors)
	}

	if err := s.ensureEmailFree(ctx, s.store, input.Email, 0); err != nil {
		return nil, err
	}

	user := &data.User{
		Name:             input.Name,
		Email:            input.Email,
		RegistrationDate: data.DateOf(s.now()),
	}
	if err := s.store.Users().Insert(ctx, user); err != nil {
		if errors.Is(err, data.ErrDuplicateEmail) {
			return nil, emailTaken(input.Email)
		}
		return nil, data.StoreFailure("insert user", err)
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]*data.User, error) {
	users, err := s.store.Users().GetAll(ctx)
	if err != nil {
		return nil, data.StoreFailure("list users", err)
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*data.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return nil, userLookupError(err, id)
	}
	return user, nil
}

// Update changes name and/or email. A new email is checked for shape and
// against every other user.
func (s *Service) Update(ctx context.Context, id int64, input data.UpdateUserInput) (*data.User, error) {
	v := validator.New()
	if input.Name != nil {
		v.Check(*input.Name != "", "name", "must not be empty")
	}
	if input.Email != nil {
		data.ValidateEmail(v, *input.Email)
	}
	if !v.Valid() {
		return nil, data.ValidationFailed(v.Errors)
	}

	var user *data.User
	err := s.store.Atomically(ctx, func(tx data.Store) error {
		var err error
		user, err = tx.Users().Get(ctx, id)
		if err != nil {
			return userLookupError(err, id)
		}

		if input.Name != nil {
			user.Name = *input.Name
		}
		if input.Email != nil && *input.Email != user.Email {
			if err := s.ensureEmailFree(ctx, tx, *input.Email, user.ID); err != nil {
				return err
			}
			user.Email = *input.Email
		}

		if err := tx.Users().Update(ctx, user); err != nil {
			switch {
			case errors.Is(err, data.ErrDuplicateEmail):
				return emailTaken(user.Email)
			case errors.Is(err, data.ErrRecordNotFound):
				return data.NotFound("user %d not found", id)
			default:
				return data.StoreFailure("update user", err)
			}
		}
		return nil
	})
	if err != nil {
		var de *data.Error
		if !errors.As(err, &de) {
			return nil, data.StoreFailure("update user", err)
		}
		return nil, err
	}
	return user, nil
}

// Delete removes the user together with their checkouts. Copies held by
// open checkouts are not put back on the shelf.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Users().Delete(ctx, id); err != nil {
		return userLookupError(err, id)
	}
	return nil
}

func (s *Service) ListCheckouts(ctx context.Context, id int64) ([]*data.CheckoutDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.lending.ListForUser(ctx, id)
}

// ListOpenBooks returns the user's checkouts that are still out.
func (s *Service) ListOpenBooks(ctx context.Context, id int64) ([]*data.CheckoutDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.lending.OpenForUser(ctx, id)
}

func (s *Service) ListOverdue(ctx context.Context, id int64) ([]*data.CheckoutDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.lending.OverdueForUser(ctx, id)
}

func (s *Service) ensureEmailFree(ctx context.Context, store data.Store, email string, self int64) error {
	existing, err := store.Users().GetByEmail(ctx, email)
	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		return nil
	case err != nil:
		return data.StoreFailure("find user by email", err)
	case existing.ID != self:
		return emailTaken(email)
	}
	return nil
}

func emailTaken(email string) error {
	return data.Conflict("a user with email %s already exists", email)
}

func userLookupError(err error, id int64) error {
	if errors.Is(err, data.ErrRecordNotFound) {
		return data.NotFound("user %d not found", id)
	}
	return data.StoreFailure("get user", err)
}
