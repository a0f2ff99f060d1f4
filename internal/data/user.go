package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/aoideee/library-api/internal/validator"
)

// User is a registered library member.
type User struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	RegistrationDate Date      `json:"registration_date" db:"registration_date"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

type RegisterUserInput struct {
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required"`
}

// UpdateUserInput is applied field by field; nil means "leave unchanged".
type UpdateUserInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func ValidateEmail(v *validator.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(validator.Matches(email, validator.EmailRX), "email", "must be a valid email address")
}

var userColumns = []any{"id", "name", "email", "registration_date", "created_at", "updated_at"}

// UserModel runs user queries against a pool or an open transaction.
type UserModel struct {
	q sqlx.ExtContext
}

func (m UserModel) Insert(ctx context.Context, user *User) error {
	query, args, err := dialect.Insert("users").
		Rows(goqu.Record{
			"name":              user.Name,
			"email":             user.Email,
			"registration_date": user.RegistrationDate,
		}).
		Returning(userColumns...).
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	if err := sqlx.GetContext(ctx, m.q, user, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (m UserModel) Get(ctx context.Context, id int64) (*User, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}
	return m.getOne(ctx, goqu.C("id").Eq(id))
}

func (m UserModel) GetByEmail(ctx context.Context, email string) (*User, error) {
	return m.getOne(ctx, goqu.C("email").Eq(email))
}

func (m UserModel) getOne(ctx context.Context, where exp.Expression) (*User, error) {
	query, args, err := dialect.From("users").Select(userColumns...).Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var user User
	if err := sqlx.GetContext(ctx, m.q, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (m UserModel) GetAll(ctx context.Context) ([]*User, error) {
	query, args, err := dialect.From("users").Select(userColumns...).
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	users := []*User{}
	if err := sqlx.SelectContext(ctx, m.q, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (m UserModel) Update(ctx context.Context, user *User) error {
	query, args, err := dialect.Update("users").
		Set(goqu.Record{
			"name":       user.Name,
			"email":      user.Email,
			"updated_at": goqu.L("CURRENT_TIMESTAMP"),
		}).
		Where(goqu.C("id").Eq(user.ID)).
		Returning("updated_at").
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	err = m.q.QueryRowxContext(ctx, query, args...).Scan(&user.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrRecordNotFound
	case isUniqueViolation(err):
		return ErrDuplicateEmail
	default:
		return err
	}
}

// Delete removes the user and, through the foreign key, their checkouts.
func (m UserModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	query, args, err := dialect.Delete("users").Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	n, err := execRows(ctx, m.q, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
