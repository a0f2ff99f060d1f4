package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var dialect = goqu.Dialect("postgres")

// Models is a top-level container that groups all database model types together.
// It implements Store on top of PostgreSQL.
type Models struct {
	db   *sqlx.DB
	inTx bool

	users     UserModel
	books     BookModel
	checkouts CheckoutModel
}

// NewModels constructs a Models value wired up to the given database connection pool.
// Call this once during application startup.
func NewModels(db *sqlx.DB) *Models {
	return newModels(db, db, false)
}

func newModels(db *sqlx.DB, q sqlx.ExtContext, inTx bool) *Models {
	return &Models{
		db:        db,
		inTx:      inTx,
		users:     UserModel{q: q},
		books:     BookModel{q: q},
		checkouts: CheckoutModel{q: q},
	}
}

func (m *Models) Users() UserStore         { return m.users }
func (m *Models) Books() BookStore         { return m.books }
func (m *Models) Checkouts() CheckoutStore { return m.checkouts }

// Atomically runs fn inside a single database transaction. Nested calls
// join the outer transaction.
func (m *Models) Atomically(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	if err := fn(newModels(m.db, tx, true)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DBConfig holds the connection pool settings.
type DBConfig struct {
	Driver       string // "postgres" (lib/pq) or "pgx"
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// OpenDB opens a pool and checks that the database answers within five
// seconds.
func OpenDB(cfg DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// isUniqueViolation recognises a unique constraint failure from either
// driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.UniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

func execRows(ctx context.Context, q sqlx.ExecerContext, query string, args []any) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere in the column.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func contains(value, substr string) bool {
	return substr == "" || strings.Contains(value, substr)
}
