package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"docsign/internal/port"
)

type txKey struct{}

// querier is the part of sqlx shared by *sqlx.DB and *sqlx.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Transactor runs units of work in a single database transaction.
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

var _ port.Transactor = (*Transactor)(nil)

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transactor begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transactor commit: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

// conn returns the transaction carried by ctx, or db outside a unit of work.
func conn(ctx context.Context, db *sqlx.DB) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

// savepoint runs fn inside a savepoint when ctx carries a transaction, so a
// failed statement (a code collision, a retried append) does not abort the
// enclosing unit of work.
func savepoint(ctx context.Context, name string, fn func() error) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return fn()
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rerr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rerr != nil {
			return fmt.Errorf("rollback to savepoint %s: %w", name, rerr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}
