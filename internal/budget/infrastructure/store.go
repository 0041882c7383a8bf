package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
	budgeterrors "github.com/mpaulose/budgetsync/internal/budget/errors"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every repository can
// run either standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed aggregate store and event log.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repos() domain.Repositories {
	return newRepositories(s.db)
}

// RunInTransaction executes fn with every repository bound to one database
// transaction. An error (or panic) rolls everything back, so an aggregate
// mutation and its event append commit together or not at all.
func (s *Store) RunInTransaction(ctx context.Context, fn func(repos domain.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			safeRollback(tx)
			panic(p)
		}
	}()

	if err := fn(newRepositories(tx)); err != nil {
		safeRollback(tx)
		return err
	}
	return tx.Commit()
}

func newRepositories(q querier) domain.Repositories {
	return domain.Repositories{
		Budgets:      &BudgetRepository{db: q},
		Categories:   &CategoryRepository{db: q},
		Expenses:     &ExpenseRepository{db: q},
		Participants: &ParticipantRepository{db: q},
		Events:       &EventRepository{db: q},
		Lookup:       &LookupRepository{db: q},
	}
}

func safeRollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("error during transaction rollback", "error", err)
	}
}

// prefixColumns qualifies a comma separated column list with a table alias
// for use in joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}

// mapUniqueViolation converts a Postgres duplicate-key error into the
// conflict the policy fast path would have produced. The constraint, not the
// policy lookup, is the source of truth for duplicate ids under concurrency.
func mapUniqueViolation(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return budgeterrors.NewConflictError(code)
	}
	return err
}
