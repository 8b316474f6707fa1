// Package sqlite implements the repositories on an embedded SQLite database for single-node
// deployments, the staff CLI and tests. Statements are built with goqu and executed via sqlx.
package sqlite

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"

	repo "github.com/baharkarakas/circulation-backend/internal/repository"
)

var dialect = goqu.Dialect("sqlite3")

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
}

type builder interface {
	ToSQL() (string, []interface{}, error)
}

func exec(ctx context.Context, q querier, b builder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func get(ctx context.Context, q querier, dest any, b builder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return err
	}
	return mapErr(sqlx.GetContext(ctx, q, dest, query, args...))
}

func selectAll(ctx context.Context, q querier, dest any, b builder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return err
	}
	return mapErr(sqlx.SelectContext(ctx, q, dest, query, args...))
}

func now() time.Time { return time.Now().UTC() }

type repositories struct {
	accounts  *accountsRepo
	books     *booksRepo
	loans     *loansRepo
	auditLogs *auditLogsRepo
}

func newRepositories(q querier) repositories {
	return repositories{
		accounts:  &accountsRepo{q},
		books:     &booksRepo{q},
		loans:     &loansRepo{q},
		auditLogs: &auditLogsRepo{q},
	}
}

func (r repositories) Accounts() repo.Accounts   { return r.accounts }
func (r repositories) Books() repo.Books         { return r.books }
func (r repositories) Loans() repo.Loans         { return r.loans }
func (r repositories) AuditLogs() repo.AuditLogs { return r.auditLogs }

type Store struct {
	repositories
	db *sqlx.DB
}

var _ repo.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{repositories: newRepositories(db), db: db}
}

// DB exposes the underlying handle for maintenance commands and tests.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) WithTx(ctx context.Context, fn func(repo.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	if err := fn(newRepositories(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return mapErr(tx.Commit())
}

func (s *Store) Close() error { return s.db.Close() }
