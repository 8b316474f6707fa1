package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/baharkarakas/circulation-backend/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

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
	pool *pgxpool.Pool
}

var _ repo.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{repositories: newRepositories(pool), pool: pool}
}

// WithTx runs fn in one READ COMMITTED transaction. The conditional UPDATEs re-check their
// guards against the latest committed row version, so a stronger level is unnecessary for
// the counters.
func (s *Store) WithTx(ctx context.Context, fn func(repo.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return mapErr(err)
	}
	if err := fn(newRepositories(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return mapErr(tx.Commit(ctx))
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
