package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the store aborted a write because of concurrent access
	// (serialization failure, deadlock, busy database). The caller may retry.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate")
)

type Accounts interface {
	Create(ctx context.Context, a models.Account) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]models.Account, error)

	// Decide moves a pending account to status. Reports false when the account is not pending.
	Decide(ctx context.Context, id string, status models.ApprovalStatus) (bool, error)
	// SetActive toggles the active flag of an approved account. Reports false otherwise.
	SetActive(ctx context.Context, id string, active bool) (bool, error)
}

type Books interface {
	Create(ctx context.Context, b models.Book) (models.Book, error)
	GetByID(ctx context.Context, id string) (models.Book, error)
	List(ctx context.Context, limit, offset int) ([]models.Book, error)

	// DecrementAvailable takes one copy if available_copies > 0. Reports whether a row changed.
	DecrementAvailable(ctx context.Context, id string) (bool, error)
	// IncrementAvailable puts one copy back if available_copies < total_copies.
	IncrementAvailable(ctx context.Context, id string) (bool, error)
	// SetTotalCopies changes total_copies and shifts available_copies by the same delta,
	// refusing when available_copies would go negative.
	SetTotalCopies(ctx context.Context, id string, total int) (bool, error)
}

type Loans interface {
	Create(ctx context.Context, l models.Loan) (models.Loan, error)
	GetByID(ctx context.Context, id string) (models.Loan, error)
	ListByBorrower(ctx context.Context, borrowerID string, limit, offset int) ([]models.Loan, error)
	ListByBook(ctx context.Context, bookID string, limit, offset int) ([]models.Loan, error)
	ListOverdue(ctx context.Context, now time.Time, limit, offset int) ([]models.Loan, error)
	CountIssuedByBook(ctx context.Context, bookID string) (int, error)

	// MarkReturned closes an issued loan. Reports false when the loan is not issued.
	MarkReturned(ctx context.Context, id string, at time.Time, notes *string, cond *models.ReturnCondition) (bool, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
}

// Tx groups the repositories bound to one store transaction.
type Tx interface {
	Accounts() Accounts
	Books() Books
	Loans() Loans
	AuditLogs() AuditLogs
}

// Store is a Tx bound to the connection pool plus a way to run an atomic unit of work.
type Store interface {
	Tx
	// WithTx runs fn in a single transaction: committed if fn returns nil, rolled back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// ErrInvariant is returned when the store itself rejected a write that would break a
// counter or status constraint.
var ErrInvariant = errors.New("store constraint violated")
