package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

type loansRepo struct{ q querier }

const loanCols = `id, book_id, borrower_id, issued_by, issue_date, due_date, return_date, status, notes, return_notes, condition_at_return`

func scanLoan(row pgx.Row) (models.Loan, error) {
	var l models.Loan
	err := row.Scan(&l.ID, &l.BookID, &l.BorrowerID, &l.IssuedBy, &l.IssueDate, &l.DueDate, &l.ReturnDate,
		&l.Status, &l.Notes, &l.ReturnNotes, &l.ConditionAtReturn)
	return l, mapErr(err)
}

func collectLoans(rows pgx.Rows, err error) ([]models.Loan, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, mapErr(rows.Err())
}

func (r *loansRepo) Create(ctx context.Context, l models.Loan) (models.Loan, error) {
	return scanLoan(r.q.QueryRow(ctx,
		`INSERT INTO loans(id, book_id, borrower_id, issued_by, issue_date, due_date, status, notes)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+loanCols,
		l.ID, l.BookID, l.BorrowerID, l.IssuedBy, l.IssueDate, l.DueDate, l.Status, l.Notes,
	))
}

func (r *loansRepo) GetByID(ctx context.Context, id string) (models.Loan, error) {
	return scanLoan(r.q.QueryRow(ctx, `SELECT `+loanCols+` FROM loans WHERE id=$1`, id))
}

func (r *loansRepo) ListByBorrower(ctx context.Context, borrowerID string, limit, offset int) ([]models.Loan, error) {
	return collectLoans(r.q.Query(ctx,
		`SELECT `+loanCols+`
		   FROM loans
		  WHERE borrower_id=$1
		  ORDER BY issue_date DESC, id DESC
		  LIMIT $2 OFFSET $3`,
		borrowerID, limit, offset,
	))
}

func (r *loansRepo) ListByBook(ctx context.Context, bookID string, limit, offset int) ([]models.Loan, error) {
	return collectLoans(r.q.Query(ctx,
		`SELECT `+loanCols+`
		   FROM loans
		  WHERE book_id=$1
		  ORDER BY issue_date DESC, id DESC
		  LIMIT $2 OFFSET $3`,
		bookID, limit, offset,
	))
}

func (r *loansRepo) ListOverdue(ctx context.Context, now time.Time, limit, offset int) ([]models.Loan, error) {
	return collectLoans(r.q.Query(ctx,
		`SELECT `+loanCols+`
		   FROM loans
		  WHERE status='issued' AND due_date < $1
		  ORDER BY due_date, id
		  LIMIT $2 OFFSET $3`,
		now, limit, offset,
	))
}

func (r *loansRepo) CountIssuedByBook(ctx context.Context, bookID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM loans WHERE book_id=$1 AND status='issued'`, bookID).Scan(&n)
	return n, mapErr(err)
}

func (r *loansRepo) MarkReturned(ctx context.Context, id string, at time.Time, notes *string, cond *models.ReturnCondition) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE loans
		    SET status='returned', return_date=$2, return_notes=$3, condition_at_return=$4
		  WHERE id=$1 AND status='issued'`,
		id, at, notes, cond,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}
