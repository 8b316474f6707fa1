package sqlite

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

type loansRepo struct{ q querier }

var loanCols = []any{"id", "book_id", "borrower_id", "issued_by", "issue_date", "due_date", "return_date",
	"status", "notes", "return_notes", "condition_at_return"}

func (r *loansRepo) Create(ctx context.Context, l models.Loan) (models.Loan, error) {
	rec := goqu.Record{
		"id":          l.ID,
		"book_id":     l.BookID,
		"borrower_id": l.BorrowerID,
		"issued_by":   l.IssuedBy,
		"issue_date":  l.IssueDate.UTC(),
		"due_date":    l.DueDate.UTC(),
		"due_ns":      l.DueDate.UnixNano(),
		"status":      string(l.Status),
		"notes":       nil,
	}
	if l.Notes != nil {
		rec["notes"] = *l.Notes
	}
	if _, err := exec(ctx, r.q, dialect.Insert("loans").Prepared(true).Rows(rec)); err != nil {
		return models.Loan{}, err
	}
	return r.GetByID(ctx, l.ID)
}

func (r *loansRepo) GetByID(ctx context.Context, id string) (models.Loan, error) {
	var l models.Loan
	err := get(ctx, r.q, &l, dialect.From("loans").Prepared(true).Select(loanCols...).Where(goqu.C("id").Eq(id)))
	return l, err
}

func (r *loansRepo) list(ctx context.Context, where goqu.Ex, limit, offset int) ([]models.Loan, error) {
	var out []models.Loan
	err := selectAll(ctx, r.q, &out, dialect.From("loans").Prepared(true).Select(loanCols...).
		Where(where).
		Order(goqu.C("issue_date").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit)).Offset(uint(offset)))
	return out, err
}

func (r *loansRepo) ListByBorrower(ctx context.Context, borrowerID string, limit, offset int) ([]models.Loan, error) {
	return r.list(ctx, goqu.Ex{"borrower_id": borrowerID}, limit, offset)
}

func (r *loansRepo) ListByBook(ctx context.Context, bookID string, limit, offset int) ([]models.Loan, error) {
	return r.list(ctx, goqu.Ex{"book_id": bookID}, limit, offset)
}

// ListOverdue compares due_ns, not the text due_date, so "due before at" holds at full
// precision, the same rule as models.ClassifyLoan.
func (r *loansRepo) ListOverdue(ctx context.Context, at time.Time, limit, offset int) ([]models.Loan, error) {
	var out []models.Loan
	err := selectAll(ctx, r.q, &out, dialect.From("loans").Prepared(true).Select(loanCols...).
		Where(goqu.C("status").Eq(string(models.LoanIssued)), goqu.C("due_ns").Lt(at.UnixNano())).
		Order(goqu.C("due_ns").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)))
	return out, err
}

func (r *loansRepo) CountIssuedByBook(ctx context.Context, bookID string) (int, error) {
	var n int
	err := get(ctx, r.q, &n, dialect.From("loans").Prepared(true).Select(goqu.COUNT("*")).
		Where(goqu.C("book_id").Eq(bookID), goqu.C("status").Eq(string(models.LoanIssued))))
	return n, err
}

func (r *loansRepo) MarkReturned(ctx context.Context, id string, at time.Time, notes *string, cond *models.ReturnCondition) (bool, error) {
	rec := goqu.Record{
		"status":              string(models.LoanReturned),
		"return_date":         at.UTC(),
		"return_notes":        nil,
		"condition_at_return": nil,
	}
	if notes != nil {
		rec["return_notes"] = *notes
	}
	if cond != nil {
		rec["condition_at_return"] = string(*cond)
	}
	n, err := exec(ctx, r.q, dialect.Update("loans").Prepared(true).Set(rec).
		Where(goqu.C("id").Eq(id), goqu.C("status").Eq(string(models.LoanIssued))))
	return n == 1, err
}
