package sqlite

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

type accountsRepo struct{ q querier }

var accountCols = []any{"id", "username", "email", "password_hash", "role", "approval_status", "active", "created_at", "updated_at"}

func (r *accountsRepo) Create(ctx context.Context, a models.Account) (models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	ts := now()
	_, err := exec(ctx, r.q, dialect.Insert("accounts").Prepared(true).Rows(goqu.Record{
		"id":              a.ID,
		"username":        a.Username,
		"email":           a.Email,
		"password_hash":   a.PasswordHash,
		"role":            string(a.Role),
		"approval_status": string(a.ApprovalStatus),
		"active":          a.Active,
		"created_at":      ts,
		"updated_at":      ts,
	}))
	if err != nil {
		return models.Account{}, err
	}
	return r.GetByID(ctx, a.ID)
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (models.Account, error) {
	var a models.Account
	err := get(ctx, r.q, &a, dialect.From("accounts").Prepared(true).Select(accountCols...).Where(goqu.C("id").Eq(id)))
	return a, err
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var a models.Account
	err := get(ctx, r.q, &a, dialect.From("accounts").Prepared(true).Select(accountCols...).Where(goqu.C("email").Eq(email)))
	return a, err
}

func (r *accountsRepo) List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]models.Account, error) {
	ds := dialect.From("accounts").Prepared(true).Select(accountCols...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset))
	if status != nil {
		ds = ds.Where(goqu.C("approval_status").Eq(string(*status)))
	}
	var out []models.Account
	err := selectAll(ctx, r.q, &out, ds)
	return out, err
}

func (r *accountsRepo) Decide(ctx context.Context, id string, status models.ApprovalStatus) (bool, error) {
	n, err := exec(ctx, r.q, dialect.Update("accounts").Prepared(true).
		Set(goqu.Record{"approval_status": string(status), "updated_at": now()}).
		Where(goqu.C("id").Eq(id), goqu.C("approval_status").Eq(string(models.ApprovalPending))))
	return n == 1, err
}

func (r *accountsRepo) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	n, err := exec(ctx, r.q, dialect.Update("accounts").Prepared(true).
		Set(goqu.Record{"active": active, "updated_at": now()}).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("approval_status").Eq(string(models.ApprovalApproved)),
			goqu.C("active").Neq(active),
		))
	return n == 1, err
}
