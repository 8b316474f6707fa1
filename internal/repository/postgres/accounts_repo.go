package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

type accountsRepo struct{ q querier }

const accountCols = `id, username, email, password_hash, role, approval_status, active, created_at, updated_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.ApprovalStatus, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, mapErr(err)
}

func (r *accountsRepo) Create(ctx context.Context, a models.Account) (models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return scanAccount(r.q.QueryRow(ctx,
		`INSERT INTO accounts(id, username, email, password_hash, role, approval_status, active)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+accountCols,
		a.ID, a.Username, a.Email, a.PasswordHash, a.Role, a.ApprovalStatus, a.Active,
	))
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (models.Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1`, id))
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE email=$1`, email))
}

func (r *accountsRepo) List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]models.Account, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+accountCols+`
		   FROM accounts
		  WHERE $1::text IS NULL OR approval_status = $1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err())
}

func (r *accountsRepo) Decide(ctx context.Context, id string, status models.ApprovalStatus) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE accounts SET approval_status=$2, updated_at=now()
		  WHERE id=$1 AND approval_status='pending'`,
		id, status,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *accountsRepo) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE accounts SET active=$2, updated_at=now()
		  WHERE id=$1 AND approval_status='approved' AND active <> $2`,
		id, active,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}
