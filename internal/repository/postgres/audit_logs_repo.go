package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

type auditLogsRepo struct{ q querier }

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	details, err := json.Marshal(l.Details)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO audit_logs(id, entity_type, entity_id, action, actor_id, details) VALUES($1,$2,$3,$4,$5,$6)`,
		l.ID, l.EntityType, l.EntityID, l.Action, l.ActorID, string(details),
	)
	return mapErr(err)
}

func (r *auditLogsRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, entity_type, entity_id, action, actor_id, details, created_at
		   FROM audit_logs
		  WHERE entity_type=$1 AND entity_id=$2
		  ORDER BY created_at, id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var (
			l       models.AuditLog
			details []byte
		)
		if err := rows.Scan(&l.ID, &l.EntityType, &l.EntityID, &l.Action, &l.ActorID, &details, &l.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &l.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, l)
	}
	return out, mapErr(rows.Err())
}
