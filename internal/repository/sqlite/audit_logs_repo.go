package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

type auditLogsRepo struct{ q querier }

type auditRow struct {
	ID         string         `db:"id"`
	EntityType string         `db:"entity_type"`
	EntityID   sql.NullString `db:"entity_id"`
	Action     string         `db:"action"`
	ActorID    sql.NullString `db:"actor_id"`
	Details    sql.NullString `db:"details"`
	CreatedAt  time.Time      `db:"created_at"`
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	details, err := json.MarshalToString(l.Details)
	if err != nil {
		return err
	}
	_, err = exec(ctx, r.q, dialect.Insert("audit_logs").Prepared(true).Rows(goqu.Record{
		"id":          l.ID,
		"entity_type": l.EntityType,
		"entity_id":   nullable(l.EntityID),
		"action":      l.Action,
		"actor_id":    nullable(l.ActorID),
		"details":     details,
		"created_at":  now(),
	}))
	return err
}

func (r *auditLogsRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	var rows []auditRow
	if err := selectAll(ctx, r.q, &rows, dialect.From("audit_logs").Prepared(true).
		Select("id", "entity_type", "entity_id", "action", "actor_id", "details", "created_at").
		Where(goqu.C("entity_type").Eq(entityType), goqu.C("entity_id").Eq(entityID)).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())); err != nil {
		return nil, err
	}
	out := make([]models.AuditLog, 0, len(rows))
	for _, row := range rows {
		l := models.AuditLog{ID: row.ID, EntityType: row.EntityType, Action: row.Action, CreatedAt: row.CreatedAt}
		if row.EntityID.Valid {
			v := row.EntityID.String
			l.EntityID = &v
		}
		if row.ActorID.Valid {
			v := row.ActorID.String
			l.ActorID = &v
		}
		if row.Details.Valid && row.Details.String != "" {
			if err := json.UnmarshalFromString(row.Details.String, &l.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, l)
	}
	return out, nil
}
