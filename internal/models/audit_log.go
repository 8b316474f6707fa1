package models

import "time"

const (
	AuditEntityLoan    = "loan"
	AuditEntityBook    = "book"
	AuditEntityAccount = "account"
)

const (
	AuditLoanIssued      = "loan_issued"
	AuditLoanReturned    = "loan_returned"
	AuditAccountDecided  = "account_decided"
	AuditAccountActive   = "account_active_changed"
	AuditCopiesChanged   = "copies_changed"
	AuditInvariantBroken = "invariant_violation"
)

type AuditLog struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   *string        `json:"entity_id"`
	Action     string         `json:"action"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
