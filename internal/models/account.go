package models

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// Staff roles may act on behalf of other accounts.
func (r Role) Staff() bool { return r == RoleLibrarian || r == RoleAdmin }

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

type Account struct {
	ID             string         `json:"id" db:"id"`
	Username       string         `json:"username" db:"username"`
	Email          string         `json:"email" db:"email"`
	PasswordHash   string         `json:"-" db:"password_hash"`
	Role           Role           `json:"role" db:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status" db:"approval_status"`
	Active         bool           `json:"active" db:"active"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

func (u *Account) Validate() error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if len(u.Username) < 3 {
		return errors.New("username too short")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if !u.Role.Valid() {
		return errors.New("invalid role")
	}
	return nil
}

// CanBorrow is the approval gate: only approved, active accounts may be the subject of a new loan.
func (u Account) CanBorrow() bool {
	return u.ApprovalStatus == ApprovalApproved && u.Active && u.Role.Valid()
}
