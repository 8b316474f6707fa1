package services

import "github.com/baharkarakas/circulation-backend/internal/models"

// Actor is the authenticated identity on whose behalf an operation runs. It is passed
// explicitly into every service call.
type Actor struct {
	AccountID string
	Role      models.Role
}

// SystemActor is used by operator tooling that runs outside an authenticated session.
var SystemActor = Actor{AccountID: "system", Role: models.RoleAdmin}

func (a Actor) Staff() bool { return a.Role.Staff() }

// Acts reports whether a may act on records owned by accountID.
func (a Actor) Acts(accountID string) bool {
	return a.Staff() || (a.AccountID != "" && a.AccountID == accountID)
}

func (a Actor) requireStaff() error {
	if !a.Staff() {
		return ErrForbidden
	}
	return nil
}

func (a Actor) ref() *string {
	if a.AccountID == "" {
		return nil
	}
	id := a.AccountID
	return &id
}
