package middleware

import (
	"context"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

type userKey struct{}

// UserCtx is the authenticated caller taken from the access token.
type UserCtx struct {
	AccountID string
	Role      models.Role
}

func WithUser(ctx context.Context, u UserCtx) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func FromCtx(ctx context.Context) (UserCtx, bool) {
	u, ok := ctx.Value(userKey{}).(UserCtx)
	return u, ok && u.AccountID != ""
}
