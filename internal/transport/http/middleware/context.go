package middleware

import (
	"context"

	"sheetconsole/internal/domain/auth"
	"sheetconsole/internal/requestctx"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// WithUser stores the operator on ctx for handlers and for write auditing.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUser, user)
	return requestctx.WithActor(ctx, user.UserID)
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
