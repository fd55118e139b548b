package context

import (
	"context"

	"caretransport/dispatch/internal/models"
)

type contextKey string

var (
	tenantKey    contextKey = "tenant"
	requestIDKey contextKey = "request_id"
)

// Tenant identifies who a request acts for
type Tenant struct {
	CompanyID models.CompanyID
	UserID    models.UserID
}

func SetTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// GetTenant returns the tenant set by the tenant middleware
func GetTenant(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(Tenant)
	return t, ok
}

func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
