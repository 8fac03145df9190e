// Package middleware provides HTTP middleware components for the linelot API.
package middleware

import (
	"context"
	"time"

	"github.com/linelot/linelot/internal/tenant"
)

// tenantContextKey is the context key for authenticated tenant information.
type tenantContextKey struct{}

// TenantContext carries the caller identity resolved by AuthenticateTenant
// (spec §4.I). TenantID is empty for an admin-tier key, since admin keys
// sit outside tenant scoping.
type TenantContext struct {
	TenantID string
	Tier     tenant.Tier
	KeyID    string
	AuthTime time.Time
}

// IsAdmin reports whether the caller authenticated with an admin-tier key.
func (c TenantContext) IsAdmin() bool {
	return c.Tier == tenant.TierAdmin
}

// GetTenantContext extracts tenant context from the request context.
// Returns (context, true) if a key or fallback X-Tenant-Id header
// resolved a caller identity, (empty, false) otherwise.
func GetTenantContext(ctx context.Context) (TenantContext, bool) {
	tenantCtx, ok := ctx.Value(tenantContextKey{}).(TenantContext)

	return tenantCtx, ok
}

// SetTenantContext adds tenant context to the request context.
func SetTenantContext(ctx context.Context, tenantCtx TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantCtx)
}
