// Package tenant holds the Tenant, TenantAPIKey, and TenantUser domain
// models plus the authentication resolver (spec §4.I, §3): one admin key
// tier that can mint tenant keys, and tenant keys/passwords scoped to a
// single tenant's data.
package tenant

import (
	"context"
	"errors"
	"time"
)

// Sentinel validation errors, mirrored from the teacher's storage.types.go
// style (one sentinel per required-field/format failure).
var (
	ErrCodeEmpty  = errors.New("tenant code is required")
	ErrNameEmpty  = errors.New("tenant name is required")
	ErrLabelEmpty = errors.New("API key label is required")
)

// Tenant is one manufacturing-plant customer boundary. Every record in
// internal/tracing is scoped to a tenant_id.
type Tenant struct {
	ID        string
	Code      string // short human-facing slug, e.g. "ACME"
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Validate checks required Tenant fields.
func (t *Tenant) Validate() error {
	if t.Code == "" {
		return ErrCodeEmpty
	}

	if t.Name == "" {
		return ErrNameEmpty
	}

	return nil
}

// Tier distinguishes an admin key (can manage tenants and mint tenant
// keys) from a tenant key (scoped to one tenant's ingestion/query API).
type Tier string

const (
	TierAdmin  Tier = "admin"
	TierTenant Tier = "tenant"
)

// APIKey is an admin or tenant-scoped API key. Key is never populated from
// storage with the plaintext value — only Authenticate's bcrypt verification
// ever sees it, and responses only ever carry MaskKey(Key).
type APIKey struct {
	ID         string
	TenantID   string // empty for admin-tier keys
	Tier       Tier
	Label      string
	Key        string // bcrypt hash once loaded from storage
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}

// Active reports whether the key is currently usable.
func (k *APIKey) Active() bool {
	if k.RevokedAt != nil {
		return false
	}

	if k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt) {
		return false
	}

	return true
}

// User is a tenant-scoped human account authenticating via POST /auth/login.
type User struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string // bcrypt
	CreatedAt    time.Time
}

// Store is the domain-owned persistence contract for tenants, API keys,
// and users (Dependency Inversion, same split as internal/tracing.Store).
type Store interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenantByCode(ctx context.Context, code string) (*Tenant, error)
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)

	CreateAPIKey(ctx context.Context, key *APIKey, plaintext string) error
	FindAPIKeyByLookupHash(ctx context.Context, lookupHash string) (*APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string) error
	TouchAPIKeyLastUsed(ctx context.Context, keyID string) error

	GetUserByEmail(ctx context.Context, tenantID, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
}
