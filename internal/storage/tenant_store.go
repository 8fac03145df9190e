package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/linelot/linelot/internal/tenant"
)

var _ tenant.Store = (*TenantStore)(nil)

// ErrTenantNotFound is returned when a tenant code or ID has no matching row.
var ErrTenantNotFound = errors.New("tenant not found")

// TenantStore implements tenant.Store with a PostgreSQL backend, adapted
// from PersistentKeyStore's O(1) lookup-hash + bcrypt verification pattern
// and audit-logging discipline, generalized from a single plugin-key tier
// to the admin/tenant two-tier model.
type TenantStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewTenantStore constructs a TenantStore over conn.
func NewTenantStore(conn *Connection) (*TenantStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &TenantStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: getEnvLogLevel("LOG_LEVEL", slog.LevelDebug),
		})),
	}, nil
}

// CreateTenant inserts a new tenant row. t.ID is generated if empty.
func (s *TenantStore) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == "" {
		t.ID = uuidNew()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO tenants (id, code, name, active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, t.ID, t.Code, t.Name, t.Active)
	if err != nil {
		return translatePQError(err)
	}

	return nil
}

// GetTenantByCode looks up a tenant by its human-facing code.
func (s *TenantStore) GetTenantByCode(ctx context.Context, code string) (*tenant.Tenant, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, code, name, active, created_at FROM tenants WHERE code = $1
	`, code)

	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get tenant by code: %w", err)
	}

	return t, nil
}

// GetTenant looks up a tenant by ID.
func (s *TenantStore) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, code, name, active, created_at FROM tenants WHERE id = $1
	`, id)

	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	return t, nil
}

// ListTenants returns every tenant, ordered by creation time, backing
// GET /tenants (spec §6).
func (s *TenantStore) ListTenants(ctx context.Context) ([]*tenant.Tenant, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, code, name, active, created_at FROM tenants ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Tenant

	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}

		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	return out, nil
}

func scanTenant(row scannable) (*tenant.Tenant, error) {
	t := &tenant.Tenant{}
	if err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}

	return t, nil
}

// CreateAPIKey stores a new admin or tenant-scoped API key, bcrypt-hashing
// plaintext for security validation and SHA256-hashing it separately for
// O(1) lookup, mirroring PersistentKeyStore.Add's dual-hash scheme.
func (s *TenantStore) CreateAPIKey(ctx context.Context, key *tenant.APIKey, plaintext string) error {
	if key.ID == "" {
		key.ID = uuidNew()
	}

	lookupHash := tenant.LookupHash(plaintext)

	keyHash, err := HashAPIKey(plaintext)
	if err != nil {
		return fmt.Errorf("hash api key: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO api_keys (id, tenant_id, tier, label, key_hash, key_lookup_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
	`, key.ID, nullableString(key.TenantID), string(key.Tier), key.Label, keyHash, lookupHash, key.ExpiresAt)
	if err != nil {
		return translatePQError(err)
	}

	if err := s.logKeyAudit(ctx, keyCreated, key); err != nil {
		s.logger.Error("failed to write api key audit log entry",
			slog.String("operation", keyCreated), slog.String("error", err.Error()))
	}

	return nil
}

// FindAPIKeyByLookupHash resolves an API key by its precomputed SHA256
// lookup hash. Returns (nil, nil) if not found — bcrypt verification
// against the caller-supplied plaintext happens in internal/tenant.Authenticate.
func (s *TenantStore) FindAPIKeyByLookupHash(ctx context.Context, lookupHash string) (*tenant.APIKey, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, tier, label, key_hash, created_at, expires_at, revoked_at, last_used_at
		FROM api_keys WHERE key_lookup_hash = $1
	`, lookupHash)

	key, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // not-found is a valid, distinct outcome the auth layer handles
	}

	if err != nil {
		return nil, fmt.Errorf("find api key by lookup hash: %w", err)
	}

	return key, nil
}

// RevokeAPIKey soft-revokes a key by setting revoked_at, mirroring
// PersistentKeyStore.Delete's soft-delete-for-audit-trail approach.
func (s *TenantStore) RevokeAPIKey(ctx context.Context, keyID string) error {
	result, err := s.conn.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL
	`, keyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}

	if rows == 0 {
		return ErrKeyNotFound
	}

	if err := s.logKeyAudit(ctx, keyDeleted, &tenant.APIKey{ID: keyID}); err != nil {
		s.logger.Error("failed to write api key audit log entry",
			slog.String("operation", keyDeleted), slog.String("error", err.Error()))
	}

	return nil
}

// TouchAPIKeyLastUsed stamps last_used_at; called on every successful
// authentication, best-effort (never blocks the request on failure).
func (s *TenantStore) TouchAPIKeyLastUsed(ctx context.Context, keyID string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("touch api key last used: %w", err)
	}

	return nil
}

func scanAPIKey(row scannable) (*tenant.APIKey, error) {
	key := &tenant.APIKey{}

	var tenantID sql.NullString

	var tier string

	if err := row.Scan(&key.ID, &tenantID, &tier, &key.Label, &key.Key,
		&key.CreatedAt, &key.ExpiresAt, &key.RevokedAt, &key.LastUsedAt); err != nil {
		return nil, err
	}

	key.TenantID = tenantID.String
	key.Tier = tenant.Tier(tier)

	return key, nil
}

// GetUserByEmail looks up a tenant-scoped user for POST /auth/login.
// Returns (nil, nil) if not found so internal/tenant.Login can run its
// dummy bcrypt comparison and keep the timing profile uniform.
func (s *TenantStore) GetUserByEmail(ctx context.Context, tenantID, email string) (*tenant.User, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, password_hash, created_at
		FROM users WHERE tenant_id = $1 AND email = $2
	`, tenantID, email)

	u := &tenant.User{}
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // not-found is a valid, distinct outcome
		}

		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return u, nil
}

// CreateUser inserts a tenant-scoped user, backing POST /auth/users
// (spec §6). u.ID is generated if empty.
func (s *TenantStore) CreateUser(ctx context.Context, u *tenant.User) error {
	if u.ID == "" {
		u.ID = uuidNew()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, u.ID, u.TenantID, u.Email, u.PasswordHash)
	if err != nil {
		return translatePQError(err)
	}

	return nil
}

func (s *TenantStore) logKeyAudit(ctx context.Context, operation string, key *tenant.APIKey) error {
	masked := MaskKey(key.Key)

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO api_key_audit_log (api_key_id, operation, masked_key, tenant_id, metadata)
		VALUES ($1, $2, $3, $4, '{}')
	`, key.ID, operation, masked, nullableString(key.TenantID))
	if err != nil {
		return fmt.Errorf("insert api key audit log: %w", err)
	}

	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
