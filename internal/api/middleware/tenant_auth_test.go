package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/linelot/linelot/internal/tenant"
)

// fakeTenantStore is a minimal in-memory tenant.Store for middleware tests.
type fakeTenantStore struct {
	keysByHash map[string]*tenant.APIKey
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{keysByHash: make(map[string]*tenant.APIKey)}
}

func (s *fakeTenantStore) addKey(plaintext string, key *tenant.APIKey) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	key.Key = string(hash)
	s.keysByHash[tenant.LookupHash(plaintext)] = key
}

func (s *fakeTenantStore) CreateTenant(context.Context, *tenant.Tenant) error { return nil }

func (s *fakeTenantStore) GetTenantByCode(context.Context, string) (*tenant.Tenant, error) {
	return nil, nil
}

func (s *fakeTenantStore) GetTenant(context.Context, string) (*tenant.Tenant, error) {
	return nil, nil
}

func (s *fakeTenantStore) CreateAPIKey(context.Context, *tenant.APIKey, string) error { return nil }

func (s *fakeTenantStore) FindAPIKeyByLookupHash(_ context.Context, hash string) (*tenant.APIKey, error) {
	return s.keysByHash[hash], nil
}

func (s *fakeTenantStore) RevokeAPIKey(context.Context, string) error { return nil }

func (s *fakeTenantStore) TouchAPIKeyLastUsed(context.Context, string) error { return nil }

func (s *fakeTenantStore) GetUserByEmail(context.Context, string, string) (*tenant.User, error) {
	return nil, nil
}

func (s *fakeTenantStore) ListTenants(context.Context) ([]*tenant.Tenant, error) { return nil, nil }

func (s *fakeTenantStore) CreateUser(context.Context, *tenant.User) error { return nil }

func testAuthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenantCtx, ok := GetTenantContext(r.Context()); ok {
			w.Header().Set("X-Resolved-Tenant", tenantCtx.TenantID)
		}

		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateTenant_ModeOff(t *testing.T) {
	store := newFakeTenantStore()
	cfg := AuthConfig{Mode: AuthModeOff, ProtectPrefixes: []string{"/import"}}
	handler := AuthenticateTenant(store, cfg, slog.New(slog.DiscardHandler))(testAuthHandler())

	req := httptest.NewRequest(http.MethodGet, "/import/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth off, got %d", rec.Code)
	}
}

func TestAuthenticateTenant_MissingKeyOnProtectedPath(t *testing.T) {
	store := newFakeTenantStore()
	cfg := AuthConfig{Mode: AuthModeAPIKey, ProtectPrefixes: []string{"/import"}}
	handler := AuthenticateTenant(store, cfg, slog.New(slog.DiscardHandler))(testAuthHandler())

	req := httptest.NewRequest(http.MethodGet, "/import/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing key, got %d", rec.Code)
	}
}

func TestAuthenticateTenant_ExemptPathBypassesAuth(t *testing.T) {
	store := newFakeTenantStore()
	cfg := AuthConfig{Mode: AuthModeAPIKey, ProtectPrefixes: []string{"/"}, ExemptPaths: []string{"/healthz"}}
	handler := AuthenticateTenant(store, cfg, slog.New(slog.DiscardHandler))(testAuthHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for exempt path, got %d", rec.Code)
	}
}

func TestAuthenticateTenant_ValidTenantKeyResolvesContext(t *testing.T) {
	store := newFakeTenantStore()
	store.addKey("plaintext-key", &tenant.APIKey{ID: "key-1", TenantID: "tenant-123", Tier: tenant.TierTenant})

	cfg := AuthConfig{Mode: AuthModeAPIKey, ProtectPrefixes: []string{"/import"}, APIKeyHeaderName: "X-API-Key"}
	handler := AuthenticateTenant(store, cfg, slog.New(slog.DiscardHandler))(testAuthHandler())

	req := httptest.NewRequest(http.MethodGet, "/import/jobs", nil)
	req.Header.Set("X-API-Key", "plaintext-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid key, got %d", rec.Code)
	}

	if got := rec.Header().Get("X-Resolved-Tenant"); got != "tenant-123" {
		t.Fatalf("expected resolved tenant tenant-123, got %q", got)
	}
}

func TestAuthenticateTenant_AdminKeyBypassesTenantScoping(t *testing.T) {
	store := newFakeTenantStore()
	store.addKey("admin-key", &tenant.APIKey{ID: "admin-1", Tier: tenant.TierAdmin})

	cfg := AuthConfig{Mode: AuthModeAPIKey, ProtectPrefixes: []string{"/tenants"}}
	handler := AuthenticateTenant(store, cfg, slog.New(slog.DiscardHandler))(testAuthHandler())

	req := httptest.NewRequest(http.MethodPost, "/tenants", nil)
	req.Header.Set("X-Admin-API-Key", "admin-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid admin key, got %d", rec.Code)
	}
}

func TestAuthenticateTenant_UnprotectedPathHonorsTenantIDFallback(t *testing.T) {
	store := newFakeTenantStore()
	cfg := AuthConfig{Mode: AuthModeAPIKey, ProtectPrefixes: []string{"/import"}}
	handler := AuthenticateTenant(store, cfg, slog.New(slog.DiscardHandler))(testAuthHandler())

	req := httptest.NewRequest(http.MethodGet, "/query/records", nil)
	req.Header.Set("X-Tenant-Id", "dev-tenant")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unprotected path, got %d", rec.Code)
	}

	if got := rec.Header().Get("X-Resolved-Tenant"); got != "dev-tenant" {
		t.Fatalf("expected fallback tenant dev-tenant, got %q", got)
	}
}
