package api

import (
	"net/http"

	"github.com/linelot/linelot/internal/api/middleware"
	"github.com/linelot/linelot/internal/storage"
	"github.com/linelot/linelot/internal/tenant"
)

// handleListTenants implements GET /tenants. Listing policy is
// deployment-configurable (spec §6: "admin or unauth for bootstrap"), so
// this handler itself imposes no tier check beyond whatever
// AUTH_PROTECT_PREFIXES/AUTH_MODE already enforced upstream.
func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.tenants.ListTenants(r.Context())
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	out := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResponse(t))
	}

	writeJSON(w, r, s.logger, http.StatusOK, out)
}

// handleCreateTenant implements POST /tenants (admin-only per spec §6).
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	if !callerIsAdmin(r) {
		WriteErrorResponse(w, r, s.logger, Unauthorized("tenant creation requires an admin API key"))

		return
	}

	var req CreateTenantRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid request body: "+err.Error()))

		return
	}

	t := &tenant.Tenant{Code: req.Code, Name: req.Name, Active: true}
	if err := t.Validate(); err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	if err := s.tenants.CreateTenant(r.Context(), t); err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusCreated, toTenantResponse(t))
}

// handleLogin implements POST /auth/login: a tenant user's email/password
// resolves to a freshly minted tenant-tier API key (spec §6: "API key
// issued for this login").
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid request body: "+err.Error()))

		return
	}

	t, err := s.tenants.GetTenantByCode(r.Context(), req.TenantCode)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	if _, err := tenant.Login(r.Context(), s.tenants, t.ID, req.Email, req.Password); err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	plaintext, err := storage.GenerateAPIKey(t.ID)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	key := &tenant.APIKey{TenantID: t.ID, Tier: tenant.TierTenant, Label: "login:" + req.Email}
	if err := s.tenants.CreateAPIKey(r.Context(), key, plaintext); err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, LoginResponse{TenantID: t.ID, APIKey: plaintext})
}

// handleCreateUser implements POST /auth/users (admin-only per spec §6).
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !callerIsAdmin(r) {
		WriteErrorResponse(w, r, s.logger, Unauthorized("user creation requires an admin API key"))

		return
	}

	var req CreateUserRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid request body: "+err.Error()))

		return
	}

	hash, err := tenant.HashPassword(req.Password)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	u := &tenant.User{TenantID: req.TenantID, Email: req.Email, PasswordHash: hash}
	if err := s.tenants.CreateUser(r.Context(), u); err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusCreated, struct {
		ID       string `json:"id"`
		TenantID string `json:"tenant_id"`
		Email    string `json:"email"`
	}{ID: u.ID, TenantID: u.TenantID, Email: u.Email})
}

func callerIsAdmin(r *http.Request) bool {
	tenantCtx, ok := middleware.GetTenantContext(r.Context())

	return ok && tenantCtx.IsAdmin()
}
