package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/linelot/linelot/internal/tenant"
)

// AuthMode selects whether AuthenticateTenant enforces API keys at all
// (spec §6 AUTH_MODE).
type AuthMode string

const (
	AuthModeOff    AuthMode = "off"
	AuthModeAPIKey AuthMode = "api_key"

	defaultAPIKeyHeader = "X-API-Key"
	adminAPIKeyHeader   = "X-Admin-API-Key"
)

// AuthConfig holds the policy AuthenticateTenant enforces: which mode is
// active, which header carries the tenant key, and which path prefixes
// are protected/exempt (spec §6).
type AuthConfig struct {
	Mode             AuthMode
	APIKeyHeaderName string
	ProtectPrefixes  []string
	ExemptPaths      []string
}

// AuthenticateTenant resolves the caller identity for each request and
// enriches the context with TenantContext. When Mode is api_key and the
// request path is protected (matches a ProtectPrefixes entry and no
// ExemptPaths entry), a valid X-Admin-API-Key or tenant API key is
// required or the request is rejected with 401. Outside that mandatory
// case, an unauthenticated X-Tenant-Id header is honored as a
// development/bootstrap convenience (spec §4.I: "ignored when a
// tenant-bound API key authenticates the call" implies it's honored
// otherwise).
func AuthenticateTenant(store tenant.Store, cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	headerName := cfg.APIKeyHeaderName
	if headerName == "" {
		headerName = defaultAPIKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Mode != AuthModeAPIKey {
				next.ServeHTTP(w, r.WithContext(withTenantFallback(r)))

				return
			}

			if adminKey, ok := extractKeyFromHeader(r, adminAPIKeyHeader); ok {
				if authenticateAndContinue(w, r, next, store, adminKey, tenant.TierAdmin, logger) {
					return
				}
			}

			if tenantKey, ok := extractKeyFromHeader(r, headerName); ok {
				if authenticateAndContinue(w, r, next, store, tenantKey, tenant.TierTenant, logger) {
					return
				}
			}

			if !mandatoryPath(r.URL.Path, cfg.ProtectPrefixes, cfg.ExemptPaths) {
				next.ServeHTTP(w, r.WithContext(withTenantFallback(r)))

				return
			}

			writeAuthError(w, r, logger, &tenant.AuthError{Type: tenant.ErrMissingAPIKey})
		})
	}
}

// authenticateAndContinue authenticates key against requireTier; on
// success it sets TenantContext and serves next, returning true. On
// failure it writes the 401 response itself and returns true (the
// caller must stop, not fall through to the other tier). It never
// returns false: every path has already written a response.
func authenticateAndContinue(
	w http.ResponseWriter, r *http.Request, next http.Handler,
	store tenant.Store, key string, tier tenant.Tier, logger *slog.Logger,
) bool {
	found, err := tenant.Authenticate(r.Context(), store, key, tier)
	if err != nil {
		var authErr *tenant.AuthError
		if errors.As(err, &authErr) {
			writeAuthError(w, r, logger, authErr)
		} else {
			writeAuthError(w, r, logger, &tenant.AuthError{Type: err})
		}

		return true
	}

	tenantCtx := TenantContext{
		TenantID: found.TenantID,
		Tier:     found.Tier,
		KeyID:    found.ID,
		AuthTime: time.Now(),
	}

	next.ServeHTTP(w, r.WithContext(SetTenantContext(r.Context(), tenantCtx)))

	return true
}

// withTenantFallback honors an unauthenticated X-Tenant-Id header when no
// API key authenticated the call.
func withTenantFallback(r *http.Request) context.Context {
	if tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-Id")); tenantID != "" {
		return SetTenantContext(r.Context(), TenantContext{TenantID: tenantID, Tier: tenant.TierTenant})
	}

	return r.Context()
}

func mandatoryPath(path string, protectPrefixes, exemptPaths []string) bool {
	for _, exempt := range exemptPaths {
		if path == exempt {
			return false
		}
	}

	for _, prefix := range protectPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func extractKeyFromHeader(r *http.Request, header string) (string, bool) {
	if v := r.Header.Get(header); v != "" {
		return cleanAPIKey(v)
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return cleanAPIKey(strings.TrimPrefix(auth, "Bearer "))
	}

	return "", false
}

func cleanAPIKey(key string) (string, bool) {
	if strings.ContainsAny(key, "\r\n") {
		return "", false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}

	return key, true
}

// writeAuthError writes an RFC 7807 response for an authentication
// failure, mapping every tenant.AuthError sentinel to 401 (spec §7:
// "Auth | HTTP 401 | Immediate, no job side-effects").
func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	correlationID := GetCorrelationID(r.Context())

	logger.Warn("authentication failed",
		slog.String("reason", err.Error()),
		slog.String("correlation_id", correlationID),
		slog.String("path", r.URL.Path),
	)

	if werr := writeRFC7807Error(w, r, http.StatusUnauthorized, err.Error(), correlationID); werr != nil {
		logger.Error("failed to write auth error response",
			slog.String("correlation_id", correlationID),
			slog.Any("error", werr),
		)

		http.Error(w, err.Error(), http.StatusUnauthorized)
	}
}
