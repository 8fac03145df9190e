package middleware

import (
	"log/slog"
	"net/http"
	"slices"
)

// AuditConfig controls the best-effort audit log spec §6's
// AUDIT_EVENTS_ENABLED/AUDIT_EVENTS_METHODS describe.
type AuditConfig struct {
	Enabled bool
	Methods []string
}

// Audit logs one structured entry per request whose method is in
// cfg.Methods, after the handler has run (so the recorded status
// reflects the actual outcome). It never blocks or alters the response.
func Audit(cfg AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(cfg.Methods, r.Method) {
				next.ServeHTTP(w, r)

				return
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			tenantID := ""
			if tenantCtx, ok := GetTenantContext(r.Context()); ok {
				tenantID = tenantCtx.TenantID
			}

			logger.Info("audit",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", rw.statusCode),
				slog.String("tenant_id", tenantID),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
			)
		})
	}
}
