package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// registerRoutes wires every spec §6 endpoint onto mux, using Go's
// method-prefixed ServeMux patterns (the teacher's own "GET /path"
// convention, generalized here with {wildcard} path parameters).
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Public/probe endpoints (spec's supplemented readiness feature).
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("/", s.handleNotFound)

	// Ingestion (spec §6 "Ingestion").
	mux.HandleFunc("POST /import/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /import/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /import/jobs/{id}/errors", s.handleListJobErrors)
	mux.HandleFunc("POST /import/jobs/{id}/cancel", s.handleCancelJob)
	mux.HandleFunc("POST /import/jobs/{id}/commit", s.handleCommitJob)

	// Query (spec §6 "Query").
	mux.HandleFunc("GET /query/records", s.handleSearch)
	mux.HandleFunc("GET /query/records/advanced", s.handleSearch)
	mux.HandleFunc("GET /query/trace/{trace_key}", s.handleTrace)
	mux.HandleFunc("GET /query/lots/suggestions", s.handleLotSuggestions)
	mux.HandleFunc("GET /query/options/{field}", s.handleOptions)

	// Flattener (spec §6 "Flattener").
	mux.HandleFunc("GET /analytics/traceability/flatten", s.handleFlattenByProductIDs)
	mux.HandleFunc("GET /analytics/traceability/flatten/monthly", s.handleFlattenMonthly)
	mux.HandleFunc("GET /analytics/traceability/health", s.handleFlattenHealth)

	// Tenant / Auth (spec §6 "Tenant / Auth").
	mux.HandleFunc("GET /tenants", s.handleListTenants)
	mux.HandleFunc("POST /tenants", s.handleCreateTenant)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/users", s.handleCreateUser)
}

// handlePing is a bare liveness probe, matching the teacher's handlePing.
func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// handleHealthz is the readiness probe: a bounded DB ping, 503 on
// failure (spec's supplemented health endpoint).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			WriteErrorResponse(w, r, s.logger, InternalServerError("database unreachable").WithInstance(r.URL.Path))

			return
		}
	}

	writeJSON(w, r, s.logger, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		writeJSON(w, r, s.logger, http.StatusOK, HealthResponse{Status: "ok"})

		return
	}

	WriteErrorResponse(w, r, s.logger, NotFound("no route for "+r.Method+" "+r.URL.Path))
}
