package api

import (
	"compress/gzip"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linelot/linelot/internal/flatten"
)

// handleFlattenByProductIDs implements
// GET /analytics/traceability/flatten?product_ids=a,b,c (spec §4.G/§6).
func (s *Server) handleFlattenByProductIDs(w http.ResponseWriter, r *http.Request) {
	s.runFlatten(w, r, flatten.Query{ProductIDs: queryCSV(r, "product_ids")})
}

// handleFlattenMonthly implements
// GET /analytics/traceability/flatten/monthly?year=YYYY&month=1..12.
func (s *Server) handleFlattenMonthly(w http.ResponseWriter, r *http.Request) {
	s.runFlatten(w, r, flatten.Query{Year: queryInt(r, "year", 0), Month: queryInt(r, "month", 0)})
}

func (s *Server) runFlatten(w http.ResponseWriter, r *http.Request, q flatten.Query) {
	result, err := s.flattener.Flatten(r.Context(), callerTenantID(r), q)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	resp := toFlattenResponse(result)

	switch result.Metadata.Compression {
	case "gzip", "gzip_forced":
		writeGzipJSON(w, r, s.logger, resp)
	default:
		writeJSON(w, r, s.logger, http.StatusOK, resp)
	}
}

// writeGzipJSON writes resp gzip-compressed with an explicit
// Content-Encoding header, per spec §4.G's auto-gzip tiers.
func writeGzipJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, resp FlattenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	defer gz.Close()

	if err := json.NewEncoder(gz).Encode(resp); err != nil {
		logger.Error("failed to encode gzip response",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
}

// handleFlattenHealth implements GET /analytics/traceability/health: caps
// and config echo (spec §6).
func (s *Server) handleFlattenHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.logger, http.StatusOK, FlattenHealthResponse{
		MaxProductIDs:     flatten.MaxProductIDs,
		AutoGzipThreshold: s.config.AutoGzipThreshold,
		ForcedGzipMax:     s.config.MaxRecordsWarn,
		HardCap:           s.config.MaxRecordsHardCap,
	})
}
