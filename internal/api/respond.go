package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/linelot/linelot/internal/flatten"
	"github.com/linelot/linelot/internal/ingest"
	"github.com/linelot/linelot/internal/query"
	"github.com/linelot/linelot/internal/storage"
	"github.com/linelot/linelot/internal/tenant"
	"github.com/linelot/linelot/internal/tracing"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
}

// writeDomainError maps a domain-layer error to its RFC 7807 response,
// following the closed error-code-family -> HTTP-status table spec §7
// defines. Errors with no specific mapping fall back to 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	problem := problemFromError(err)
	WriteErrorResponse(w, r, logger, problem)
}

func problemFromError(err error) *ProblemDetail {
	switch {
	case errors.Is(err, ingest.ErrNoFiles):
		return BadRequest(err.Error())

	case errors.Is(err, tracing.ErrCommitNotReady),
		errors.Is(err, tracing.ErrCancelPastReady),
		errors.Is(err, tracing.ErrCommitRefusedErrorCount),
		errors.Is(err, tracing.ErrInvalidTransition),
		errors.Is(err, tracing.ErrTerminalStateImmutable):
		return Conflict(err.Error())

	case errors.Is(err, tracing.ErrUniqueInDB):
		return UnprocessableEntity(err.Error()).WithCode(string(tracing.ECUniqueInDB))

	case errors.Is(err, storage.ErrJobNotFound):
		return NotFound(err.Error())

	case errors.Is(err, query.ErrTraceKeyInvalid):
		return BadRequest(err.Error())

	case errors.Is(err, flatten.ErrTooManyProductIDs):
		return BadRequest(err.Error())

	case errors.Is(err, flatten.ErrResultTooLarge):
		return TooManyRequests(err.Error()).WithCode(string(tracing.ECResultTooLarge))

	case errors.Is(err, flatten.ErrEmptyQuery):
		return BadRequest(err.Error())

	case errors.Is(err, tenant.ErrCodeEmpty), errors.Is(err, tenant.ErrNameEmpty), errors.Is(err, tenant.ErrLabelEmpty):
		return BadRequest(err.Error())

	case errors.Is(err, tenant.ErrInvalidLogin):
		return Unauthorized(err.Error())

	default:
		var authErr *tenant.AuthError
		if errors.As(err, &authErr) {
			return Unauthorized(err.Error())
		}

		return InternalServerError(err.Error())
	}
}

// decodeJSONBody decodes r's body into v, capped at maxBodyBytes to keep
// a malicious Content-Length from exhausting memory.
const maxBodyBytes = 1 << 20

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	return json.NewDecoder(r.Body).Decode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func queryCSV(r *http.Request, key string) []string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
