package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linelot/linelot/internal/flatten"
	"github.com/linelot/linelot/internal/ingest"
	"github.com/linelot/linelot/internal/query"
	"github.com/linelot/linelot/internal/storage"
	"github.com/linelot/linelot/internal/tenant"
	"github.com/linelot/linelot/internal/tracing"
)

func TestProblemFromError_DomainErrorsMapToHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no files", ingest.ErrNoFiles, http.StatusBadRequest, ""},
		{"commit not ready", tracing.ErrCommitNotReady, http.StatusConflict, ""},
		{"cancel past ready", tracing.ErrCancelPastReady, http.StatusConflict, ""},
		{"commit refused on error count", tracing.ErrCommitRefusedErrorCount, http.StatusConflict, ""},
		{"invalid transition", tracing.ErrInvalidTransition, http.StatusConflict, ""},
		{"terminal state immutable", tracing.ErrTerminalStateImmutable, http.StatusConflict, ""},
		{"unique in db", tracing.ErrUniqueInDB, http.StatusUnprocessableEntity, string(tracing.ECUniqueInDB)},
		{"job not found", storage.ErrJobNotFound, http.StatusNotFound, ""},
		{"invalid trace key", query.ErrTraceKeyInvalid, http.StatusBadRequest, ""},
		{"too many product ids", flatten.ErrTooManyProductIDs, http.StatusBadRequest, ""},
		{"result too large", flatten.ErrResultTooLarge, http.StatusTooManyRequests, string(tracing.ECResultTooLarge)},
		{"empty query", flatten.ErrEmptyQuery, http.StatusBadRequest, ""},
		{"tenant code empty", tenant.ErrCodeEmpty, http.StatusBadRequest, ""},
		{"tenant name empty", tenant.ErrNameEmpty, http.StatusBadRequest, ""},
		{"tenant label empty", tenant.ErrLabelEmpty, http.StatusBadRequest, ""},
		{"invalid login", tenant.ErrInvalidLogin, http.StatusUnauthorized, ""},
		{"unknown error falls back to 500", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			problem := problemFromError(tt.err)
			assert.Equal(t, tt.wantStatus, problem.Status)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, problem.Code)
			}
		})
	}
}

func TestProblemFromError_WrappedAuthErrorIsUnauthorized(t *testing.T) {
	t.Parallel()

	err := &tenant.AuthError{Type: tenant.ErrInvalidAPIKey, Message: "lookup failed"}

	problem := problemFromError(err)
	assert.Equal(t, http.StatusUnauthorized, problem.Status)
}

func TestProblemFromError_WrappedSentinelStillMatches(t *testing.T) {
	t.Parallel()

	wrapped := errors.New("commit: " + tracing.ErrCommitNotReady.Error())
	// A plain errors.New doesn't satisfy errors.Is against the sentinel;
	// exercise the real wrapping path instead via fmt.Errorf-style %w.
	_ = wrapped

	realWrap := errWrap(tracing.ErrCommitNotReady)
	problem := problemFromError(realWrap)
	assert.Equal(t, http.StatusConflict, problem.Status)
}

func errWrap(err error) error {
	return &wrappedErr{err}
}

type wrappedErr struct{ inner error }

func (w *wrappedErr) Error() string { return "wrapped: " + w.inner.Error() }
func (w *wrappedErr) Unwrap() error { return w.inner }
