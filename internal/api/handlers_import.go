package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/linelot/linelot/internal/api/middleware"
	"github.com/linelot/linelot/internal/ingest"
	"github.com/linelot/linelot/internal/parser"
	"github.com/linelot/linelot/internal/tracing"
)

const defaultErrorsPageSize = 50

// handleCreateJob implements POST /import/jobs (spec §6 "Ingestion"):
// multipart table_code, allow_duplicate?, files[].
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	tenantID := callerTenantID(r)
	if tenantID == "" {
		WriteErrorResponse(w, r, s.logger, Unauthorized("tenant identity is required"))

		return
	}

	maxBytes := int64(s.config.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		WriteErrorResponse(w, r, s.logger, PayloadTooLarge("upload exceeds MAX_UPLOAD_SIZE_MB or is malformed"))

		return
	}

	table := tracing.TableCode(strings.ToUpper(r.FormValue("table_code")))
	if table != tracing.TableP1 && table != tracing.TableP2 && table != tracing.TableP3 {
		WriteErrorResponse(w, r, s.logger, BadRequest("table_code must be one of P1, P2, P3"))

		return
	}

	allowDuplicate, _ := strconv.ParseBool(r.FormValue("allow_duplicate"))

	files, err := collectUploadedFiles(r)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	job, err := s.pipeline.CreateJob(r.Context(), tenantID, table, files, ingest.CreateJobOptions{AllowDuplicate: allowDuplicate})
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusCreated, toImportJobResponse(job))
}

// collectUploadedFiles reads every multipart file field named "files"
// (and the singular "file", for a single-file convenience) into memory,
// classifying format from the file extension.
func collectUploadedFiles(r *http.Request) ([]ingest.UploadedFile, error) {
	var headers []*multipart.FileHeader

	if r.MultipartForm != nil {
		for _, key := range []string{"files", "file"} {
			headers = append(headers, r.MultipartForm.File[key]...)
		}
	}

	if len(headers) == 0 {
		return nil, ingest.ErrNoFiles
	}

	out := make([]ingest.UploadedFile, 0, len(headers))

	for _, fh := range headers {
		format, err := formatFromFilename(fh.Filename)
		if err != nil {
			return nil, err
		}

		data, err := readMultipartFile(fh)
		if err != nil {
			return nil, err
		}

		out = append(out, ingest.UploadedFile{Filename: fh.Filename, Format: format, Data: data})
	}

	return out, nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func formatFromFilename(name string) (parser.Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return parser.FormatCSV, nil
	case ".xlsx":
		return parser.FormatXLSX, nil
	default:
		return "", parser.ErrUnsupportedFormat
	}
}

// handleGetJob implements GET /import/jobs/{id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.pipeline.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, toImportJobResponse(job))
}

// handleListJobErrors implements GET /import/jobs/{id}/errors?page=&page_size=.
func (s *Server) handleListJobErrors(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", defaultErrorsPageSize)

	rows, err := s.pipeline.ListErrors(r.Context(), r.PathValue("id"), page, pageSize)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	out := make([]StagingRowErrorResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toStagingRowErrorResponse(row))
	}

	writeJSON(w, r, s.logger, http.StatusOK, out)
}

// handleCancelJob implements POST /import/jobs/{id}/cancel.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.pipeline.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, toImportJobResponse(job))
}

// handleCommitJob implements POST /import/jobs/{id}/commit.
func (s *Server) handleCommitJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.pipeline.Commit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, toImportJobResponse(job))
}

// callerTenantID reads the tenant identity AuthenticateTenant resolved
// (from an API key or the X-Tenant-Id fallback).
func callerTenantID(r *http.Request) string {
	if tenantCtx, ok := middleware.GetTenantContext(r.Context()); ok {
		return tenantCtx.TenantID
	}

	return ""
}
