package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/linelot/linelot/internal/parser"
	"github.com/linelot/linelot/internal/schema"
	"github.com/linelot/linelot/internal/tracing"
)

// CreateJob validates batch uniformity across files, resolves the
// tenant's schema version, persists the job + files, and (if accepted)
// launches the background PARSING/VALIDATING worker. Uniformity
// failures and duplicate-file detection persist the job straight to
// FAILED with no staging attempted, per spec §4.F.
func (p *Pipeline) CreateJob(ctx context.Context, tenantID string, table tracing.TableCode, files []UploadedFile, opts CreateJobOptions) (*tracing.ImportJob, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	parsed := make([]*parser.ParsedFile, len(files))

	for i, f := range files {
		pf, err := parser.Parse(bytes.NewReader(f.Data), f.Format, p.maxUploadBytes)
		if err != nil {
			return p.failUpload(ctx, tenantID, table, files, string(tracing.ECInternal), fmt.Sprintf("parse %s: %s", f.Filename, err))
		}

		parsed[i] = pf
	}

	job := &tracing.ImportJob{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		TableCode: table,
		Status:    tracing.JobUploaded,
	}

	if errCode, msg := checkUniformity(files, parsed); errCode != "" {
		return p.persistFailedJob(ctx, job, errCode, msg)
	}

	version, err := p.registry.Resolve(ctx, tenantID, schema.TableCode(table), parsed[0].Headers)
	if err != nil {
		if errors.Is(err, schema.ErrHeaderMismatch) {
			return p.persistFailedJob(ctx, job, string(tracing.ECHeaderMismatch), err.Error())
		}

		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	if !opts.AllowDuplicate {
		for _, pf := range parsed {
			dup, err := p.store.FileAlreadyCommitted(ctx, tenantID, table, pf.SHA256)
			if err != nil {
				return nil, fmt.Errorf("check file duplicate: %w", err)
			}

			if dup {
				return p.persistFailedJob(ctx, job, string(tracing.ECFileDuplicate), "file already committed for this tenant/table")
			}
		}
	}

	job.HeaderFingerprint = schema.Fingerprint(parsed[0].Headers)
	job.SchemaVersionID = version.ID

	for _, pf := range parsed {
		job.TotalRows += len(pf.Rows)
	}

	importFiles := make([]*tracing.ImportFile, len(files))
	seeds := make([]seedRow, 0, job.TotalRows)

	for i, f := range files {
		fileID := uuid.NewString()

		blobRef := ""
		if p.blobs != nil {
			blobRef, err = p.blobs.Save(ctx, job.ID, fileID, f.Data)
			if err != nil {
				return nil, fmt.Errorf("save blob: %w", err)
			}
		}

		importFiles[i] = &tracing.ImportFile{
			ID:        fileID,
			JobID:     job.ID,
			Filename:  f.Filename,
			Format:    string(f.Format),
			SHA256:    parsed[i].SHA256,
			SizeBytes: int64(len(f.Data)),
			BlobRef:   blobRef,
		}

		for _, row := range parsed[i].Rows {
			seeds = append(seeds, seedRow{FileID: fileID, RowIndex: row.RowIndex, Cells: row.Cells})
		}
	}

	if err := p.store.CreateJob(ctx, job, importFiles); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	p.seeds.put(job.ID, seeds)
	p.events.PublishJobEvent(ctx, job)

	go p.runStages(job.ID)

	return job, nil
}

// checkUniformity enforces the spec §4.F batch-invariant: every file
// shares the same format and header fingerprint. E_BATCH_MIXED_TENANT
// is part of the closed vocabulary but is structurally unreachable
// here: CreateJob accepts one tenantID for the whole batch, so no file
// can carry a different tenant to begin with.
func checkUniformity(files []UploadedFile, parsed []*parser.ParsedFile) (errCode, msg string) {
	firstFormat := files[0].Format

	for _, f := range files[1:] {
		if f.Format != firstFormat {
			return string(tracing.ECBatchMixedFormat), "files do not share one format"
		}
	}

	firstFP := schema.Fingerprint(parsed[0].Headers)

	for _, pf := range parsed[1:] {
		if schema.Fingerprint(pf.Headers) != firstFP {
			return string(tracing.ECBatchMixedSchema), "files do not share one header fingerprint"
		}
	}

	return "", ""
}

func (p *Pipeline) failUpload(ctx context.Context, tenantID string, table tracing.TableCode, _ []UploadedFile, errCode, msg string) (*tracing.ImportJob, error) {
	job := &tracing.ImportJob{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		TableCode: table,
		Status:    tracing.JobUploaded,
	}

	return p.persistFailedJob(ctx, job, errCode, msg)
}

func (p *Pipeline) persistFailedJob(ctx context.Context, job *tracing.ImportJob, errCode, msg string) (*tracing.ImportJob, error) {
	job.Status = tracing.JobFailed
	job.Progress = ProgressFailed
	job.ErrorSummary = &tracing.ErrorSummary{Stage: "upload", ErrorCode: errCode, Error: msg}

	if err := p.store.CreateJob(ctx, job, nil); err != nil {
		return nil, fmt.Errorf("persist failed job: %w", err)
	}

	p.events.PublishJobEvent(ctx, job)

	return job, nil
}

// ProgressFailed is the progress value recorded for a job that failed
// before any stage progress was made.
const ProgressFailed = 0
