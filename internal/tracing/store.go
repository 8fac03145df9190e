package tracing

import (
	"context"
	"errors"
)

// ErrUniqueInDB is returned when a commit-time unique constraint violation
// occurs (E_UNIQUE_IN_DB). The caller maps this to a row-targeted error on
// the offending staging row.
var ErrUniqueInDB = errors.New("unique constraint violation")

// FoundRecords is the result of a lot lookup across the lineage tables,
// used by the validator's cross-table layer.
type FoundRecords struct {
	P1 *P1Record
	P2 *P2Record
	P3 *P3Record
}

// P2Commit is one P2 lot's header plus its full replacement item set,
// written together inside CommitRecords.
type P2Commit struct {
	LotNoNorm int64
	Header    *P2Record
	Items     []*P2Item
}

// P3Commit is one P3 lot's header plus its full replacement item set,
// written together inside CommitRecords.
type P3Commit struct {
	LotNoNorm int64
	Header    *P3Record
	Items     []*P3Item
}

// CommitBatch groups every header/item a job's commit writes, built by
// the ingestion pipeline from validated staging rows. Exactly one of P1,
// P2, or P3 is populated, matching the job's TableCode.
type CommitBatch struct {
	Table TableCode
	P1    []*P1Record
	P2    []P2Commit
	P3    []P3Commit
}

// Store is the domain-owned persistence contract for the ingestion
// pipeline (Dependency Inversion: this package defines the interface,
// internal/storage provides the Postgres implementation — the same split
// the teacher uses between ingestion.Store and storage.LineageStore).
type Store interface {
	// CommitRecords writes every header and item in batch for tenantID in
	// a single database transaction: either every lot in the batch lands,
	// or the whole batch rolls back (spec §4.F "single DB transaction",
	// §4.C "all writes in a commit for one job must occur in a single
	// transaction", testable invariant #4). A unique-constraint violation
	// on any row aborts and rolls back the entire transaction, surfaced
	// wrapped in ErrUniqueInDB.
	CommitRecords(ctx context.Context, tenantID string, batch CommitBatch) error

	// FindByLot returns whichever of the P1 and P2 headers exist for
	// (tenant, lot_no_norm), or nil when neither does. P3 is not filled.
	FindByLot(ctx context.Context, tenantID string, lotNoNorm int64) (*FoundRecords, error)

	// CreateJob persists a new Import job (and its files) in UPLOADED or
	// FAILED status (batch-uniformity failures are persisted as FAILED
	// with no staging attempted).
	CreateJob(ctx context.Context, job *ImportJob, files []*ImportFile) error

	// GetJob fetches a job by ID.
	GetJob(ctx context.Context, id string) (*ImportJob, error)

	// UpdateJobStatus transitions a job's status/progress/error fields.
	UpdateJobStatus(ctx context.Context, job *ImportJob) error

	// InsertStagingRows appends parsed rows for a job (called in chunks
	// during PARSING).
	InsertStagingRows(ctx context.Context, rows []*StagingRow) error

	// ListStagingRows returns staging rows for a job in row_index order,
	// used by VALIDATING and COMMITTING.
	ListStagingRows(ctx context.Context, jobID string) ([]*StagingRow, error)

	// UpdateStagingRowErrors persists the errors_json for one staging row.
	UpdateStagingRowErrors(ctx context.Context, rowID string, errs []ErrorEntry) error

	// ListErrors returns a page of staging rows with non-nil errors for a job.
	ListErrors(ctx context.Context, jobID string, page, pageSize int) ([]*StagingRow, error)

	// FileAlreadyCommitted reports whether (tenant, table_code, sha256)
	// was already committed by a prior job (E_FILE_DUPLICATE check).
	FileAlreadyCommitted(ctx context.Context, tenantID string, table TableCode, sha256 string) (bool, error)

	// CommitJob flips a job to COMPLETED once CommitRecords has succeeded
	// for the whole batch. The advisory cross-table validation check may
	// still race with other writers; DB unique/FK constraints remain the
	// true authority there (spec §9 "Commit vs validation authority") —
	// that note concerns the validation race, not CommitRecords'
	// atomicity, which is unconditional.
	CommitJob(ctx context.Context, job *ImportJob) error

	// HealthCheck verifies the storage backend is reachable.
	HealthCheck(ctx context.Context) error
}
