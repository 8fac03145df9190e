package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/linelot/linelot/internal/tracing"
)

// Compile-time interface assertion: early failure if tracing.Store changes shape.
var _ tracing.Store = (*TracingStore)(nil)

const (
	cleanupQueryTimeout = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
	cleanupBatchSize    = 10000
	batchSleepDuration  = 100 * time.Millisecond

	// stagingRowTTL is the retention window for committed/failed staging
	// rows before the background cleanup purges them (spec open question:
	// staging row retention).
	stagingRowTTL = 7 * 24 * time.Hour
)

// TracingStore implements tracing.Store with a PostgreSQL backend. It
// upserts P1/P2/P3 records with row-level locking for race-safe
// concurrent writers (spec §5), and runs a background TTL cleanup of
// staging rows belonging to terminal import jobs.
type TracingStore struct {
	conn            *Connection
	logger          *slog.Logger
	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupDone     chan struct{}
	closeOnce       sync.Once
}

// NewTracingStore constructs a TracingStore and starts its background
// staging-row cleanup goroutine.
func NewTracingStore(conn *Connection, cleanupInterval time.Duration) (*TracingStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if cleanupInterval <= 0 {
		return nil, ErrInvalidCleanupInterval
	}

	s := &TracingStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: getEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		cleanupInterval: cleanupInterval,
		cleanupStop:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	go s.runCleanup()

	return s, nil
}

// Close stops the cleanup goroutine gracefully. Safe to call multiple times.
// Does not close the underlying connection, which is owned externally.
func (s *TracingStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.cleanupStop)

		select {
		case <-s.cleanupDone:
			s.logger.Info("staging row cleanup goroutine stopped gracefully")
		case <-time.After(shutdownTimeout):
			s.logger.Warn("staging row cleanup goroutine did not stop within timeout")
		}
	})

	return nil
}

// HealthCheck delegates to the underlying connection.
func (s *TracingStore) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	return s.conn.HealthCheck(ctx)
}

// CommitRecords writes every header and item in batch inside one
// transaction: the whole job's commit lands, or none of it does (spec
// §4.F "single DB transaction", §4.C "all writes in a commit for one job
// must occur in a single transaction", testable invariant #4). Any
// failure — including a unique-constraint violation translated by
// translatePQError — rolls back every write this call made, including
// earlier lots in the same batch.
func (s *TracingStore) CommitRecords(ctx context.Context, tenantID string, batch tracing.CommitBatch) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrTracingStoreFailed, err)
	}

	defer func() { _ = tx.Rollback() }()

	switch batch.Table {
	case tracing.TableP1:
		for _, rec := range batch.P1 {
			if _, err := s.upsertP1Tx(ctx, tx, tenantID, rec.LotNoNorm, rec); err != nil {
				return err
			}
		}
	case tracing.TableP2:
		for _, commit := range batch.P2 {
			p2ID, err := s.upsertHeaderTx(ctx, tx, "p2_records", tenantID, commit.LotNoNorm,
				commit.Header.LotNoRaw, commit.Header.ProductionDate, commit.Header)
			if err != nil {
				return err
			}

			for _, item := range commit.Items {
				item.P2RecordID = p2ID
			}

			if err := s.insertP2ItemsTx(ctx, tx, p2ID, commit.Items); err != nil {
				return err
			}
		}
	case tracing.TableP3:
		for _, commit := range batch.P3 {
			p3ID, err := s.upsertHeaderTx(ctx, tx, "p3_records", tenantID, commit.LotNoNorm,
				commit.Header.LotNoRaw, commit.Header.ProductionDate, commit.Header)
			if err != nil {
				return err
			}

			for _, item := range commit.Items {
				item.P3RecordID = p3ID
			}

			if err := s.insertP3ItemsTx(ctx, tx, p3ID, commit.Items); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown table_code %q", ErrTracingStoreFailed, batch.Table)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTracingStoreFailed, err)
	}

	return nil
}

// upsertP1Tx inserts or updates a P1 record, keyed on (tenant_id,
// lot_no_norm), within the caller's transaction. Uses FOR UPDATE to
// serialize concurrent writers for the same lot (spec §5).
func (s *TracingStore) upsertP1Tx(ctx context.Context, tx *sql.Tx, tenantID string, lotNoNorm int64, rec *tracing.P1Record) (string, error) {
	var existingID string

	err := tx.QueryRowContext(ctx, `
		SELECT id FROM p1_records WHERE tenant_id = $1 AND lot_no_norm = $2 FOR UPDATE
	`, tenantID, lotNoNorm).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		rowJSON, mErr := json.Marshal(rec)
		if mErr != nil {
			return "", fmt.Errorf("marshal p1 record: %w", mErr)
		}

		id := newID()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO p1_records (id, tenant_id, lot_no_raw, lot_no_norm, production_date, row_data, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, id, tenantID, rec.LotNoRaw, lotNoNorm, rec.ProductionDate, rowJSON)
		if err != nil {
			return "", translatePQError(err)
		}

		existingID = id
	case err != nil:
		return "", fmt.Errorf("%w: lookup p1: %w", ErrTracingStoreFailed, err)
	default:
		rowJSON, mErr := json.Marshal(rec)
		if mErr != nil {
			return "", fmt.Errorf("marshal p1 record: %w", mErr)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE p1_records SET lot_no_raw = $1, production_date = $2, row_data = $3, updated_at = NOW()
			WHERE id = $4
		`, rec.LotNoRaw, rec.ProductionDate, rowJSON, existingID)
		if err != nil {
			return "", translatePQError(err)
		}
	}

	return existingID, nil
}

// upsertHeaderTx is the shared P2/P3 header upsert, keyed on (tenant_id,
// lot_no_norm) like upsertP1Tx, within the caller's transaction.
// lot_no_raw and production_date are kept as direct columns (not just
// inside row_data) so the flattener and query API can filter/sort on
// them in SQL without unpacking JSONB per row.
func (s *TracingStore) upsertHeaderTx(
	ctx context.Context, tx *sql.Tx, table, tenantID string, lotNoNorm int64,
	lotNoRaw string, productionDate time.Time, rec interface{},
) (string, error) {
	rowJSON, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal header record: %w", err)
	}

	var existingID string

	query := fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND lot_no_norm = $2 FOR UPDATE`, table) //nolint:gosec // table is a fixed internal constant, never user input

	err = tx.QueryRowContext(ctx, query, tenantID, lotNoNorm).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := newID()

		insertQuery := fmt.Sprintf(`
			INSERT INTO %s (id, tenant_id, lot_no_raw, lot_no_norm, production_date, row_data, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, table) //nolint:gosec

		if _, err = tx.ExecContext(ctx, insertQuery, id, tenantID, lotNoRaw, lotNoNorm, productionDate, rowJSON); err != nil {
			return "", translatePQError(err)
		}

		existingID = id
	case err != nil:
		return "", fmt.Errorf("%w: lookup header: %w", ErrTracingStoreFailed, err)
	default:
		updateQuery := fmt.Sprintf(`
			UPDATE %s SET lot_no_raw = $1, production_date = $2, row_data = $3, updated_at = NOW() WHERE id = $4
		`, table) //nolint:gosec

		if _, err = tx.ExecContext(ctx, updateQuery, lotNoRaw, productionDate, rowJSON, existingID); err != nil {
			return "", translatePQError(err)
		}
	}

	return existingID, nil
}

// insertP2ItemsTx replaces all winder items for a P2 header with the
// given set (delete-then-insert, matching the teacher's replace-semantics
// pattern for child rows that have no independent identity), within the
// caller's transaction.
func (s *TracingStore) insertP2ItemsTx(ctx context.Context, tx *sql.Tx, p2RecordID string, items []*tracing.P2Item) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM p2_items WHERE p2_record_id = $1`, p2RecordID); err != nil {
		return fmt.Errorf("%w: clear p2 items: %w", ErrTracingStoreFailed, err)
	}

	for _, item := range items {
		rowJSON, mErr := json.Marshal(item)
		if mErr != nil {
			return fmt.Errorf("marshal p2 item: %w", mErr)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO p2_items (
				id, p2_record_id, tenant_id, winder_number, sheet_width,
				thickness_1, thickness_2, thickness_3, thickness_4, thickness_5, thickness_6, thickness_7,
				appearance, rough_edge, slitting_result, row_data, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		`, newID(), p2RecordID, item.TenantID, item.WinderNumber, item.SheetWidth,
			item.Thickness[0], item.Thickness[1], item.Thickness[2], item.Thickness[3],
			item.Thickness[4], item.Thickness[5], item.Thickness[6],
			item.Appearance, item.RoughEdge, item.SlittingResult, rowJSON)
		if err != nil {
			return translatePQError(err)
		}
	}

	return nil
}

// insertP3ItemsTx replaces all row items for a P3 header
// (delete-then-insert), within the caller's transaction.
func (s *TracingStore) insertP3ItemsTx(ctx context.Context, tx *sql.Tx, p3RecordID string, items []*tracing.P3Item) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM p3_items WHERE p3_record_id = $1`, p3RecordID); err != nil {
		return fmt.Errorf("%w: clear p3 items: %w", ErrTracingStoreFailed, err)
	}

	for _, item := range items {
		rowJSON, mErr := json.Marshal(item)
		if mErr != nil {
			return fmt.Errorf("marshal p3 item: %w", mErr)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO p3_items (id, p3_record_id, tenant_id, row_no, product_id, machine_no, mold_no, row_data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, newID(), p3RecordID, item.TenantID, item.RowNo, item.ProductID, item.MachineNo, item.MoldNo, rowJSON)
		if err != nil {
			return translatePQError(err)
		}
	}

	return nil
}

// FindByLot looks up the P1 and P2 headers for a given (tenant_id,
// lot_no_norm), used by the cross-table validation layer. Only the IDs
// are filled in, P3 is not looked up, and (nil, nil) means neither
// header exists.
func (s *TracingStore) FindByLot(ctx context.Context, tenantID string, lotNoNorm int64) (*tracing.FoundRecords, error) {
	found := &tracing.FoundRecords{}

	var p1ID string

	err := s.conn.QueryRowContext(ctx, `SELECT id FROM p1_records WHERE tenant_id = $1 AND lot_no_norm = $2`,
		tenantID, lotNoNorm).Scan(&p1ID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("%w: find p1: %w", ErrTracingStoreFailed, err)
	default:
		found.P1 = &tracing.P1Record{ID: p1ID, TenantID: tenantID}
	}

	var p2ID string

	err = s.conn.QueryRowContext(ctx, `SELECT id FROM p2_records WHERE tenant_id = $1 AND lot_no_norm = $2`,
		tenantID, lotNoNorm).Scan(&p2ID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("%w: find p2: %w", ErrTracingStoreFailed, err)
	default:
		found.P2 = &tracing.P2Record{ID: p2ID, TenantID: tenantID}
	}

	if found.P1 == nil && found.P2 == nil {
		return nil, nil //nolint:nilnil // "not found" is a valid, distinct result from "error"
	}

	return found, nil
}

// CreateJob inserts an import job and its associated uploaded files in a
// single transaction.
func (s *TracingStore) CreateJob(ctx context.Context, job *tracing.ImportJob, files []*tracing.ImportFile) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrTracingStoreFailed, err)
	}

	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO import_jobs (
			id, tenant_id, table_code, status, progress, total_rows, error_count,
			schema_version_id, error_summary, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, job.ID, job.TenantID, job.TableCode, job.Status, job.Progress, job.TotalRows, job.ErrorCount,
		job.SchemaVersionID, marshalErrorSummary(job.ErrorSummary))
	if err != nil {
		return translatePQError(err)
	}

	for _, f := range files {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO import_files (id, job_id, filename, sha256, format, size_bytes, blob_ref, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, f.ID, job.ID, f.Filename, f.SHA256, f.Format, f.SizeBytes, f.BlobRef)
		if err != nil {
			return translatePQError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTracingStoreFailed, err)
	}

	return nil
}

// GetJob fetches an import job by ID.
func (s *TracingStore) GetJob(ctx context.Context, jobID string) (*tracing.ImportJob, error) {
	job := &tracing.ImportJob{}

	var errorSummaryJSON []byte

	err := s.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, table_code, status, progress, total_rows, error_count,
		       schema_version_id, error_summary, created_at, updated_at
		FROM import_jobs WHERE id = $1
	`, jobID).Scan(
		&job.ID, &job.TenantID, &job.TableCode, &job.Status, &job.Progress, &job.TotalRows, &job.ErrorCount,
		&job.SchemaVersionID, &errorSummaryJSON, &job.CreatedAt, &job.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w: get job: %w", ErrTracingStoreFailed, err)
	}

	if len(errorSummaryJSON) > 0 && string(errorSummaryJSON) != "{}" {
		job.ErrorSummary = &tracing.ErrorSummary{}
		_ = json.Unmarshal(errorSummaryJSON, job.ErrorSummary)
	}

	return job, nil
}

// UpdateJobStatus persists a job's lifecycle transition (spec §4.C's
// ImportJob.Status). It matches the row by ID only and does not check the
// stored status; callers validate transitions with
// tracing.ValidateStateTransition before calling it.
func (s *TracingStore) UpdateJobStatus(ctx context.Context, job *tracing.ImportJob) error {
	result, err := s.conn.ExecContext(ctx, `
		UPDATE import_jobs SET status = $1, progress = $2, total_rows = $3, error_count = $4, error_summary = $5, updated_at = NOW()
		WHERE id = $6
	`, job.Status, job.Progress, job.TotalRows, job.ErrorCount, marshalErrorSummary(job.ErrorSummary), job.ID)
	if err != nil {
		return translatePQError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", ErrTracingStoreFailed, err)
	}

	if rows == 0 {
		return ErrJobNotFound
	}

	return nil
}

func marshalErrorSummary(summary *tracing.ErrorSummary) []byte {
	if summary == nil {
		return []byte("{}")
	}

	b, err := json.Marshal(summary)
	if err != nil {
		return []byte("{}")
	}

	return b
}

// InsertStagingRows bulk-inserts parsed staging rows for a job.
func (s *TracingStore) InsertStagingRows(ctx context.Context, rows []*tracing.StagingRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrTracingStoreFailed, err)
	}

	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		parsedJSON, mErr := json.Marshal(r.ParsedJSON)
		if mErr != nil {
			return fmt.Errorf("marshal staging row: %w", mErr)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO staging_rows (id, job_id, file_id, row_index, parsed_json, errors, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, r.ID, r.JobID, r.FileID, r.RowIndex, parsedJSON, marshalErrors(r.Errors))
		if err != nil {
			return translatePQError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTracingStoreFailed, err)
	}

	return nil
}

// ListStagingRows returns all staging rows for a job, ordered by row_index.
func (s *TracingStore) ListStagingRows(ctx context.Context, jobID string) ([]*tracing.StagingRow, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, job_id, file_id, row_index, parsed_json, errors FROM staging_rows WHERE job_id = $1 ORDER BY row_index
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: list staging rows: %w", ErrTracingStoreFailed, err)
	}

	defer func() { _ = rows.Close() }()

	return scanStagingRows(rows)
}

func scanStagingRows(rows *sql.Rows) ([]*tracing.StagingRow, error) {
	var out []*tracing.StagingRow

	for rows.Next() {
		r := &tracing.StagingRow{}

		var parsedJSON, errorsJSON []byte

		if err := rows.Scan(&r.ID, &r.JobID, &r.FileID, &r.RowIndex, &parsedJSON, &errorsJSON); err != nil {
			return nil, fmt.Errorf("%w: scan staging row: %w", ErrTracingStoreFailed, err)
		}

		if err := json.Unmarshal(parsedJSON, &r.ParsedJSON); err != nil {
			return nil, fmt.Errorf("unmarshal staging row: %w", err)
		}

		if len(errorsJSON) > 0 {
			_ = json.Unmarshal(errorsJSON, &r.Errors)
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate staging rows: %w", ErrTracingStoreFailed, err)
	}

	return out, nil
}

// UpdateStagingRowErrors attaches the validator's findings to a staging row.
func (s *TracingStore) UpdateStagingRowErrors(ctx context.Context, rowID string, errs []tracing.ErrorEntry) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE staging_rows SET errors = $1 WHERE id = $2`, marshalErrors(errs), rowID)
	if err != nil {
		return translatePQError(err)
	}

	return nil
}

func marshalErrors(errs []tracing.ErrorEntry) []byte {
	if len(errs) == 0 {
		return []byte("[]")
	}

	b, err := json.Marshal(errs)
	if err != nil {
		return []byte("[]")
	}

	return b
}

// ListErrors returns staging rows that carry at least one error entry,
// paginated for the review UI (spec §4.F).
func (s *TracingStore) ListErrors(ctx context.Context, jobID string, page, pageSize int) ([]*tracing.StagingRow, error) {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = 1
	}

	offset := (page - 1) * pageSize

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, job_id, file_id, row_index, parsed_json, errors FROM staging_rows
		WHERE job_id = $1 AND errors IS NOT NULL AND errors::text != '[]'
		ORDER BY row_index LIMIT $2 OFFSET $3
	`, jobID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list errors: %w", ErrTracingStoreFailed, err)
	}

	defer func() { _ = rows.Close() }()

	return scanStagingRows(rows)
}

// FileAlreadyCommitted checks whether a file with the given SHA-256 has
// already been committed for this tenant/table (spec §4.F's E_FILE_DUPLICATE).
func (s *TracingStore) FileAlreadyCommitted(ctx context.Context, tenantID string, table tracing.TableCode, sha256Hex string) (bool, error) {
	var exists bool

	err := s.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM import_files f
			JOIN import_jobs j ON j.id = f.job_id
			WHERE j.tenant_id = $1 AND j.table_code = $2 AND f.sha256 = $3 AND j.status = 'COMPLETED'
		)
	`, tenantID, table, sha256Hex).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check duplicate file: %w", ErrTracingStoreFailed, err)
	}

	return exists, nil
}

// CommitJob marks a job COMPLETED. CommitRecords has already written and
// committed the whole batch by this point; this only flips the job's
// terminal status. The advisory cross-table validation check run earlier
// may still race with other writers -- DB unique/FK constraints remain the
// true authority there (spec §9 "Commit vs validation authority").
func (s *TracingStore) CommitJob(ctx context.Context, job *tracing.ImportJob) error {
	return s.UpdateJobStatus(ctx, job)
}

func newID() string {
	return uuidNew()
}

// runCleanup periodically purges staging rows belonging to terminal
// (COMPLETED/FAILED/CANCELLED) jobs older than stagingRowTTL.
func (s *TracingStore) runCleanup() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-s.cleanupStop:
			cancel()
			return
		case <-ticker.C:
			cleanupCtx, cleanupCancel := context.WithTimeout(ctx, cleanupQueryTimeout)
			s.cleanupExpiredStagingRows(cleanupCtx)
			cleanupCancel()
		}
	}
}

func (s *TracingStore) cleanupExpiredStagingRows(ctx context.Context) {
	if s.conn == nil {
		return
	}

	cutoff := time.Now().Add(-stagingRowTTL)
	totalDeleted := int64(0)

	for {
		if ctx.Err() != nil {
			return
		}

		result, err := s.conn.ExecContext(ctx, `
			DELETE FROM staging_rows
			WHERE id IN (
				SELECT sr.id FROM staging_rows sr
				JOIN import_jobs j ON j.id = sr.job_id
				WHERE j.status IN ('COMPLETED', 'FAILED', 'CANCELLED') AND sr.created_at < $1
				LIMIT $2
			)
		`, cutoff, cleanupBatchSize)
		if err != nil {
			s.logger.Error("staging row cleanup failed", slog.String("error", err.Error()))

			return
		}

		rowsDeleted, err := result.RowsAffected()
		if err != nil || rowsDeleted < cleanupBatchSize {
			break
		}

		totalDeleted += rowsDeleted

		select {
		case <-ctx.Done():
			return
		case <-time.After(batchSleepDuration):
		}
	}

	if totalDeleted > 0 {
		s.logger.Info("purged expired staging rows", slog.Int64("rows_deleted", totalDeleted))
	}
}

// translatePQError maps PostgreSQL constraint-violation codes to the
// closed domain error vocabulary (spec §7).
func translatePQError(err error) error {
	var pqErr *pq.Error

	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return fmt.Errorf("%w: %s", tracing.ErrUniqueInDB, pqErr.Constraint)
		case strings.HasPrefix(string(pqErr.Code), "23503"): // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pqErr.Constraint)
		}
	}

	return fmt.Errorf("%w: %w", ErrTracingStoreFailed, err)
}
