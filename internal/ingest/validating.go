package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/linelot/linelot/internal/normalize"
	"github.com/linelot/linelot/internal/schema"
	"github.com/linelot/linelot/internal/tracing"
)

// rowWork tracks one staging row through the four validation layers
// (spec §4.D): column/cross-field errors accumulate eagerly; a row that
// survives both is eligible for the cross-row/cross-table layers, which
// run grouped by source file (cross-row uniqueness is scoped "within
// file" per spec §4.D item 3).
type rowWork struct {
	row      *tracing.StagingRow
	errs     []tracing.ErrorEntry
	batch    tracing.BatchRow
	eligible bool
}

// runValidating applies the four rule layers to every staging row,
// persists per-row errors, tallies error_count, and transitions to
// READY regardless of error_count (spec §4.F: "ready for error
// inspection", commit is refused separately).
func (p *Pipeline) runValidating(ctx context.Context, job *tracing.ImportJob, rows []*tracing.StagingRow) {
	version, err := p.registry.Get(ctx, job.SchemaVersionID)
	if err != nil {
		p.failJob(ctx, job, "validate", string(tracing.ECInternal), err.Error())

		return
	}

	work := make([]*rowWork, len(rows))

	for i, row := range rows {
		if p.cancelled(ctx, job.ID) {
			return
		}

		work[i] = validateColumnsAndCrossField(p.validator, job.TableCode, row, version.Fields)
	}

	byFile := groupByFile(work)

	for _, group := range byFile {
		p.validateCrossRowAndTable(ctx, job, group)
	}

	errorCount := 0

	for i, w := range work {
		if len(w.errs) > 0 {
			errorCount++
		}

		if err := p.store.UpdateStagingRowErrors(ctx, w.row.ID, w.errs); err != nil {
			p.failJob(ctx, job, "validate", string(tracing.ECInternal), err.Error())

			return
		}

		if (i+1)%stagingChunkSize == 0 {
			job.Progress = validatingProgress(i+1, len(work))
			if err := p.store.UpdateJobStatus(ctx, job); err != nil {
				p.logError(job.ID, "persist validating progress", err)

				return
			}
		}
	}

	job.ErrorCount = errorCount
	job.Status = tracing.JobReady
	job.Progress = tracing.ProgressForStatus(tracing.JobReady)

	if err := p.store.UpdateJobStatus(ctx, job); err != nil {
		p.logError(job.ID, "persist ready transition", err)

		return
	}

	p.events.PublishJobEvent(ctx, job)
}

func validatingProgress(done, total int) int {
	if total == 0 {
		return 90
	}

	return 40 + done*50/total
}

// validateColumnsAndCrossField runs layers 1-2 and, if both pass,
// derives the BatchRow layers 3-4 need.
func validateColumnsAndCrossField(validator *tracing.Validator, table tracing.TableCode, row *tracing.StagingRow, fields []schema.FieldSpec) *rowWork {
	w := &rowWork{row: row}

	w.errs = validator.ValidateColumns(row.ParsedJSON, fields)
	if len(w.errs) == 0 {
		w.errs = validator.ValidateCrossField(table, row.ParsedJSON)
	}

	if len(w.errs) != 0 {
		return w
	}

	batch, derivErr := deriveBatchRow(table, row.ParsedJSON, row.RowIndex)
	if derivErr != nil {
		w.errs = append(w.errs, *derivErr)

		return w
	}

	w.batch = batch
	w.eligible = true

	return w
}

// validateCrossRowAndTable runs layers 3 and 4 for the rows of a single
// source file (uniqueness and FK-presence are both file-scoped lookups
// here, matching the per-batch-file chunking the rest of the pipeline
// uses).
func (p *Pipeline) validateCrossRowAndTable(ctx context.Context, job *tracing.ImportJob, group []*rowWork) {
	batchRows := make([]tracing.BatchRow, 0, len(group))
	byIndex := make(map[int]*rowWork, len(group))

	for _, w := range group {
		if !w.eligible {
			continue
		}

		batchRows = append(batchRows, w.batch)
		byIndex[w.batch.RowIndex] = w
	}

	crossRow := p.validator.ValidateCrossRow(job.TableCode, batchRows)
	for idx, errs := range crossRow {
		if w, ok := byIndex[idx]; ok {
			w.errs = append(w.errs, errs...)
			w.eligible = false
		}
	}

	if !p.crossTableCheck {
		return
	}

	remaining := make([]tracing.BatchRow, 0, len(batchRows))

	for _, w := range group {
		if w.eligible {
			remaining = append(remaining, w.batch)
		}
	}

	crossTable, err := p.validator.ValidateCrossTable(ctx, p.store, job.TenantID, job.TableCode, remaining)
	if err != nil {
		p.logError(job.ID, "cross-table validation", err)

		return
	}

	for idx, errs := range crossTable {
		if w, ok := byIndex[idx]; ok {
			w.errs = append(w.errs, errs...)
		}
	}
}

func groupByFile(work []*rowWork) map[string][]*rowWork {
	groups := make(map[string][]*rowWork)

	for _, w := range work {
		groups[w.row.FileID] = append(groups[w.row.FileID], w)
	}

	return groups
}

// deriveBatchRow extracts the lot_no_norm/winder/product_id key fields
// the cross-row/cross-table layers need, from a row's already
// column-validated cells.
func deriveBatchRow(table tracing.TableCode, cells map[string]string, rowIndex int) (tracing.BatchRow, *tracing.ErrorEntry) {
	lotRaw := cells[colLotNo]

	var (
		lot normalize.Lot
		err error
	)

	if table == tracing.TableP3 {
		lot, err = normalize.NormalizeP3LotNo(lotRaw)
	} else {
		lot, err = normalize.NormalizeLotNo(lotRaw)
	}

	if err != nil {
		return tracing.BatchRow{}, &tracing.ErrorEntry{
			Field: colLotNo, ErrorCode: string(tracing.ECLotFormat), Message: err.Error(), Value: lotRaw,
		}
	}

	batch := tracing.BatchRow{RowIndex: rowIndex, LotNoNorm: lot.Norm}

	if table == tracing.TableP2 {
		batch.Winder, _ = strconv.Atoi(strings.TrimSpace(cells[colWinderNumber]))
	}

	if table == tracing.TableP3 {
		batch.ProductID = strings.TrimSpace(cells[colProductID])
	}

	return batch, nil
}
