package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/linelot/linelot/internal/normalize"
	"github.com/linelot/linelot/internal/tracing"
)

// Commit transitions a READY job through COMMITTING to COMPLETED/FAILED,
// building the job's full CommitBatch and writing it in one Store call.
// Idempotent on an already-terminal job: COMPLETED/FAILED return the
// existing job unchanged, matching spec §4.F's "calling commit twice"
// contract.
func (p *Pipeline) Commit(ctx context.Context, jobID string) (*tracing.ImportJob, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	if job.Status == tracing.JobCompleted || job.Status == tracing.JobFailed {
		return job, nil
	}

	if err := tracing.ValidateCommit(job); err != nil {
		return nil, err
	}

	job.Status = tracing.JobCommitting
	job.Progress = tracing.ProgressForStatus(tracing.JobCommitting)

	if err := p.store.UpdateJobStatus(ctx, job); err != nil {
		return nil, fmt.Errorf("persist committing transition: %w", err)
	}

	p.events.PublishJobEvent(ctx, job)

	rows, err := p.store.ListStagingRows(ctx, jobID)
	if err != nil {
		p.failJob(ctx, job, "commit", string(tracing.ECInternal), err.Error())

		return job, nil
	}

	batch, err := buildCommitBatch(job, rows)
	if err != nil {
		p.failJob(ctx, job, "commit", string(tracing.ECInternal), err.Error())

		return job, nil
	}

	// One transactional write for the whole job: every lot's header+items
	// land, or none do (spec §4.F/§4.C, testable invariant #4).
	if err := p.store.CommitRecords(ctx, job.TenantID, batch); err != nil {
		errCode := string(tracing.ECInternal)
		if errors.Is(err, tracing.ErrUniqueInDB) {
			errCode = string(tracing.ECUniqueInDB)
		}

		p.failJob(ctx, job, "commit", errCode, err.Error())

		return job, nil
	}

	job.Status = tracing.JobCompleted
	job.Progress = tracing.ProgressForStatus(tracing.JobCompleted)

	if err := p.store.CommitJob(ctx, job); err != nil {
		return nil, fmt.Errorf("finalize commit: %w", err)
	}

	p.events.PublishJobEvent(ctx, job)

	return job, nil
}

// buildCommitBatch groups staging rows by lot_no_norm and assembles the
// CommitBatch for job's table_code, ready for one atomic Store.CommitRecords
// call. No Store calls happen here — this is pure record construction.
func buildCommitBatch(job *tracing.ImportJob, rows []*tracing.StagingRow) (tracing.CommitBatch, error) {
	switch job.TableCode {
	case tracing.TableP1:
		return buildP1Batch(job, rows)
	case tracing.TableP2:
		return buildP2Batch(job, rows)
	case tracing.TableP3:
		return buildP3Batch(job, rows)
	default:
		return tracing.CommitBatch{}, fmt.Errorf("unknown table_code %q", job.TableCode)
	}
}

func buildP1Batch(job *tracing.ImportJob, rows []*tracing.StagingRow) (tracing.CommitBatch, error) {
	records := make([]*tracing.P1Record, 0, len(rows))

	for _, row := range rows {
		lot, err := normalize.NormalizeLotNo(row.ParsedJSON[colLotNo])
		if err != nil {
			return tracing.CommitBatch{}, fmt.Errorf("normalize lot at row %d: %w", row.RowIndex, err)
		}

		date, err := normalize.NormalizeDate(row.ParsedJSON[colProductionDate])
		if err != nil {
			return tracing.CommitBatch{}, fmt.Errorf("normalize date at row %d: %w", row.RowIndex, err)
		}

		records = append(records, &tracing.P1Record{
			TenantID:        job.TenantID,
			LotNoRaw:        lot.Canonical,
			LotNoNorm:       lot.Norm,
			ProductionDate:  date,
			SchemaVersionID: job.SchemaVersionID,
			Extras:          cellsToExtras(row.ParsedJSON),
		})
	}

	return tracing.CommitBatch{Table: tracing.TableP1, P1: records}, nil
}

func buildP2Batch(job *tracing.ImportJob, rows []*tracing.StagingRow) (tracing.CommitBatch, error) {
	byLot := groupRowsByLot(rows, false)

	commits := make([]tracing.P2Commit, 0, len(byLot))

	for lotNorm, group := range byLot {
		first := group[0]

		date, err := normalize.NormalizeDate(first.ParsedJSON[colProductionDate])
		if err != nil {
			return tracing.CommitBatch{}, fmt.Errorf("normalize date at row %d: %w", first.RowIndex, err)
		}

		header := &tracing.P2Record{
			TenantID:        job.TenantID,
			LotNoRaw:        first.ParsedJSON[colLotNo],
			LotNoNorm:       lotNorm,
			ProductionDate:  date,
			SchemaVersionID: job.SchemaVersionID,
			Extras:          cellsToExtras(first.ParsedJSON),
		}

		items := make([]*tracing.P2Item, 0, len(group))

		for _, row := range group {
			cells := row.ParsedJSON

			winder, _ := strconv.Atoi(strings.TrimSpace(cells[colWinderNumber]))

			items = append(items, &tracing.P2Item{
				TenantID:       job.TenantID,
				WinderNumber:   winder,
				SheetWidth:     parseOptionalFloat(cells[colSheetWidth]),
				Appearance:     cells[colAppearance],
				RoughEdge:      cells[colRoughEdge],
				SlittingResult: cells[colSlittingResult],
				RowData:        cellsToExtras(cells),
			})
		}

		commits = append(commits, tracing.P2Commit{LotNoNorm: lotNorm, Header: header, Items: items})
	}

	return tracing.CommitBatch{Table: tracing.TableP2, P2: commits}, nil
}

func buildP3Batch(job *tracing.ImportJob, rows []*tracing.StagingRow) (tracing.CommitBatch, error) {
	byLot := groupRowsByLot(rows, true)

	commits := make([]tracing.P3Commit, 0, len(byLot))

	for lotNorm, group := range byLot {
		first := group[0]

		date, err := normalize.NormalizeDate(first.ParsedJSON[colProductionDate])
		if err != nil {
			return tracing.CommitBatch{}, fmt.Errorf("normalize date at row %d: %w", first.RowIndex, err)
		}

		header := &tracing.P3Record{
			TenantID:       job.TenantID,
			LotNoRaw:       first.ParsedJSON[colLotNo],
			LotNoNorm:      lotNorm,
			ProductionDate: date,
			Extras:         cellsToExtras(first.ParsedJSON),
		}

		items := make([]*tracing.P3Item, 0, len(group))

		for _, row := range group {
			cells := row.ParsedJSON

			item := &tracing.P3Item{
				TenantID:        job.TenantID,
				RowNo:           row.RowIndex,
				LotNo:           cells[colLotNo],
				ProductionDate:  date,
				MachineNo:       cells[colMachineNo],
				MoldNo:          cells[colMoldNo],
				Specification:   cells[colSpecification],
				BottomTapeLot:   cells[colBottomTapeLot],
				AdjustmentValue: parseOptionalInt(cells[colAdjustment]),
				RowData:         cellsToExtras(cells),
			}

			if pid := strings.TrimSpace(cells[colProductID]); pid != "" {
				item.ProductID = &pid
			}

			if winder, ok := normalize.ExtractSourceWinder(cells[colLotNo]); ok {
				item.SourceWinder = &winder
			}

			items = append(items, item)
		}

		commits = append(commits, tracing.P3Commit{LotNoNorm: lotNorm, Header: header, Items: items})
	}

	return tracing.CommitBatch{Table: tracing.TableP3, P3: commits}, nil
}

// groupRowsByLot partitions staging rows by their normalized lot number,
// preserving row_index order within each group.
func groupRowsByLot(rows []*tracing.StagingRow, p3 bool) map[int64][]*tracing.StagingRow {
	groups := make(map[int64][]*tracing.StagingRow)

	for _, row := range rows {
		var (
			lot normalize.Lot
			err error
		)

		if p3 {
			lot, err = normalize.NormalizeP3LotNo(row.ParsedJSON[colLotNo])
		} else {
			lot, err = normalize.NormalizeLotNo(row.ParsedJSON[colLotNo])
		}

		if err != nil {
			continue // already surfaced as a validation error; unreachable for a READY, error_count==0 job
		}

		groups[lot.Norm] = append(groups[lot.Norm], row)
	}

	return groups
}

func cellsToExtras(cells map[string]string) map[string]any {
	extras := make(map[string]any, len(cells))
	for k, v := range cells {
		extras[k] = v
	}

	return extras
}

func parseOptionalFloat(raw string) *float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}

	return &n
}

func parseOptionalInt(raw string) *int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil
	}

	return &n
}
