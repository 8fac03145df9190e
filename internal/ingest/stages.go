package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/linelot/linelot/internal/tracing"
)

// runStages drives a freshly created job through PARSING and VALIDATING.
// It runs in its own goroutine, started by CreateJob; only one worker
// exists per job (spec §5 "≤1 of {PARSING, VALIDATING, COMMITTING} per
// job at a time").
func (p *Pipeline) runStages(jobID string) {
	ctx := context.Background()

	job, ok := p.beginStage(ctx, jobID, tracing.JobParsing)
	if !ok {
		return
	}

	rows, ok := p.runParsing(ctx, job)
	if !ok {
		return
	}

	job, ok = p.beginStage(ctx, jobID, tracing.JobValidating)
	if !ok {
		return
	}

	p.runValidating(ctx, job, rows)
}

// beginStage fetches the job, validates the from->to transition, and
// persists it. Returns ok=false if the job was cancelled, already
// terminal, or the fetch/transition/persist failed (all logged, never
// panicking a background goroutine).
func (p *Pipeline) beginStage(ctx context.Context, jobID string, to tracing.JobStatus) (*tracing.ImportJob, bool) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		p.logError(jobID, "fetch job for stage transition", err)

		return nil, false
	}

	if job.Status == tracing.JobCancelled {
		return nil, false
	}

	if err := tracing.ValidateStateTransition(job.Status, to); err != nil {
		p.logError(jobID, "invalid stage transition", err)

		return nil, false
	}

	job.Status = to
	job.Progress = tracing.ProgressForStatus(to)

	if err := p.store.UpdateJobStatus(ctx, job); err != nil {
		p.logError(jobID, "persist stage transition", err)

		return nil, false
	}

	p.events.PublishJobEvent(ctx, job)

	return job, true
}

// cancelled re-fetches the job and reports whether it was cancelled
// since the stage started, the cooperative cancellation check spec §5
// requires at every chunk boundary.
func (p *Pipeline) cancelled(ctx context.Context, jobID string) bool {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return false
	}

	return job.Status == tracing.JobCancelled
}

// runParsing streams the cached seed rows into staging_rows in chunks,
// reporting linear progress 0->40. Returns the full staging row set and
// ok=true on success, so VALIDATING doesn't need a second DB round trip
// through ListStagingRows when the job wasn't cancelled mid-parse.
func (p *Pipeline) runParsing(ctx context.Context, job *tracing.ImportJob) ([]*tracing.StagingRow, bool) {
	seeds := p.seeds.take(job.ID)

	var all []*tracing.StagingRow

	for start := 0; start < len(seeds); start += stagingChunkSize {
		if p.cancelled(ctx, job.ID) {
			return nil, false
		}

		end := start + stagingChunkSize
		if end > len(seeds) {
			end = len(seeds)
		}

		chunk := make([]*tracing.StagingRow, 0, end-start)

		for _, s := range seeds[start:end] {
			chunk = append(chunk, &tracing.StagingRow{
				ID:         uuid.NewString(),
				JobID:      job.ID,
				FileID:     s.FileID,
				RowIndex:   s.RowIndex,
				ParsedJSON: s.Cells,
			})
		}

		if err := p.store.InsertStagingRows(ctx, chunk); err != nil {
			p.failJob(ctx, job, "parse", string(tracing.ECInternal), err.Error())

			return nil, false
		}

		all = append(all, chunk...)

		job.Progress = parsingProgress(end, len(seeds))
		if err := p.store.UpdateJobStatus(ctx, job); err != nil {
			p.logError(job.ID, "persist parsing progress", err)

			return nil, false
		}
	}

	return all, true
}

// parsingProgress linearly interpolates PARSING's 0->40 range by rows
// processed so far.
func parsingProgress(done, total int) int {
	if total == 0 {
		return 40
	}

	return done * 40 / total
}

// failJob marks job FAILED with the given stage/error_code/message and
// persists it; used by both PARSING and VALIDATING on unexpected error.
func (p *Pipeline) failJob(ctx context.Context, job *tracing.ImportJob, stage, errCode, msg string) {
	job.Status = tracing.JobFailed
	job.ErrorSummary = &tracing.ErrorSummary{Stage: stage, ErrorCode: errCode, Error: msg}

	if err := p.store.UpdateJobStatus(ctx, job); err != nil {
		p.logError(job.ID, "persist job failure", err)
	}

	p.events.PublishJobEvent(ctx, job)
}

func (p *Pipeline) logError(jobID, action string, err error) {
	if p.logger == nil {
		return
	}

	p.logger.Error(action, slog.String("job_id", jobID), slog.String("error", err.Error()))
}
