package ingest

import (
	"context"
	"fmt"

	"github.com/linelot/linelot/internal/tracing"
)

// GetJob fetches a job by ID.
func (p *Pipeline) GetJob(ctx context.Context, jobID string) (*tracing.ImportJob, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	return job, nil
}

// ListErrors returns a page of staging rows carrying at least one error.
func (p *Pipeline) ListErrors(ctx context.Context, jobID string, page, pageSize int) ([]*tracing.StagingRow, error) {
	rows, err := p.store.ListErrors(ctx, jobID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list errors: %w", err)
	}

	return rows, nil
}

// Cancel sets a job CANCELLED if its status allows it (spec §4.F/§5):
// the background worker observes this at its next chunk boundary and
// stops; staging rows already written are retained for inspection.
func (p *Pipeline) Cancel(ctx context.Context, jobID string) (*tracing.ImportJob, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	if err := tracing.ValidateCancel(job.Status); err != nil {
		return nil, err
	}

	job.Status = tracing.JobCancelled

	if err := p.store.UpdateJobStatus(ctx, job); err != nil {
		return nil, fmt.Errorf("persist cancellation: %w", err)
	}

	p.events.PublishJobEvent(ctx, job)

	return job, nil
}
