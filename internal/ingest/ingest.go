// Package ingest orchestrates the Import job pipeline (spec §4.F): it
// turns uploaded files into a job, then runs the PARSING -> VALIDATING ->
// READY background stages and exposes the cancel/commit operations the
// HTTP layer calls.
//
// Grounded on the teacher's ingestion.lifecycle.go state machine plus
// storage.LineageStore's background-goroutine shape (ticker/stop/done
// channels generalized here to a per-job worker launched from CreateJob
// instead of a single periodic sweep).
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/linelot/linelot/internal/parser"
	"github.com/linelot/linelot/internal/schema"
	"github.com/linelot/linelot/internal/tracing"
)

// Well-known canonical column names the pipeline reads out of a parsed
// row's cells to derive lot_no_norm/winder_number/product_id. These are
// independent of schema.FieldSpec, which only describes per-column
// coercion/validation rules, not semantic role.
const (
	colLotNo          = "lot_no"
	colWinderNumber   = "winder_number"
	colProductID      = "product_id"
	colMachineNo      = "machine_no"
	colMoldNo         = "mold_no"
	colSpecification  = "specification"
	colBottomTapeLot  = "bottom_tape_lot"
	colProductionDate = "production_date"
	colAdjustment     = "adjustment_record"
	colAppearance     = "appearance"
	colRoughEdge      = "rough_edge"
	colSlittingResult = "slitting_result"
	colSheetWidth     = "sheet_width"
)

const (
	// stagingChunkSize bounds how many staging rows PARSING inserts per
	// round trip, with a cancellation check between chunks (spec §5).
	// VALIDATING checks for cancellation on every row and reports progress
	// once per chunk.
	stagingChunkSize = 500

	// defaultMaxUploadBytes is the §4.E fallback when no per-tenant/config
	// override is supplied (10 MiB, spec §6 MAX_UPLOAD_SIZE_MB default).
	defaultMaxUploadBytes = 10 << 20
)

// ErrNoFiles is returned when create_job is called with an empty file
// list. Cancel/Commit's own state-machine errors (tracing.ErrCancelPastReady,
// tracing.ErrCommitNotReady) are reused as-is rather than re-wrapped.
var ErrNoFiles = errors.New("at least one file is required")

// UploadedFile is one multipart file handed to CreateJob, already read
// into memory (bounded by MaxUploadBytes upstream of this package).
type UploadedFile struct {
	Filename string
	Format   parser.Format
	Data     []byte
}

// CreateJobOptions carries create_job's optional flags.
type CreateJobOptions struct {
	// AllowDuplicate bypasses E_FILE_DUPLICATE only — never row-level
	// E_UNIQUE_IN_FILE/E_UNIQUE_IN_DB (spec §9 Open Question 1).
	AllowDuplicate bool
}

// BlobStore persists uploaded file bytes under a job/file reference,
// keeping the pipeline itself storage-agnostic (spec §6 "Storage layout"
// names this an opaque collaborator).
type BlobStore interface {
	Save(ctx context.Context, jobID, fileID string, data []byte) (blobRef string, err error)
}

// EventPublisher is the optional stage-transition notifier
// (internal/events), called best-effort and never awaited for
// correctness.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, job *tracing.ImportJob)
}

type noopPublisher struct{}

func (noopPublisher) PublishJobEvent(context.Context, *tracing.ImportJob) {}

// Pipeline wires the schema registry, validator, and tracing.Store
// together into the job lifecycle. One Pipeline instance is shared by
// every request handler and background job worker, matching the
// teacher's stateless-service-struct shape (Flattener, Registry).
type Pipeline struct {
	store           tracing.Store
	registry        *schema.Registry
	validator       *tracing.Validator
	blobs           BlobStore
	events          EventPublisher
	logger          *slog.Logger
	maxUploadBytes  int64
	crossTableCheck bool

	seeds *seedCache
}

// Config carries the pipeline's tunables, loaded from the same
// env-getter pattern as the rest of the module (spec §6).
type Config struct {
	MaxUploadBytes  int64
	CrossTableCheck bool
}

// New constructs a Pipeline. blobs/events may be nil; events defaults to
// a no-op publisher when nil (EVENTS_KAFKA_BROKERS unset, spec's
// supplemented job-event feature stays off by default).
func New(store tracing.Store, registry *schema.Registry, blobs BlobStore, events EventPublisher, logger *slog.Logger, cfg Config) *Pipeline {
	if events == nil {
		events = noopPublisher{}
	}

	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}

	return &Pipeline{
		store:           store,
		registry:        registry,
		validator:       tracing.NewValidator(),
		blobs:           blobs,
		events:          events,
		logger:          logger,
		maxUploadBytes:  maxBytes,
		crossTableCheck: cfg.CrossTableCheck,
		seeds:           newSeedCache(),
	}
}
