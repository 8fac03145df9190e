// Package tracing holds the P1/P2/P3 lineage domain models, the Import
// job state machine, the schema-driven validation engine, and the
// Store interface the ingestion pipeline is built against.
//
// Following the dependency-inversion shape the teacher repo uses for its
// ingestion domain: this package owns the Store contract; internal/storage
// provides the Postgres implementation.
package tracing

import (
	"errors"
	"time"
)

// TableCode identifies one of the three lineage record kinds.
type TableCode string

const (
	TableP1 TableCode = "P1"
	TableP2 TableCode = "P2"
	TableP3 TableCode = "P3"
)

// JobStatus is the Import job lifecycle state.
type JobStatus string

const (
	JobUploaded   JobStatus = "UPLOADED"
	JobParsing    JobStatus = "PARSING"
	JobValidating JobStatus = "VALIDATING"
	JobReady      JobStatus = "READY"
	JobCommitting JobStatus = "COMMITTING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCancelled  JobStatus = "CANCELLED"
)

// IsTerminal reports whether status has no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Sentinel validation errors for P1/P2/P3 header and item fields, mirrored
// from the teacher's ingestion.RunEvent validation style (one sentinel per
// required-field/format failure, wrapped with field context at the call
// site).
var (
	ErrTenantIDEmpty     = errors.New("tenant id is required")
	ErrLotNoRawEmpty     = errors.New("lot_no_raw is required")
	ErrProductionDateNil = errors.New("production_date is required")
	ErrWinderNumberRange = errors.New("winder_number must be between 1 and 20")
	ErrRowNoInvalid      = errors.New("row_no must be >= 1")
)

// P1Record is one row per lot (extruder run).
type P1Record struct {
	ID              string
	TenantID        string
	LotNoRaw        string
	LotNoNorm       int64
	ProductionDate  time.Time
	SchemaVersionID string
	Extras          map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks required P1 header fields.
func (p *P1Record) Validate() error {
	if p.TenantID == "" {
		return ErrTenantIDEmpty
	}

	if p.LotNoRaw == "" {
		return ErrLotNoRawEmpty
	}

	if p.ProductionDate.IsZero() {
		return ErrProductionDateNil
	}

	return nil
}

// P2Record is the header row per lot (slitting inspection).
type P2Record struct {
	ID              string
	TenantID        string
	LotNoRaw        string
	LotNoNorm       int64
	ProductionDate  time.Time
	SchemaVersionID string
	Extras          map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p *P2Record) Validate() error {
	if p.TenantID == "" {
		return ErrTenantIDEmpty
	}

	if p.LotNoRaw == "" {
		return ErrLotNoRawEmpty
	}

	return nil
}

// P2Item is one winder row (1..20) under a P2 header.
type P2Item struct {
	ID             string
	P2RecordID     string
	TenantID       string
	WinderNumber   int
	SheetWidth     *float64
	Thickness      [7]*float64 // Thickness1..Thickness7
	Appearance     string
	RoughEdge      string
	SlittingResult string
	RowData        map[string]any
	CreatedAt      time.Time
}

func (i *P2Item) Validate() error {
	if i.TenantID == "" {
		return ErrTenantIDEmpty
	}

	if i.WinderNumber < 1 || i.WinderNumber > 20 {
		return ErrWinderNumberRange
	}

	return nil
}

// P3Record is the header row per lot (punching/finish inspection).
type P3Record struct {
	ID             string
	TenantID       string
	LotNoRaw       string
	LotNoNorm      int64
	ProductionDate time.Time
	Extras         map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *P3Record) Validate() error {
	if p.TenantID == "" {
		return ErrTenantIDEmpty
	}

	if p.LotNoRaw == "" {
		return ErrLotNoRawEmpty
	}

	return nil
}

// P3Item is one inspection row under a P3 header.
type P3Item struct {
	ID              string
	P3RecordID      string
	TenantID        string
	RowNo           int
	ProductID       *string
	LotNo           string
	ProductionDate  time.Time
	MachineNo       string
	MoldNo          string
	ProductionLot   string
	SourceWinder    *int
	Specification   string
	BottomTapeLot   string
	AdjustmentValue *int // raw numeric adjustment_record; presentation mapping is a UI concern
	RowData         map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (i *P3Item) Validate() error {
	if i.TenantID == "" {
		return ErrTenantIDEmpty
	}

	if i.RowNo < 1 {
		return ErrRowNoInvalid
	}

	return nil
}

// ImportFile records one uploaded file belonging to a job.
type ImportFile struct {
	ID        string
	JobID     string
	Filename  string
	Format    string // "csv" | "xlsx"
	SHA256    string
	SizeBytes int64
	BlobRef   string
}

// ErrorEntry is one validation failure attached to a staging row.
type ErrorEntry struct {
	Field     string `json:"field"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Value     string `json:"value,omitempty"`
}

// StagingRow is a parsed, not-yet-committed row.
type StagingRow struct {
	ID         string
	JobID      string
	FileID     string
	RowIndex   int // 1-based within its source file
	ParsedJSON map[string]string
	Errors     []ErrorEntry // nil if valid
}

// ErrorSummary is the job-level failure description (schema mismatch,
// batch-mixed errors, or internal failure).
type ErrorSummary struct {
	Stage     string `json:"stage,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ImportJob is the ingestion job state machine's persisted state.
type ImportJob struct {
	ID                string
	TenantID          string
	TableCode         TableCode
	Status            JobStatus
	TotalRows         int
	ErrorCount        int
	Progress          int // 0..100
	HeaderFingerprint string
	SchemaVersionID   string
	ErrorSummary      *ErrorSummary
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RowEdit is an immutable, append-only audit record of a manual edit to a
// committed record.
type RowEdit struct {
	ID         string
	TenantID   string
	TableCode  TableCode
	RecordID   string
	BeforeJSON map[string]any
	AfterJSON  map[string]any
	ReasonID   string
	ActorID    string
	CreatedAt  time.Time
}
