// Package query implements the advanced search, trace detail, and
// options-enumeration surface (spec §4.H) over the P1/P2/P3 tables.
// Like internal/flatten, the Engine is a stateless, request-synchronous
// collaborator: no query result outlives the request that produced it.
//
// Grounded on the teacher's internal/api/get_incidents.go /
// get_incident_details.go handler shape (filter struct -> paginated list,
// plus a detail-by-opaque-key lookup), generalized from incident/test
// records to P1/P2/P3 lineage rows, and on flatten.Store's
// dependency-inverted, read-only Store split.
package query

import (
	"context"
	"errors"
	"sort"
	"strconv"
)

// Caps on options enumeration and lot-suggestion results (spec §4.H).
const (
	MaxOptionValues  = 1000
	MaxSuggestions   = 50
	DefaultPageSize  = 50
	MaxPageSize      = 500
)

// ErrTraceKeyInvalid is returned when a trace_key cannot be decoded.
var ErrTraceKeyInvalid = errors.New("trace_key is not a valid opaque key")

// DataType identifies which of the three lineage tables a search targets.
type DataType string

const (
	DataTypeP1 DataType = "P1"
	DataTypeP2 DataType = "P2"
	DataTypeP3 DataType = "P3"
)

// Filters carries the advanced-search predicate set (spec §4.H).
type Filters struct {
	DataType            DataType
	LotNo               string // substring match on canonical form
	ProductionDateFrom  *int64 // unix seconds, inclusive
	ProductionDateTo    *int64
	MachineNo           string
	MoldNo              string
	Specification       string
	WinderNumber        *int
	ProductID           string // substring match
	BottomTapeLot       string
}

// Page carries pagination parameters, clamped to MaxPageSize.
type Page struct {
	Page     int
	PageSize int
}

// Normalize applies the query surface's defaults/clamps.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}

	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}

	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}

	return p
}

// RawRow is one matched record as the Store returns it: the full JSONB
// row_data decoded into a generic map, plus the join/grouping keys the
// engine needs (lot identity, winder number for the P2 merge rule).
type RawRow struct {
	TraceKey       string
	LotNoNorm      int64
	LotNoRaw       string
	DataType       DataType
	ProductionDate *int64
	WinderNumber   *int
	Fields         map[string]any
}

// Record is one row of an advanced search result (spec §4.H), after the
// P2 merge rule has been applied.
type Record struct {
	TraceKey       string
	DataType       DataType
	LotNoRaw       string
	ProductionDate *int64
	WinderNumber   *int // set only for an unmerged, single-winder P2 row
	Fields         map[string]any
	AdditionalRows []map[string]any // non-nil only for a merged P2 lot
}

// SearchResult is search(tenant, filters, page, page_size)'s response.
type SearchResult struct {
	Total    int
	Page     int
	PageSize int
	Records  []Record
}

// TraceDetail is trace(tenant, trace_key)'s response. Missing parents are
// nil/empty, never an error (spec §4.H).
type TraceDetail struct {
	P1      map[string]any
	P2Items []map[string]any
	P3Items []map[string]any
}

// LotSuggestion is one entry of the lot autocomplete endpoint.
type LotSuggestion struct {
	LotNoNorm int64
	Canonical string
}

// Store is the query engine's read-only persistence contract, the same
// interface-segregation shape as flatten.Store.
type Store interface {
	Search(ctx context.Context, tenantID string, f Filters, page Page) ([]RawRow, int, error)
	DistinctValues(ctx context.Context, tenantID string, field string) ([]string, error)
	SuggestLots(ctx context.Context, tenantID, term string, limit int) ([]LotSuggestion, error)
	FindP1ByLot(ctx context.Context, tenantID string, lotNoNorm int64) (map[string]any, bool, error)
	FindP2ItemsByLot(ctx context.Context, tenantID string, lotNoNorm int64) ([]map[string]any, error)
	FindP3ItemsByLot(ctx context.Context, tenantID string, lotNoNorm int64) ([]map[string]any, error)
}

// Engine runs the search/trace/options operations over a Store. Stateless
// and safe for concurrent request-scoped use, matching flatten.Flattener.
type Engine struct {
	store Store
}

// New constructs an Engine.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Search runs the advanced search operation, applying the P2 merge rule:
// when f.WinderNumber is nil and f.DataType is P2, the up-to-20 winder
// rows for a lot collapse into one Record with AdditionalRows.
func (e *Engine) Search(ctx context.Context, tenantID string, f Filters, page Page) (*SearchResult, error) {
	page = page.Normalize()

	rows, total, err := e.store.Search(ctx, tenantID, f, page)
	if err != nil {
		return nil, err
	}

	var merged []Record

	if f.DataType == DataTypeP2 && f.WinderNumber == nil {
		merged = mergeP2Rows(rows)
	} else {
		merged = toRecords(rows)
	}

	return &SearchResult{
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Records:  merged,
	}, nil
}

func toRecords(rows []RawRow) []Record {
	out := make([]Record, 0, len(rows))

	for _, r := range rows {
		out = append(out, Record{
			TraceKey:       r.TraceKey,
			DataType:       r.DataType,
			LotNoRaw:       r.LotNoRaw,
			ProductionDate: r.ProductionDate,
			WinderNumber:   r.WinderNumber,
			Fields:         r.Fields,
		})
	}

	return out
}

// mergeP2Rows groups P2 winder rows by lot into one Record per lot, per
// spec §4.H's "presentation only" merge rule: storage stays one row per
// winder, the search response folds them under additional_data.rows.
func mergeP2Rows(rows []RawRow) []Record {
	order := make([]int64, 0)
	byLot := make(map[int64]*Record)

	for _, r := range rows {
		rec, ok := byLot[r.LotNoNorm]
		if !ok {
			rec = &Record{
				TraceKey:       r.TraceKey,
				DataType:       r.DataType,
				LotNoRaw:       r.LotNoRaw,
				ProductionDate: r.ProductionDate,
			}
			byLot[r.LotNoNorm] = rec
			order = append(order, r.LotNoNorm)
		}

		rec.AdditionalRows = append(rec.AdditionalRows, r.Fields)
	}

	out := make([]Record, 0, len(order))
	for _, lot := range order {
		out = append(out, *byLot[lot])
	}

	return out
}

// Trace resolves trace_key to a lot and returns its P1/P2/P3 detail.
// Missing parents are nil/empty, never an error.
func (e *Engine) Trace(ctx context.Context, tenantID, traceKey string) (*TraceDetail, error) {
	lotNoNorm, err := DecodeTraceKey(traceKey)
	if err != nil {
		return nil, err
	}

	p1, _, err := e.store.FindP1ByLot(ctx, tenantID, lotNoNorm)
	if err != nil {
		return nil, err
	}

	p2Items, err := e.store.FindP2ItemsByLot(ctx, tenantID, lotNoNorm)
	if err != nil {
		return nil, err
	}

	p3Items, err := e.store.FindP3ItemsByLot(ctx, tenantID, lotNoNorm)
	if err != nil {
		return nil, err
	}

	return &TraceDetail{P1: p1, P2Items: p2Items, P3Items: p3Items}, nil
}

// Options returns the distinct, sorted, capped enumeration for field.
func (e *Engine) Options(ctx context.Context, tenantID, field string) ([]string, error) {
	values, err := e.store.DistinctValues(ctx, tenantID, field)
	if err != nil {
		return nil, err
	}

	sort.Strings(values)

	if len(values) > MaxOptionValues {
		values = values[:MaxOptionValues]
	}

	return values, nil
}

// Suggestions returns the lot autocomplete list for term.
func (e *Engine) Suggestions(ctx context.Context, tenantID, term string, limit int) ([]LotSuggestion, error) {
	if limit <= 0 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}

	return e.store.SuggestLots(ctx, tenantID, term, limit)
}

// EncodeTraceKey produces the opaque trace_key a search result embeds,
// which Trace later decodes back to the same lot_no_norm. Encoding is a
// pure, tenant-independent transform (spec §4.H: the key only needs to
// "resolve to a lot_no_norm"); tenant scoping is enforced by Store's
// lookups, which never cross tenant_id.
func EncodeTraceKey(lotNoNorm int64) string {
	return strconv.FormatInt(lotNoNorm, 36)
}

// DecodeTraceKey reverses EncodeTraceKey.
func DecodeTraceKey(traceKey string) (int64, error) {
	lotNoNorm, err := strconv.ParseInt(traceKey, 36, 64)
	if err != nil {
		return 0, ErrTraceKeyInvalid
	}

	return lotNoNorm, nil
}
