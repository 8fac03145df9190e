// Package flatten implements the traceability flattener (spec §4.G): a
// stateless batched join over P1/P2/P3 producing one wide flat row per P3
// item. Grounded on the teacher's correlation package — same batched
// query contract as correlation.Store.QueryDownstreamCounts, generalized
// from graph-impact queries to lineage joins — and its Store/domain-model
// split (flatten.Store is read-only, implemented by internal/storage).
package flatten

import "errors"

// Caps on flattener query scope and result size (spec §4.G).
const (
	MaxProductIDs = 500
	noCompressMax = 200
	autoGzipMax   = 1500
	forcedGzipMax = 3000
)

var (
	ErrTooManyProductIDs = errors.New("product_ids exceeds the 500-id limit")
	ErrResultTooLarge    = errors.New("E_RESULT_TOO_LARGE")
	ErrEmptyQuery        = errors.New("flatten query requires product_ids or year/month")
)

// Query selects the P3 items to flatten: either an explicit product ID
// list, or all P3 items with a production_date in a given month.
type Query struct {
	ProductIDs []string
	Year       int
	Month      int // 1..12, zero means "use ProductIDs"
}

func (q Query) isMonthly() bool { return q.Month != 0 }

// Validate enforces the ≤500 product_ids cap. An empty product_ids list
// is a valid query that matches nothing (spec §8 boundary behavior: it
// resolves to {data:[], count:0, has_data:false}, not an error).
func (q Query) Validate() error {
	if q.isMonthly() {
		return nil
	}

	if len(q.ProductIDs) > MaxProductIDs {
		return ErrTooManyProductIDs
	}

	return nil
}

// Metadata describes the query that produced a Result and the
// compression decision applied to it, echoed back to the caller per
// spec §4.G.
type Metadata struct {
	QueryType          string   `json:"query_type"`
	ProductIDs         []string `json:"product_ids,omitempty"`
	Year               int      `json:"year,omitempty"`
	Month              int      `json:"month,omitempty"`
	Compression        string   `json:"compression"`
	NullHandling       string   `json:"null_handling"`
	EmptyArrayHandling string   `json:"empty_array_handling"`
}

// FlatRow is one wide denormalized record, one per P3 item, keyed by
// output column name. Missing source data is represented as an explicit
// nil value, never an absent key (spec §4.G null discipline).
type FlatRow map[string]any

// Result is the flatten(tenant, query) response envelope.
type Result struct {
	Data     []FlatRow `json:"data"`
	Count    int       `json:"count"`
	HasData  bool      `json:"has_data"`
	Metadata Metadata  `json:"metadata"`
}

// compressionFor maps a result row count to the spec's caps/compression
// table. ok is false when the count exceeds the hard cap and the caller
// must reject with ErrResultTooLarge.
func compressionFor(count int) (compression string, ok bool) {
	switch {
	case count <= noCompressMax:
		return "none", true
	case count <= autoGzipMax:
		return "gzip", true
	case count <= forcedGzipMax:
		return "gzip_forced", true
	default:
		return "", false
	}
}
