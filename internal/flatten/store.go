package flatten

import (
	"context"

	"github.com/linelot/linelot/internal/tracing"
)

// P2ItemKey identifies one winder row under a P2 header, the join key
// between a P3 item's source_winder and its P2 detail row.
type P2ItemKey struct {
	P2RecordID   string
	WinderNumber int
}

// P3Row is a P3 item joined with its header's lot_no_norm, the key the
// flattener needs to batch-fetch P2/P1 parents. The store computes this
// with a SQL join against p3_records rather than the flattener issuing a
// per-item lookup.
type P3Row struct {
	tracing.P3Item
	LotNoNorm int64
}

// Store is the flattener's read-only batched-query contract, the same
// interface-segregation shape as the teacher's correlation.Store (read
// side) kept separate from tracing.Store (write side) even though
// internal/storage implements both over the same tables.
type Store interface {
	// FindP3ByProductIDs returns P3 items for productIDs, scoped to
	// tenantID, ordered by (production_date, product_id).
	FindP3ByProductIDs(ctx context.Context, tenantID string, productIDs []string) ([]P3Row, error)

	// FindP3ByMonth returns P3 items with production_date in the given
	// year/month, scoped to tenantID, ordered by (production_date, product_id).
	FindP3ByMonth(ctx context.Context, tenantID string, year, month int) ([]P3Row, error)

	// FindP2HeadersByLots batch-fetches P2 headers for the given
	// lot_no_norm values. Missing lots are simply absent from the map.
	FindP2HeadersByLots(ctx context.Context, tenantID string, lotNoNorms []int64) (map[int64]tracing.P2Record, error)

	// FindP2ItemsByKeys batch-fetches P2 items for the given
	// (p2_record_id, winder_number) pairs.
	FindP2ItemsByKeys(ctx context.Context, tenantID string, keys []P2ItemKey) (map[P2ItemKey]tracing.P2Item, error)

	// FindP1ByLots batch-fetches P1 records for the given lot_no_norm values.
	FindP1ByLots(ctx context.Context, tenantID string, lotNoNorms []int64) (map[int64]tracing.P1Record, error)
}
