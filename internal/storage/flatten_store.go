package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/linelot/linelot/internal/flatten"
	"github.com/linelot/linelot/internal/tracing"
)

// Compile-time interface assertion: early failure if flatten.Store changes shape.
var _ flatten.Store = (*TracingStore)(nil)

// row_data is marshaled from the full Go record/item struct (see
// CommitRecords and its upsertP1Tx/upsertHeaderTx/insertP2ItemsTx/
// insertP3ItemsTx helpers), so every flatten.Store batch-fetch below can
// reconstruct the typed value by unmarshaling the JSONB column alone --
// no column-by-column SELECT list to keep in sync.

// FindP3ByProductIDs implements flatten.Store.
func (s *TracingStore) FindP3ByProductIDs(
	ctx context.Context, tenantID string, productIDs []string,
) ([]flatten.P3Row, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT pi.row_data, pr.lot_no_norm
		FROM p3_items pi
		JOIN p3_records pr ON pr.id = pi.p3_record_id
		WHERE pi.tenant_id = $1 AND pi.product_id = ANY($2)
	`, tenantID, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: find p3 by product_ids: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	return scanP3Rows(rows)
}

// FindP3ByMonth implements flatten.Store.
func (s *TracingStore) FindP3ByMonth(
	ctx context.Context, tenantID string, year, month int,
) ([]flatten.P3Row, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT pi.row_data, pr.lot_no_norm
		FROM p3_items pi
		JOIN p3_records pr ON pr.id = pi.p3_record_id
		WHERE pi.tenant_id = $1
		  AND EXTRACT(YEAR FROM pr.production_date) = $2
		  AND EXTRACT(MONTH FROM pr.production_date) = $3
	`, tenantID, year, month)
	if err != nil {
		return nil, fmt.Errorf("%w: find p3 by month: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	return scanP3Rows(rows)
}

func scanP3Rows(rows *sql.Rows) ([]flatten.P3Row, error) {
	out := make([]flatten.P3Row, 0)

	for rows.Next() {
		var (
			rowData  []byte
			lotNorm  int64
			item     tracing.P3Item
		)

		if err := rows.Scan(&rowData, &lotNorm); err != nil {
			return nil, fmt.Errorf("%w: scan p3 row: %w", ErrTracingStoreFailed, err)
		}

		if err := json.Unmarshal(rowData, &item); err != nil {
			return nil, fmt.Errorf("unmarshal p3 row_data: %w", err)
		}

		out = append(out, flatten.P3Row{P3Item: item, LotNoNorm: lotNorm})
	}

	return out, rows.Err()
}

// FindP2HeadersByLots implements flatten.Store.
func (s *TracingStore) FindP2HeadersByLots(
	ctx context.Context, tenantID string, lotNoNorms []int64,
) (map[int64]tracing.P2Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT row_data FROM p2_records WHERE tenant_id = $1 AND lot_no_norm = ANY($2)
	`, tenantID, pq.Array(lotNoNorms))
	if err != nil {
		return nil, fmt.Errorf("%w: find p2 headers: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	out := make(map[int64]tracing.P2Record, len(lotNoNorms))

	for rows.Next() {
		var (
			rowData []byte
			rec     tracing.P2Record
		)

		if err := rows.Scan(&rowData); err != nil {
			return nil, fmt.Errorf("%w: scan p2 header: %w", ErrTracingStoreFailed, err)
		}

		if err := json.Unmarshal(rowData, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal p2 header row_data: %w", err)
		}

		out[rec.LotNoNorm] = rec
	}

	return out, rows.Err()
}

// FindP2ItemsByKeys implements flatten.Store.
func (s *TracingStore) FindP2ItemsByKeys(
	ctx context.Context, tenantID string, keys []flatten.P2ItemKey,
) (map[flatten.P2ItemKey]tracing.P2Item, error) {
	out := make(map[flatten.P2ItemKey]tracing.P2Item, len(keys))

	if len(keys) == 0 {
		return out, nil
	}

	p2IDs := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))

	for _, k := range keys {
		if _, ok := seen[k.P2RecordID]; ok {
			continue
		}

		seen[k.P2RecordID] = struct{}{}

		p2IDs = append(p2IDs, k.P2RecordID)
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT row_data, p2_record_id, winder_number FROM p2_items
		WHERE tenant_id = $1 AND p2_record_id = ANY($2)
	`, tenantID, pq.Array(p2IDs))
	if err != nil {
		return nil, fmt.Errorf("%w: find p2 items: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	wanted := make(map[flatten.P2ItemKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	for rows.Next() {
		var (
			rowData      []byte
			p2RecordID   string
			winderNumber int
			item         tracing.P2Item
		)

		if err := rows.Scan(&rowData, &p2RecordID, &winderNumber); err != nil {
			return nil, fmt.Errorf("%w: scan p2 item: %w", ErrTracingStoreFailed, err)
		}

		key := flatten.P2ItemKey{P2RecordID: p2RecordID, WinderNumber: winderNumber}
		if _, ok := wanted[key]; !ok {
			continue
		}

		if err := json.Unmarshal(rowData, &item); err != nil {
			return nil, fmt.Errorf("unmarshal p2 item row_data: %w", err)
		}

		out[key] = item
	}

	return out, rows.Err()
}

// FindP1ByLots implements flatten.Store.
func (s *TracingStore) FindP1ByLots(
	ctx context.Context, tenantID string, lotNoNorms []int64,
) (map[int64]tracing.P1Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT row_data FROM p1_records WHERE tenant_id = $1 AND lot_no_norm = ANY($2)
	`, tenantID, pq.Array(lotNoNorms))
	if err != nil {
		return nil, fmt.Errorf("%w: find p1 records: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	out := make(map[int64]tracing.P1Record, len(lotNoNorms))

	for rows.Next() {
		var (
			rowData []byte
			rec     tracing.P1Record
		)

		if err := rows.Scan(&rowData); err != nil {
			return nil, fmt.Errorf("%w: scan p1 record: %w", ErrTracingStoreFailed, err)
		}

		if err := json.Unmarshal(rowData, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal p1 row_data: %w", err)
		}

		out[rec.LotNoNorm] = rec
	}

	return out, rows.Err()
}
