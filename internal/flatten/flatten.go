package flatten

import (
	"context"
	"fmt"
	"sort"

	"github.com/linelot/linelot/internal/tracing"
)

// Flattener runs the batched P3→P2→P1 join (spec §4.G). It holds no
// mutable state between requests — every call opens its own ephemeral
// maps and is safe under unbounded concurrent callers up to DB pool
// capacity, matching the stateless concurrency contract.
type Flattener struct {
	store   Store
	columns []ColumnMapping
}

// New constructs a Flattener over store with the given output column map.
// Pass DefaultColumns() for the stock mapping.
func New(store Store, columns []ColumnMapping) *Flattener {
	return &Flattener{store: store, columns: columns}
}

// Flatten resolves query and returns the flat rows, applying the
// caps/auto-compression table and the ordering guarantee.
func (f *Flattener) Flatten(ctx context.Context, tenantID string, query Query) (*Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rows, err := f.fetchP3(ctx, tenantID, query)
	if err != nil {
		return nil, fmt.Errorf("fetch p3 rows: %w", err)
	}

	sortP3Rows(rows)

	compression, ok := compressionFor(len(rows))
	if !ok {
		return nil, ErrResultTooLarge
	}

	data, err := f.join(ctx, tenantID, rows)
	if err != nil {
		return nil, fmt.Errorf("join p3 rows: %w", err)
	}

	return &Result{
		Data:     data,
		Count:    len(data),
		HasData:  len(data) > 0,
		Metadata: f.metadata(query, compression),
	}, nil
}

func (f *Flattener) fetchP3(ctx context.Context, tenantID string, query Query) ([]P3Row, error) {
	if query.isMonthly() {
		return f.store.FindP3ByMonth(ctx, tenantID, query.Year, query.Month)
	}

	return f.store.FindP3ByProductIDs(ctx, tenantID, query.ProductIDs)
}

func (f *Flattener) metadata(query Query, compression string) Metadata {
	m := Metadata{
		Compression:        compression,
		NullHandling:       "explicit",
		EmptyArrayHandling: "preserve",
	}

	if query.isMonthly() {
		m.QueryType = "monthly"
		m.Year = query.Year
		m.Month = query.Month

		return m
	}

	m.QueryType = "product_ids"
	m.ProductIDs = query.ProductIDs

	return m
}

// sortP3Rows enforces (production_date ASC, product_id ASC NULLS LAST),
// the flattener's deterministic ordering guarantee.
func sortP3Rows(rows []P3Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.ProductionDate.Equal(b.ProductionDate) {
			return a.ProductionDate.Before(b.ProductionDate)
		}

		return productIDLess(a.ProductID, b.ProductID)
	})
}

func productIDLess(a, b *string) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return false // nil sorts last
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

// join batch-fetches every P2 header, P2 item, and P1 record the rows
// reference and emits one FlatRow per P3 item, steps 2-6 of the
// flatten algorithm.
func (f *Flattener) join(ctx context.Context, tenantID string, rows []P3Row) ([]FlatRow, error) {
	lots := distinctLots(rows)

	p2Headers, err := f.store.FindP2HeadersByLots(ctx, tenantID, lots)
	if err != nil {
		return nil, fmt.Errorf("batch-fetch p2 headers: %w", err)
	}

	p1Records, err := f.store.FindP1ByLots(ctx, tenantID, lots)
	if err != nil {
		return nil, fmt.Errorf("batch-fetch p1 records: %w", err)
	}

	p2Items, err := f.store.FindP2ItemsByKeys(ctx, tenantID, p2ItemKeys(rows, p2Headers))
	if err != nil {
		return nil, fmt.Errorf("batch-fetch p2 items: %w", err)
	}

	out := make([]FlatRow, 0, len(rows))

	for _, row := range rows {
		p2Header, hasP2Header := p2Headers[row.LotNoNorm]
		p1, hasP1 := p1Records[row.LotNoNorm]

		var (
			p2Item    tracing.P2Item
			hasP2Item bool
		)

		if hasP2Header && row.SourceWinder != nil {
			p2Item, hasP2Item = p2Items[P2ItemKey{P2RecordID: p2Header.ID, WinderNumber: *row.SourceWinder}]
		}

		values := buildSourceValues(row.P3Item, p2Header, hasP2Header, p2Item, hasP2Item, p1, hasP1)
		out = append(out, projectRow(values, f.columns))
	}

	return out, nil
}

func distinctLots(rows []P3Row) []int64 {
	seen := make(map[int64]struct{}, len(rows))

	lots := make([]int64, 0, len(rows))

	for _, row := range rows {
		if _, ok := seen[row.LotNoNorm]; ok {
			continue
		}

		seen[row.LotNoNorm] = struct{}{}

		lots = append(lots, row.LotNoNorm)
	}

	return lots
}

func p2ItemKeys(rows []P3Row, p2Headers map[int64]tracing.P2Record) []P2ItemKey {
	seen := make(map[P2ItemKey]struct{}, len(rows))

	keys := make([]P2ItemKey, 0, len(rows))

	for _, row := range rows {
		header, ok := p2Headers[row.LotNoNorm]
		if !ok || row.SourceWinder == nil {
			continue
		}

		key := P2ItemKey{P2RecordID: header.ID, WinderNumber: *row.SourceWinder}
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		keys = append(keys, key)
	}

	return keys
}

// projectRow emits exactly one value per configured output column,
// nil when the source isn't populated for this row — never omitted.
func projectRow(values map[string]any, columns []ColumnMapping) FlatRow {
	row := make(FlatRow, len(columns))

	for _, col := range columns {
		row[col.Column] = values[col.Source] // nil if key absent, by design
	}

	return row
}
