package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linelot/linelot/internal/query"
)

// Compile-time interface assertion: early failure if query.Store changes shape.
var _ query.Store = (*TracingStore)(nil)

// ErrUnknownDataType is returned when Filters.DataType is not P1/P2/P3.
var ErrUnknownDataType = errors.New("unknown data_type")

// whereBuilder accumulates parameterized WHERE conditions, the same
// incremental-placeholder pattern the teacher's get_incidents.go filter
// builder uses, generalized to the three lineage tables.
type whereBuilder struct {
	conds []string
	args  []any
}

func newWhereBuilder(tenantID string) *whereBuilder {
	return &whereBuilder{conds: []string{"tenant_id = $1"}, args: []any{tenantID}}
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) sql() string {
	return strings.Join(w.conds, " AND ")
}

// Search implements query.Store, dispatching by data type since the three
// lineage tables have distinct filterable columns (spec §4.C/§4.H).
func (s *TracingStore) Search(
	ctx context.Context, tenantID string, f query.Filters, page query.Page,
) ([]query.RawRow, int, error) {
	switch f.DataType {
	case query.DataTypeP1:
		return s.searchP1(ctx, tenantID, f, page)
	case query.DataTypeP2:
		return s.searchP2(ctx, tenantID, f, page)
	case query.DataTypeP3:
		return s.searchP3(ctx, tenantID, f, page)
	default:
		return nil, 0, ErrUnknownDataType
	}
}

func (s *TracingStore) searchP1(
	ctx context.Context, tenantID string, f query.Filters, page query.Page,
) ([]query.RawRow, int, error) {
	w := newWhereBuilder(tenantID)
	if f.LotNo != "" {
		w.add("lot_no_raw ILIKE $%d", "%"+f.LotNo+"%")
	}

	applyDateRangeAliased(w, "production_date", f)

	where := w.sql()

	total, err := s.countRows(ctx, "p1_records", where, w.args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT row_data, lot_no_norm, lot_no_raw, production_date
		FROM p1_records WHERE %s
		ORDER BY production_date, lot_no_norm
		LIMIT %d OFFSET %d
	`, where, page.PageSize, (page.Page-1)*page.PageSize), w.args...) //nolint:gosec // where/limit/offset built from fixed placeholders, not user text
	if err != nil {
		return nil, 0, fmt.Errorf("%w: search p1: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	out, err := scanRawRows(rows, query.DataTypeP1, nil)

	return out, total, err
}

func (s *TracingStore) searchP2(
	ctx context.Context, tenantID string, f query.Filters, page query.Page,
) ([]query.RawRow, int, error) {
	w := newWhereBuilder(tenantID)
	w.conds[0] = "pi.tenant_id = $1"

	if f.LotNo != "" {
		w.add("pr.lot_no_raw ILIKE $%d", "%"+f.LotNo+"%")
	}

	if f.WinderNumber != nil {
		w.add("pi.winder_number = $%d", *f.WinderNumber)
	}

	applyDateRangeAliased(w, "pr.production_date", f)

	where := w.sql()

	total, err := s.countRows(ctx, "p2_items pi JOIN p2_records pr ON pr.id = pi.p2_record_id", where, w.args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT pi.row_data, pr.lot_no_norm, pr.lot_no_raw, pr.production_date, pi.winder_number
		FROM p2_items pi JOIN p2_records pr ON pr.id = pi.p2_record_id
		WHERE %s
		ORDER BY pr.production_date, pr.lot_no_norm, pi.winder_number
		LIMIT %d OFFSET %d
	`, where, page.PageSize, (page.Page-1)*page.PageSize), w.args...) //nolint:gosec
	if err != nil {
		return nil, 0, fmt.Errorf("%w: search p2: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	out, err := scanRawRows(rows, query.DataTypeP2, func(scan func(dest ...any) error) (*int, error) {
		var winder int
		if err := scan(&winder); err != nil {
			return nil, err
		}

		return &winder, nil
	})

	return out, total, err
}

func (s *TracingStore) searchP3(
	ctx context.Context, tenantID string, f query.Filters, page query.Page,
) ([]query.RawRow, int, error) {
	w := newWhereBuilder(tenantID)
	w.conds[0] = "pi.tenant_id = $1"

	if f.LotNo != "" {
		w.add("pr.lot_no_raw ILIKE $%d", "%"+f.LotNo+"%")
	}

	if f.MachineNo != "" {
		w.add("pi.machine_no = $%d", f.MachineNo)
	}

	if f.MoldNo != "" {
		w.add("pi.mold_no = $%d", f.MoldNo)
	}

	if f.ProductID != "" {
		w.add("pi.product_id ILIKE $%d", "%"+f.ProductID+"%")
	}

	if f.Specification != "" {
		w.add("pi.row_data->>'Specification' = $%d", f.Specification)
	}

	if f.BottomTapeLot != "" {
		w.add("pi.row_data->>'BottomTapeLot' = $%d", f.BottomTapeLot)
	}

	applyDateRangeAliased(w, "pr.production_date", f)

	where := w.sql()

	total, err := s.countRows(ctx, "p3_items pi JOIN p3_records pr ON pr.id = pi.p3_record_id", where, w.args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT pi.row_data, pr.lot_no_norm, pr.lot_no_raw, pr.production_date
		FROM p3_items pi JOIN p3_records pr ON pr.id = pi.p3_record_id
		WHERE %s
		ORDER BY pr.production_date, pi.product_id
		LIMIT %d OFFSET %d
	`, where, page.PageSize, (page.Page-1)*page.PageSize), w.args...) //nolint:gosec
	if err != nil {
		return nil, 0, fmt.Errorf("%w: search p3: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	out, err := scanRawRows(rows, query.DataTypeP3, nil)

	return out, total, err
}

func applyDateRangeAliased(w *whereBuilder, column string, f query.Filters) {
	if f.ProductionDateFrom != nil {
		w.add(column+" >= to_timestamp($%d)", *f.ProductionDateFrom)
	}

	if f.ProductionDateTo != nil {
		w.add(column+" <= to_timestamp($%d)", *f.ProductionDateTo)
	}
}

func (s *TracingStore) countRows(ctx context.Context, from, where string, args []any) (int, error) {
	var total int

	err := s.conn.QueryRowContext(
		ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, from, where), args..., //nolint:gosec
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", ErrTracingStoreFailed, from, err)
	}

	return total, nil
}

// scanRawRows scans the common (row_data, lot_no_norm, lot_no_raw,
// production_date[, ...extra]) shape into query.RawRow, calling
// scanExtra to pull any additional trailing column (e.g. winder_number
// for P2) before unmarshaling row_data.
func scanRawRows(
	rows *sql.Rows, dataType query.DataType, scanExtra func(scan func(dest ...any) error) (*int, error),
) ([]query.RawRow, error) {
	out := make([]query.RawRow, 0)

	for rows.Next() {
		var (
			rowData        []byte
			lotNoNorm      int64
			lotNoRaw       string
			productionDate time.Time
			winder         *int
		)

		if scanExtra != nil {
			var err error

			winder, err = scanExtra(func(dest ...any) error {
				args := append([]any{&rowData, &lotNoNorm, &lotNoRaw, &productionDate}, dest...)

				return rows.Scan(args...)
			})
			if err != nil {
				return nil, fmt.Errorf("%w: scan row: %w", ErrTracingStoreFailed, err)
			}
		} else if err := rows.Scan(&rowData, &lotNoNorm, &lotNoRaw, &productionDate); err != nil {
			return nil, fmt.Errorf("%w: scan row: %w", ErrTracingStoreFailed, err)
		}

		fields := make(map[string]any)
		if err := json.Unmarshal(rowData, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal row_data: %w", err)
		}

		ts := productionDate.Unix()

		out = append(out, query.RawRow{
			TraceKey:       query.EncodeTraceKey(lotNoNorm),
			LotNoNorm:      lotNoNorm,
			LotNoRaw:       lotNoRaw,
			DataType:       dataType,
			ProductionDate: &ts,
			WinderNumber:   winder,
			Fields:         fields,
		})
	}

	return out, rows.Err()
}

// DistinctValues implements query.Store. field selects which P3 column
// (or row_data key) to enumerate; unknown fields return an empty list
// rather than an error, since the field set is UI-driven.
func (s *TracingStore) DistinctValues(ctx context.Context, tenantID, field string) ([]string, error) {
	column, ok := map[string]string{
		"machine_no":      "machine_no",
		"mold_no":         "mold_no",
		"specification":   "row_data->>'Specification'",
		"winder_number":   "",
		"bottom_tape_lot": "row_data->>'BottomTapeLot'",
	}[field]
	if !ok {
		return []string{}, nil
	}

	if field == "winder_number" {
		return s.distinctP2WinderNumbers(ctx, tenantID)
	}

	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT %s AS v FROM p3_items WHERE tenant_id = $1 AND %s IS NOT NULL AND %s <> ''
		LIMIT %d
	`, column, column, column, query.MaxOptionValues), tenantID) //nolint:gosec // column is from the fixed allowlist above
	if err != nil {
		return nil, fmt.Errorf("%w: distinct %s: %w", ErrTracingStoreFailed, field, err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func (s *TracingStore) distinctP2WinderNumbers(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT DISTINCT winder_number::text FROM p2_items WHERE tenant_id = $1 LIMIT $2
	`, tenantID, query.MaxOptionValues)
	if err != nil {
		return nil, fmt.Errorf("%w: distinct winder_number: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	out := make([]string, 0)

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan value: %w", ErrTracingStoreFailed, err)
		}

		out = append(out, v)
	}

	return out, rows.Err()
}

// SuggestLots implements query.Store: canonical-form lot autocomplete.
func (s *TracingStore) SuggestLots(ctx context.Context, tenantID, term string, limit int) ([]query.LotSuggestion, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT DISTINCT lot_no_norm, lot_no_raw FROM (
			SELECT lot_no_norm, lot_no_raw FROM p1_records WHERE tenant_id = $1 AND lot_no_raw ILIKE $2
			UNION
			SELECT lot_no_norm, lot_no_raw FROM p2_records WHERE tenant_id = $1 AND lot_no_raw ILIKE $2
			UNION
			SELECT lot_no_norm, lot_no_raw FROM p3_records WHERE tenant_id = $1 AND lot_no_raw ILIKE $2
		) lots
		ORDER BY lot_no_norm
		LIMIT $3
	`, tenantID, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest lots: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	out := make([]query.LotSuggestion, 0)

	for rows.Next() {
		var (
			lotNoNorm int64
			lotNoRaw  string
		)

		if err := rows.Scan(&lotNoNorm, &lotNoRaw); err != nil {
			return nil, fmt.Errorf("%w: scan lot suggestion: %w", ErrTracingStoreFailed, err)
		}

		out = append(out, query.LotSuggestion{LotNoNorm: lotNoNorm, Canonical: lotNoRaw})
	}

	return out, rows.Err()
}

// FindP1ByLot implements query.Store.
func (s *TracingStore) FindP1ByLot(ctx context.Context, tenantID string, lotNoNorm int64) (map[string]any, bool, error) {
	var rowData []byte

	err := s.conn.QueryRowContext(ctx, `
		SELECT row_data FROM p1_records WHERE tenant_id = $1 AND lot_no_norm = $2
	`, tenantID, lotNoNorm).Scan(&rowData)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("%w: find p1 by lot: %w", ErrTracingStoreFailed, err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(rowData, &fields); err != nil {
		return nil, false, fmt.Errorf("unmarshal p1 row_data: %w", err)
	}

	return fields, true, nil
}

// FindP2ItemsByLot implements query.Store.
func (s *TracingStore) FindP2ItemsByLot(ctx context.Context, tenantID string, lotNoNorm int64) ([]map[string]any, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT pi.row_data FROM p2_items pi JOIN p2_records pr ON pr.id = pi.p2_record_id
		WHERE pi.tenant_id = $1 AND pr.lot_no_norm = $2
		ORDER BY pi.winder_number
	`, tenantID, lotNoNorm)
	if err != nil {
		return nil, fmt.Errorf("%w: find p2 items by lot: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	return scanFieldMaps(rows)
}

// FindP3ItemsByLot implements query.Store.
func (s *TracingStore) FindP3ItemsByLot(ctx context.Context, tenantID string, lotNoNorm int64) ([]map[string]any, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT pi.row_data FROM p3_items pi JOIN p3_records pr ON pr.id = pi.p3_record_id
		WHERE pi.tenant_id = $1 AND pr.lot_no_norm = $2
		ORDER BY pi.row_no
	`, tenantID, lotNoNorm)
	if err != nil {
		return nil, fmt.Errorf("%w: find p3 items by lot: %w", ErrTracingStoreFailed, err)
	}
	defer rows.Close()

	return scanFieldMaps(rows)
}

func scanFieldMaps(rows *sql.Rows) ([]map[string]any, error) {
	out := make([]map[string]any, 0)

	for rows.Next() {
		var rowData []byte
		if err := rows.Scan(&rowData); err != nil {
			return nil, fmt.Errorf("%w: scan row_data: %w", ErrTracingStoreFailed, err)
		}

		fields := make(map[string]any)
		if err := json.Unmarshal(rowData, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal row_data: %w", err)
		}

		out = append(out, fields)
	}

	return out, rows.Err()
}
