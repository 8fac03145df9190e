package tracing

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/linelot/linelot/internal/normalize"
	"github.com/linelot/linelot/internal/schema"
)

// Validator runs the four ordered rule layers of spec §4.D against parsed
// rows. It is stateless (no mutable fields), matching the teacher's
// ingestion.Validator shape, so one instance is shared across all
// concurrent job workers.
type Validator struct{}

// NewValidator constructs a stateless Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// yesNoMap / okNgMap implement the Y/N -> bool and OK/NG -> int coercions
// the UI formatting layer expects from column-level type coercion.
var (
	yesNoMap = map[string]bool{"Y": true, "YES": true, "N": false, "NO": false}
	okNgMap  = map[string]int{"OK": 1, "NG": 0}
)

// ValidateColumns runs layer 1 (required / type coercion / regex-range /
// enumeration) against one parsed row. It continues past the first error
// to collect every column-level error for the row, as spec §4.D requires.
func (v *Validator) ValidateColumns(row map[string]string, fields []schema.FieldSpec) []ErrorEntry {
	var errs []ErrorEntry

	for _, f := range fields {
		raw, present := row[f.Column]
		trimmed := strings.TrimSpace(raw)

		if f.Required && (!present || trimmed == "") {
			errs = append(errs, ErrorEntry{Field: f.Column, ErrorCode: string(ECRequired), Message: f.Column + " is required"})

			continue
		}

		if trimmed == "" {
			continue // optional and absent: nothing further to check
		}

		if err := v.coerceAndCheck(f, trimmed); err != nil {
			errs = append(errs, *err)
		}
	}

	return errs
}

func (v *Validator) coerceAndCheck(f schema.FieldSpec, trimmed string) *ErrorEntry {
	switch f.Type {
	case schema.FieldInt:
		n, ok := coerceInt(trimmed)
		if !ok {
			return &ErrorEntry{Field: f.Column, ErrorCode: string(ECType), Message: "expected integer", Value: trimmed}
		}

		return rangeCheck(f, float64(n), trimmed)

	case schema.FieldFloat:
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return &ErrorEntry{Field: f.Column, ErrorCode: string(ECType), Message: "expected float", Value: trimmed}
		}

		return rangeCheck(f, n, trimmed)

	case schema.FieldBool:
		if _, ok := yesNoMap[strings.ToUpper(trimmed)]; !ok {
			return &ErrorEntry{Field: f.Column, ErrorCode: string(ECType), Message: "expected Y/N", Value: trimmed}
		}

		return nil

	case schema.FieldDate:
		if _, err := normalize.NormalizeDate(trimmed); err != nil {
			return &ErrorEntry{Field: f.Column, ErrorCode: string(ECDateFormat), Message: err.Error(), Value: trimmed}
		}

		return nil

	default: // text
		if f.Regex != "" {
			if ok, err := regexp.MatchString(f.Regex, trimmed); err != nil || !ok {
				return &ErrorEntry{Field: f.Column, ErrorCode: string(ECRegex), Message: "does not match pattern", Value: trimmed}
			}
		}

		return enumCheck(f, trimmed)
	}
}

// coerceInt accepts plain integers plus the OK/NG -> 1/0 map used by UI
// formatting.
func coerceInt(trimmed string) (int, bool) {
	if n, ok := okNgMap[strings.ToUpper(trimmed)]; ok {
		return n, true
	}

	n, err := strconv.Atoi(trimmed)

	return n, err == nil
}

func rangeCheck(f schema.FieldSpec, n float64, trimmed string) *ErrorEntry {
	if f.Min != nil && n < *f.Min {
		return &ErrorEntry{Field: f.Column, ErrorCode: string(ECRange), Message: "below minimum", Value: trimmed}
	}

	if f.Max != nil && n > *f.Max {
		return &ErrorEntry{Field: f.Column, ErrorCode: string(ECRange), Message: "above maximum", Value: trimmed}
	}

	return enumCheck(f, trimmed)
}

func enumCheck(f schema.FieldSpec, trimmed string) *ErrorEntry {
	if len(f.Enum) == 0 {
		return nil
	}

	for _, v := range f.Enum {
		if v == trimmed {
			return nil
		}
	}

	return &ErrorEntry{Field: f.Column, ErrorCode: string(ECEnum), Message: "not in allowed set", Value: trimmed}
}

// ValidateCrossField runs layer 2: rules that compare two columns within
// the same row. Table-specific: P2 requires `notes` when `appearance=NG`;
// P3 requires `mold_no` whenever `machine_no` is present.
func (v *Validator) ValidateCrossField(table TableCode, row map[string]string) []ErrorEntry {
	var errs []ErrorEntry

	switch table {
	case TableP2:
		if strings.EqualFold(strings.TrimSpace(row["appearance"]), "NG") && strings.TrimSpace(row["notes"]) == "" {
			errs = append(errs, ErrorEntry{Field: "notes", ErrorCode: string(ECRequired), Message: "notes required when appearance=NG"})
		}
	case TableP3:
		if strings.TrimSpace(row["machine_no"]) != "" && strings.TrimSpace(row["mold_no"]) == "" {
			errs = append(errs, ErrorEntry{Field: "mold_no", ErrorCode: string(ECRequired), Message: "mold_no required when machine_no is present"})
		}
	}

	return errs
}

// BatchRow pairs a staging row's 1-based row_index with its parsed
// key columns, used by the cross-row and cross-table layers.
type BatchRow struct {
	RowIndex  int
	LotNoNorm int64
	Winder    int    // P2 only
	ProductID string // P3 only; empty if not present
}

// ValidateCrossRow runs layer 3: within-batch uniqueness. For P2, (lot_no_norm,
// winder_number) must be unique across the file; for P3, product_id (when
// present) must be unique. Returns a map of rowIndex -> errors for rows
// that lose the uniqueness race (first occurrence wins, later ones error).
func (v *Validator) ValidateCrossRow(table TableCode, rows []BatchRow) map[int][]ErrorEntry {
	errs := map[int][]ErrorEntry{}

	switch table {
	case TableP2:
		seen := map[[2]int64]bool{}

		for _, r := range rows {
			key := [2]int64{r.LotNoNorm, int64(r.Winder)}
			if seen[key] {
				errs[r.RowIndex] = append(errs[r.RowIndex], ErrorEntry{
					Field: "winder_number", ErrorCode: string(ECUniqueInFile),
					Message: "duplicate (lot_no_norm, winder_number) in batch",
				})

				continue
			}

			seen[key] = true
		}

	case TableP3:
		seen := map[string]bool{}

		for _, r := range rows {
			if r.ProductID == "" {
				continue
			}

			if seen[r.ProductID] {
				errs[r.RowIndex] = append(errs[r.RowIndex], ErrorEntry{
					Field: "product_id", ErrorCode: string(ECUniqueInFile),
					Message: "duplicate product_id in batch", Value: r.ProductID,
				})

				continue
			}

			seen[r.ProductID] = true
		}
	}

	return errs
}

// ValidateCrossTable runs layer 4: optional, per-tenant-enabled referential
// checks against the store. P3 rows must reference an existing P2 with a
// matching lot_no_norm; P2 rows must reference an existing P1. This check
// is advisory (may race with concurrent writers); DB unique/FK constraints
// at commit time are the true authority (spec §4.F "Commit vs validation
// authority").
func (v *Validator) ValidateCrossTable(ctx context.Context, store Store, tenantID string, table TableCode, rows []BatchRow) (map[int][]ErrorEntry, error) {
	errs := map[int][]ErrorEntry{}

	for _, r := range rows {
		found, err := store.FindByLot(ctx, tenantID, r.LotNoNorm)
		if err != nil {
			return nil, fmt.Errorf("cross-table lookup: %w", err)
		}

		switch table {
		case TableP3:
			if found == nil || found.P2 == nil {
				errs[r.RowIndex] = []ErrorEntry{{Field: "lot_no", ErrorCode: string(ECFKMissing), Message: "no matching P2 header for lot_no_norm"}}
			}
		case TableP2:
			if found == nil || found.P1 == nil {
				errs[r.RowIndex] = []ErrorEntry{{Field: "lot_no", ErrorCode: string(ECFKMissing), Message: "no matching P1 record for lot_no_norm"}}
			}
		}
	}

	return errs, nil
}
