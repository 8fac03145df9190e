package flatten

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnMapping renames one flattener output column, binding it to a
// source field from DefaultColumns. Column is the name clients see in
// flat_row; Source is one of the fixed keys buildSourceValues populates
// (see the Src* constants below).
type ColumnMapping struct {
	Column string `yaml:"column"`
	Source string `yaml:"source"`
}

// Config holds a tenant's output column map, loaded from YAML.
type Config struct {
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	Columns []ColumnMapping `yaml:"columns"`
}

const (
	// DefaultConfigPath mirrors the teacher's hidden-dotfile convention.
	DefaultConfigPath = ".linelot-flatten.yaml"

	// ConfigPathEnvVar names the env var a deployment uses to point at a
	// per-tenant column map file.
	ConfigPathEnvVar = "LINELOT_FLATTEN_CONFIG_PATH"
)

// LoadConfig loads a tenant's column map from path. A missing or
// unparseable file is not an error — it falls back to DefaultColumns(),
// mirroring aliasing.LoadConfig's graceful-degradation contract (an
// optional feature never blocks server or request startup).
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Columns: DefaultColumns()}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("flatten column map not found, using defaults", slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("failed to read flatten column map, using defaults",
			slog.String("path", path), slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	parsed := &Config{}
	if err := yaml.Unmarshal(data, parsed); err != nil {
		slog.Warn("failed to parse flatten column map, using defaults",
			slog.String("path", path), slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(parsed.Columns) == 0 {
		return cfg, nil
	}

	return parsed, nil
}

// Source keys populated into the per-row source value map (see flatten.go
// buildSourceValues). Exported so a tenant's YAML column map can bind a
// custom output column name to any of them.
const (
	SrcP3RowNo           = "p3.row_no"
	SrcP3ProductID       = "p3.product_id"
	SrcP3LotNo           = "p3.lot_no"
	SrcP3ProductionDate  = "p3.production_date"
	SrcP3MachineNo       = "p3.machine_no"
	SrcP3MoldNo          = "p3.mold_no"
	SrcP3ProductionLot   = "p3.production_lot"
	SrcP3SourceWinder    = "p3.source_winder"
	SrcP3Specification   = "p3.specification"
	SrcP3BottomTapeLot   = "p3.bottom_tape_lot"
	SrcP3AdjustmentValue = "p3.adjustment_value"

	SrcP1LotNoRaw       = "p1.lot_no_raw"
	SrcP1LotNoNorm      = "p1.lot_no_norm"
	SrcP1ProductionDate = "p1.production_date"

	SrcP2HeaderLotNoRaw       = "p2_header.lot_no_raw"
	SrcP2HeaderProductionDate = "p2_header.production_date"

	SrcP2ItemWinderNumber   = "p2_item.winder_number"
	SrcP2ItemSheetWidth     = "p2_item.sheet_width"
	SrcP2ItemThickness1     = "p2_item.thickness_1"
	SrcP2ItemThickness2     = "p2_item.thickness_2"
	SrcP2ItemThickness3     = "p2_item.thickness_3"
	SrcP2ItemThickness4     = "p2_item.thickness_4"
	SrcP2ItemThickness5     = "p2_item.thickness_5"
	SrcP2ItemThickness6     = "p2_item.thickness_6"
	SrcP2ItemThickness7     = "p2_item.thickness_7"
	SrcP2ItemAppearance     = "p2_item.appearance"
	SrcP2ItemRoughEdge      = "p2_item.rough_edge"
	SrcP2ItemSlittingResult = "p2_item.slitting_result"
)

// DefaultColumns is the stock output column map: one entry per joined
// field across P3 core, P1 join fields, P2 header join fields, and P2
// item join fields, each named after its source for readability. A
// tenant's YAML config with a non-empty column list replaces this default
// entirely: only the columns it lists are emitted, in its order.
func DefaultColumns() []ColumnMapping {
	return []ColumnMapping{
		{Column: "row_no", Source: SrcP3RowNo},
		{Column: "product_id", Source: SrcP3ProductID},
		{Column: "lot_no", Source: SrcP3LotNo},
		{Column: "production_date", Source: SrcP3ProductionDate},
		{Column: "machine_no", Source: SrcP3MachineNo},
		{Column: "mold_no", Source: SrcP3MoldNo},
		{Column: "production_lot", Source: SrcP3ProductionLot},
		{Column: "source_winder", Source: SrcP3SourceWinder},
		{Column: "specification", Source: SrcP3Specification},
		{Column: "bottom_tape_lot", Source: SrcP3BottomTapeLot},
		{Column: "adjustment_value", Source: SrcP3AdjustmentValue},

		{Column: "p1_lot_no_raw", Source: SrcP1LotNoRaw},
		{Column: "p1_lot_no_norm", Source: SrcP1LotNoNorm},
		{Column: "p1_production_date", Source: SrcP1ProductionDate},

		{Column: "p2_lot_no_raw", Source: SrcP2HeaderLotNoRaw},
		{Column: "p2_production_date", Source: SrcP2HeaderProductionDate},

		{Column: "p2_winder_number", Source: SrcP2ItemWinderNumber},
		{Column: "p2_sheet_width", Source: SrcP2ItemSheetWidth},
		{Column: "p2_thickness_1", Source: SrcP2ItemThickness1},
		{Column: "p2_thickness_2", Source: SrcP2ItemThickness2},
		{Column: "p2_thickness_3", Source: SrcP2ItemThickness3},
		{Column: "p2_thickness_4", Source: SrcP2ItemThickness4},
		{Column: "p2_thickness_5", Source: SrcP2ItemThickness5},
		{Column: "p2_thickness_6", Source: SrcP2ItemThickness6},
		{Column: "p2_thickness_7", Source: SrcP2ItemThickness7},
		{Column: "p2_appearance", Source: SrcP2ItemAppearance},
		{Column: "p2_rough_edge", Source: SrcP2ItemRoughEdge},
		{Column: "p2_slitting_result", Source: SrcP2ItemSlittingResult},
	}
}
