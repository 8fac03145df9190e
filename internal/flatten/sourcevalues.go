package flatten

import "github.com/linelot/linelot/internal/tracing"

// buildSourceValues maps one joined P3/P2/P1 row triple into the fixed
// set of source keys DefaultColumns (and any tenant override) can bind
// output columns to. A parent that wasn't found contributes nothing —
// its keys are simply absent from the map, and projectRow turns an
// absent key into an explicit nil, never an error.
func buildSourceValues(
	p3 tracing.P3Item,
	p2Header tracing.P2Record, hasP2Header bool,
	p2Item tracing.P2Item, hasP2Item bool,
	p1 tracing.P1Record, hasP1 bool,
) map[string]any {
	values := map[string]any{
		SrcP3RowNo:           p3.RowNo,
		SrcP3ProductID:       p3.ProductID,
		SrcP3LotNo:           p3.LotNo,
		SrcP3ProductionDate:  p3.ProductionDate,
		SrcP3MachineNo:       p3.MachineNo,
		SrcP3MoldNo:          p3.MoldNo,
		SrcP3ProductionLot:   p3.ProductionLot,
		SrcP3SourceWinder:    p3.SourceWinder,
		SrcP3Specification:   p3.Specification,
		SrcP3BottomTapeLot:   p3.BottomTapeLot,
		SrcP3AdjustmentValue: p3.AdjustmentValue,
	}

	if hasP1 {
		values[SrcP1LotNoRaw] = p1.LotNoRaw
		values[SrcP1LotNoNorm] = p1.LotNoNorm
		values[SrcP1ProductionDate] = p1.ProductionDate
	}

	if hasP2Header {
		values[SrcP2HeaderLotNoRaw] = p2Header.LotNoRaw
		values[SrcP2HeaderProductionDate] = p2Header.ProductionDate
	}

	if hasP2Item {
		values[SrcP2ItemWinderNumber] = p2Item.WinderNumber
		values[SrcP2ItemSheetWidth] = p2Item.SheetWidth
		values[SrcP2ItemThickness1] = p2Item.Thickness[0]
		values[SrcP2ItemThickness2] = p2Item.Thickness[1]
		values[SrcP2ItemThickness3] = p2Item.Thickness[2]
		values[SrcP2ItemThickness4] = p2Item.Thickness[3]
		values[SrcP2ItemThickness5] = p2Item.Thickness[4]
		values[SrcP2ItemThickness6] = p2Item.Thickness[5]
		values[SrcP2ItemThickness7] = p2Item.Thickness[6]
		values[SrcP2ItemAppearance] = p2Item.Appearance
		values[SrcP2ItemRoughEdge] = p2Item.RoughEdge
		values[SrcP2ItemSlittingResult] = p2Item.SlittingResult
	}

	return values
}
