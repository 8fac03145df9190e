package api

import (
	"time"

	"github.com/linelot/linelot/internal/flatten"
	"github.com/linelot/linelot/internal/query"
	"github.com/linelot/linelot/internal/tenant"
	"github.com/linelot/linelot/internal/tracing"
)

func toImportJobResponse(job *tracing.ImportJob) ImportJobResponse {
	resp := ImportJobResponse{
		ID:         job.ID,
		TenantID:   job.TenantID,
		TableCode:  string(job.TableCode),
		Status:     string(job.Status),
		Progress:   job.Progress,
		TotalRows:  job.TotalRows,
		ErrorCount: job.ErrorCount,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}

	if job.ErrorSummary != nil {
		resp.ErrorSummary = &ErrorSummary{
			Stage:     job.ErrorSummary.Stage,
			ErrorCode: job.ErrorSummary.ErrorCode,
			Error:     job.ErrorSummary.Error,
		}
	}

	return resp
}

func toStagingRowErrorResponse(row *tracing.StagingRow) StagingRowErrorResponse {
	entries := make([]ErrorEntryDTO, 0, len(row.Errors))
	for _, e := range row.Errors {
		entries = append(entries, ErrorEntryDTO{
			Field:     e.Field,
			ErrorCode: e.ErrorCode,
			Message:   e.Message,
			Value:     e.Value,
		})
	}

	return StagingRowErrorResponse{
		RowIndex:   row.RowIndex,
		Errors:     entries,
		ParsedJSON: row.ParsedJSON,
	}
}

func toSearchResponse(result *query.SearchResult) SearchResponse {
	records := make([]SearchRecord, 0, len(result.Records))
	for _, r := range result.Records {
		records = append(records, toSearchRecord(r))
	}

	return SearchResponse{
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		Records:  records,
	}
}

func toSearchRecord(r query.Record) SearchRecord {
	rec := SearchRecord{
		TraceKey:       r.TraceKey,
		DataType:       string(r.DataType),
		LotNo:          r.LotNoRaw,
		ProductionDate: unixToTime(r.ProductionDate),
		Fields:         r.Fields,
	}

	if v, ok := r.Fields["machine_no"].(string); ok {
		rec.MachineNo = v
	}

	if v, ok := r.Fields["mold_no"].(string); ok {
		rec.MoldNo = v
	}

	if v, ok := r.Fields["specification"].(string); ok {
		rec.Specification = v
	}

	if v, ok := r.Fields["product_id"].(string); ok {
		rec.ProductID = v
	}

	if v, ok := r.Fields["bottom_tape_lot"].(string); ok {
		rec.BottomTapeLot = v
	}

	if r.AdditionalRows != nil {
		rec.AdditionalData = &AdditionalData{Rows: r.AdditionalRows}
	}

	return rec
}

func toTraceDetailResponse(d *query.TraceDetail) TraceDetailResponse {
	return TraceDetailResponse{
		P1:      d.P1,
		P2Items: d.P2Items,
		P3Items: d.P3Items,
	}
}

func toFlattenResponse(result *flatten.Result) FlattenResponse {
	data := make([]map[string]any, 0, len(result.Data))
	for _, row := range result.Data {
		data = append(data, row)
	}

	return FlattenResponse{
		Data:    data,
		Count:   result.Count,
		HasData: result.HasData,
		Metadata: FlattenMetadata{
			QueryType:          result.Metadata.QueryType,
			ProductIDs:         result.Metadata.ProductIDs,
			Year:               result.Metadata.Year,
			Month:              result.Metadata.Month,
			Compression:        result.Metadata.Compression,
			NullHandling:       result.Metadata.NullHandling,
			EmptyArrayHandling: result.Metadata.EmptyArrayHandling,
		},
	}
}

func toTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID,
		Code:      t.Code,
		Name:      t.Name,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
	}
}

func unixToTime(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}

	t := time.Unix(*sec, 0).UTC()

	return &t
}
