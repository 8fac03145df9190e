package api

import "time"

type (
	// ImportJobResponse is the wire shape of an ingestion job (spec §6).
	ImportJobResponse struct {
		ID           string        `json:"id"`
		TenantID     string        `json:"tenant_id"`
		TableCode    string        `json:"table_code"`
		Status       string        `json:"status"`
		Progress     int           `json:"progress"`
		TotalRows    int           `json:"total_rows"`
		ErrorCount   int           `json:"error_count"`
		ErrorSummary *ErrorSummary `json:"error_summary,omitempty"`
		CreatedAt    time.Time     `json:"created_at"`
		UpdatedAt    time.Time     `json:"updated_at"`
	}

	// ErrorSummary mirrors tracing.ErrorSummary for the wire response.
	ErrorSummary struct {
		Stage     string `json:"stage,omitempty"`
		ErrorCode string `json:"error_code,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	// StagingRowErrorResponse is one entry of GET /import/jobs/{id}/errors.
	StagingRowErrorResponse struct {
		RowIndex   int                 `json:"row_index"`
		Errors     []ErrorEntryDTO     `json:"errors"`
		ParsedJSON map[string]string   `json:"parsed_json"`
	}

	// ErrorEntryDTO mirrors tracing.ErrorEntry for the wire response.
	ErrorEntryDTO struct {
		Field     string `json:"field"`
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Value     string `json:"value,omitempty"`
	}
)

type (
	// SearchResponse is advanced search's response envelope (spec §4.H).
	SearchResponse struct {
		Total    int              `json:"total"`
		Page     int              `json:"page"`
		PageSize int              `json:"page_size"`
		Records  []SearchRecord   `json:"records"`
	}

	// SearchRecord is one row of a search result, generalized across
	// P1/P2/P3 into one flat presentation shape. AdditionalData carries
	// the P2 merge-rule's per-winder rows when applicable (spec §4.H).
	SearchRecord struct {
		TraceKey       string         `json:"trace_key"`
		DataType       string         `json:"data_type"`
		LotNo          string         `json:"lot_no"`
		ProductionDate *time.Time     `json:"production_date"`
		MachineNo      string         `json:"machine_no,omitempty"`
		MoldNo         string         `json:"mold_no,omitempty"`
		Specification  string         `json:"specification,omitempty"`
		WinderNumber   *int           `json:"winder_number,omitempty"`
		ProductID      string         `json:"product_id,omitempty"`
		BottomTapeLot  string         `json:"bottom_tape_lot,omitempty"`
		Fields         map[string]any `json:"fields,omitempty"`
		AdditionalData *AdditionalData `json:"additional_data,omitempty"`
	}

	// AdditionalData carries the merged per-winder rows for a P2 search
	// result when no winder_number filter narrowed the query.
	AdditionalData struct {
		Rows []map[string]any `json:"rows"`
	}

	// TraceDetailResponse is GET /query/trace/{trace_key}'s response.
	TraceDetailResponse struct {
		P1      map[string]any   `json:"p1"`
		P2Items []map[string]any `json:"p2_items"`
		P3Items []map[string]any `json:"p3_items"`
	}

	// LotSuggestionResponse is one entry of GET /query/lots/suggestions.
	LotSuggestionResponse struct {
		LotNoNorm int64  `json:"lot_no_norm"`
		Canonical string `json:"canonical"`
	}

	// OptionsResponse is GET /query/options/{field}'s response.
	OptionsResponse struct {
		Field  string   `json:"field"`
		Values []string `json:"values"`
	}
)

type (
	// FlattenResponse is the flatten(tenant, query) envelope (spec §4.G).
	FlattenResponse struct {
		Data     []map[string]any `json:"data"`
		Count    int              `json:"count"`
		HasData  bool             `json:"has_data"`
		Metadata FlattenMetadata  `json:"metadata"`
	}

	// FlattenMetadata mirrors flatten.Metadata for the wire response.
	FlattenMetadata struct {
		QueryType          string   `json:"query_type"`
		ProductIDs         []string `json:"product_ids,omitempty"`
		Year               int      `json:"year,omitempty"`
		Month              int      `json:"month,omitempty"`
		Compression        string   `json:"compression"`
		NullHandling       string   `json:"null_handling"`
		EmptyArrayHandling string   `json:"empty_array_handling"`
	}

	// FlattenHealthResponse is GET /analytics/traceability/health's response.
	FlattenHealthResponse struct {
		MaxProductIDs     int `json:"max_product_ids"`
		AutoGzipThreshold int `json:"auto_gzip_threshold"`
		ForcedGzipMax     int `json:"forced_gzip_max"`
		HardCap           int `json:"hard_cap"`
	}
)

type (
	// TenantResponse is the wire shape of a tenant (spec §6).
	TenantResponse struct {
		ID        string    `json:"id"`
		Code      string    `json:"code"`
		Name      string    `json:"name"`
		Active    bool      `json:"active"`
		CreatedAt time.Time `json:"created_at"`
	}

	// CreateTenantRequest is POST /tenants' request body.
	CreateTenantRequest struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}

	// APIKeyIssuedResponse carries a freshly minted API key. The
	// plaintext is returned exactly once, at creation time.
	APIKeyIssuedResponse struct {
		KeyID     string `json:"key_id"`
		TenantID  string `json:"tenant_id,omitempty"`
		Tier      string `json:"tier"`
		Label     string `json:"label"`
		APIKey    string `json:"api_key"`
	}

	// LoginRequest is POST /auth/login's request body.
	LoginRequest struct {
		TenantCode string `json:"tenant_code"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}

	// LoginResponse is POST /auth/login's response.
	LoginResponse struct {
		TenantID string `json:"tenant_id"`
		APIKey   string `json:"api_key"`
	}

	// CreateUserRequest is POST /auth/users' request body.
	CreateUserRequest struct {
		TenantID string `json:"tenant_id"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

// HealthResponse is GET /healthz's response.
type HealthResponse struct {
	Status string `json:"status"`
}
