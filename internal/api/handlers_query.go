package api

import (
	"net/http"
	"strconv"

	"github.com/linelot/linelot/internal/query"
)

// handleSearch implements GET /query/records and GET /query/records/advanced
// (spec §6 "Query": identical handler, the "advanced" alias exists only so
// callers can be explicit about wanting per-winder P2 rows via
// winder_number).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	f, err := filtersFromQuery(r)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	page := query.Page{Page: queryInt(r, "page", 0), PageSize: queryInt(r, "page_size", 0)}

	result, err := s.engine.Search(r.Context(), callerTenantID(r), f, page)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, toSearchResponse(result))
}

func filtersFromQuery(r *http.Request) (query.Filters, error) {
	q := r.URL.Query()

	f := query.Filters{
		DataType:      query.DataType(q.Get("data_type")),
		LotNo:         q.Get("lot_no"),
		MachineNo:     q.Get("machine_no"),
		MoldNo:        q.Get("mold_no"),
		Specification: q.Get("specification"),
		ProductID:     q.Get("product_id"),
		BottomTapeLot: q.Get("bottom_tape_lot"),
	}

	if v := q.Get("winder_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}

		f.WinderNumber = &n
	}

	if v := q.Get("production_date_from"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}

		f.ProductionDateFrom = &n
	}

	if v := q.Get("production_date_to"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}

		f.ProductionDateTo = &n
	}

	return f, nil
}

// handleTrace implements GET /query/trace/{trace_key}.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	detail, err := s.engine.Trace(r.Context(), callerTenantID(r), r.PathValue("trace_key"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, toTraceDetailResponse(detail))
}

// handleLotSuggestions implements GET /query/lots/suggestions?term=&limit=.
func (s *Server) handleLotSuggestions(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	limit := queryInt(r, "limit", 0)

	suggestions, err := s.engine.Suggestions(r.Context(), callerTenantID(r), term, limit)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	out := make([]LotSuggestionResponse, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, LotSuggestionResponse{LotNoNorm: sg.LotNoNorm, Canonical: sg.Canonical})
	}

	writeJSON(w, r, s.logger, http.StatusOK, out)
}

// handleOptions implements GET /query/options/{field}.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")

	values, err := s.engine.Options(r.Context(), callerTenantID(r), field)
	if err != nil {
		writeDomainError(w, r, s.logger, err)

		return
	}

	writeJSON(w, r, s.logger, http.StatusOK, OptionsResponse{Field: field, Values: values})
}
