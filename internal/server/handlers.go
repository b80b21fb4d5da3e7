package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cairnlabs/storelens/internal/cache"
	"github.com/cairnlabs/storelens/internal/census"
	"github.com/cairnlabs/storelens/internal/insight"
	"github.com/cairnlabs/storelens/internal/warehouse"
)

type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, apiError{Code: code, Message: msg})
}

// mapError translates domain errors to HTTP statuses. Loader failures are
// server-side problems; geography misses are not-found; upstream Census
// trouble is a bad gateway; a missing key is unconfigured, not broken.
func (s *Server) mapError(w http.ResponseWriter, err error) {
	var dsErr *warehouse.DataSourceError
	var schemaErr *warehouse.SchemaError
	var geoErr *census.GeoResolutionError
	var svcErr *census.ExternalServiceError

	switch {
	case errors.Is(err, census.ErrNoAPIKey):
		s.writeError(w, http.StatusServiceUnavailable, "census_unconfigured", err.Error())
	case errors.As(err, &geoErr):
		s.writeError(w, http.StatusNotFound, "geo_resolution_failed", err.Error())
	case errors.As(err, &svcErr):
		s.writeError(w, http.StatusBadGateway, "external_service_error", err.Error())
	case errors.As(err, &dsErr):
		s.writeError(w, http.StatusInternalServerError, "data_source_error", err.Error())
	case errors.As(err, &schemaErr):
		s.writeError(w, http.StatusInternalServerError, "schema_error", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// parseFilter reads the shared start/end/stores query parameters.
func parseFilter(r *http.Request) (insight.Filter, error) {
	var f insight.Filter
	q := r.URL.Query()

	if v := q.Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("start must be YYYY-MM-DD")
		}
		f.Dates.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("end must be YYYY-MM-DD")
		}
		f.Dates.End = t
	}
	if !f.Dates.Start.IsZero() && !f.Dates.End.IsZero() && f.Dates.End.Before(f.Dates.Start) {
		return f, errors.New("end precedes start")
	}
	f.StoreIDs = splitParam(q.Get("stores"))
	return f, nil
}

// splitParam splits a comma-separated query value, dropping empties.
func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) snapshot(r *http.Request) (*cache.Snapshot, error) {
	return s.cache.Get(r.Context(), s.key)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r)
	if err != nil {
		s.mapError(w, err)
		return
	}
	defer snap.Release()
	stores, err := snap.Warehouse.Stores(r.Context())
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"epoch":     snap.ID,
		"loaded_at": snap.LoadedAt,
		"stores":    stores,
	})
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r)
	if err != nil {
		s.mapError(w, err)
		return
	}
	defer snap.Release()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"epoch":  snap.ID,
		"report": snap.Report,
	})
}

func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
	}

	snap, err := s.snapshot(r)
	if err != nil {
		s.mapError(w, err)
		return
	}
	defer snap.Release()
	result, err := insight.TopProducts(r.Context(), snap.Warehouse,
		insight.TopProductsFilter{Filter: filter, Limit: limit})
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"rows":   result.Products,
		"kpis":   result.KPIs,
		"series": result.Weekly,
	})
}

func (s *Server) handleBeverageBrands(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	q := r.URL.Query()
	metric := insight.DropMetric(q.Get("metric"))
	switch metric {
	case "", insight.DropByRevenue, insight.DropByQuantity, insight.DropByTransactions:
	default:
		s.writeError(w, http.StatusBadRequest, "bad_request",
			"metric must be revenue, quantity, or transactions")
		return
	}

	snap, err := s.snapshot(r)
	if err != nil {
		s.mapError(w, err)
		return
	}
	defer snap.Release()
	result, err := insight.BeverageBrands(r.Context(), snap.Warehouse, insight.BeverageFilter{
		Filter:        filter,
		Categories:    splitParam(q.Get("categories")),
		ExcludeBrands: splitParam(q.Get("exclude")),
		Metric:        metric,
	})
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"rows":            result.Brands,
		"drop_candidates": result.DropCandidates,
		"kpis":            result.KPIs,
		"series":          result.Monthly,
	})
}

func (s *Server) handlePaymentComparison(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var classes []insight.PaymentClass
	for _, c := range splitParam(r.URL.Query().Get("classes")) {
		pc := insight.PaymentClass(c)
		switch pc {
		case insight.PayCash, insight.PayCredit, insight.PayOther, insight.PayUnknown:
			classes = append(classes, pc)
		default:
			s.writeError(w, http.StatusBadRequest, "bad_request",
				"classes must be cash, credit, other, or unknown")
			return
		}
	}

	snap, err := s.snapshot(r)
	if err != nil {
		s.mapError(w, err)
		return
	}
	defer snap.Release()
	result, err := insight.PaymentComparison(r.Context(), snap.Warehouse,
		insight.PaymentFilter{Filter: filter, Classes: classes})
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"rows":   result.Classes,
		"kpis":   result.KPIs,
		"series": result.Monthly,
	})
}

func (s *Server) handleDemographics(w http.ResponseWriter, r *http.Request) {
	if s.census == nil {
		s.writeError(w, http.StatusServiceUnavailable, "census_unconfigured",
			"no census api key configured")
		return
	}
	q := r.URL.Query()
	storeID := q.Get("store")
	if storeID == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "store is required")
		return
	}
	radius := 0.0
	if v := q.Get("radius"); v != "" {
		var err error
		if radius, err = strconv.ParseFloat(v, 64); err != nil || radius <= 0 {
			s.writeError(w, http.StatusBadRequest, "bad_request", "radius must be a positive number")
			return
		}
	}

	snap, err := s.snapshot(r)
	if err != nil {
		s.mapError(w, err)
		return
	}
	defer snap.Release()
	result, err := insight.Demographics(r.Context(), snap.Warehouse, s.census,
		insight.DemographicsFilter{StoreID: storeID, RadiusMiles: radius})
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"store":     result.Store,
		"geography": result.Geography,
		"rows":      result.Rows,
		"kpis":      result.KPIs,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"epochs": []any{}, "validations": []any{}}
	if s.history != nil {
		epochs, err := s.history.RecentEpochs(r.Context(), 20)
		if err != nil {
			s.mapError(w, err)
			return
		}
		validations, err := s.history.RecentValidations(r.Context(), 20)
		if err != nil {
			s.mapError(w, err)
			return
		}
		if epochs != nil {
			resp["epochs"] = epochs
		}
		if validations != nil {
			resp["validations"] = validations
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	s.cache.InvalidateAll()
	s.writeJSON(w, http.StatusOK, map[string]bool{"invalidated": true})
}
