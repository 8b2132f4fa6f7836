package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flipwise/appraiser/internal/domain"
	"github.com/flipwise/appraiser/internal/modules/history"
)

// ValuationRequest is the POST /api/valuations body: the raw vehicle
// fields plus optional sale goal, collaborator payloads and a cache TTL
// override. TTLSeconds distinguishes absent from zero; zero forces a
// recompute.
type ValuationRequest struct {
	domain.QueryParams
	Goal           string                 `json:"goal,omitempty"`
	VisionHints    *domain.VisionHints    `json:"vision_hints,omitempty"`
	RegistryRecord *domain.RegistryRecord `json:"registry_record,omitempty"`
	TTLSeconds     *int                   `json:"ttl_seconds,omitempty"`
}

// handleCreateValuation handles POST /api/valuations
func (s *Server) handleCreateValuation(w http.ResponseWriter, r *http.Request) {
	var req ValuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Registry identity wins over vision hints, so it refines first and
	// hints only fill what it left empty.
	params := req.QueryParams
	if req.RegistryRecord != nil {
		params = params.ApplyRegistryRecord(*req.RegistryRecord)
	}
	if req.VisionHints != nil {
		params = params.ApplyVisionHints(*req.VisionHints)
	}

	query, err := domain.NewVehicleQuery(params)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedQuery) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("Failed to build vehicle query")
		s.writeError(w, http.StatusInternalServerError, "failed to build vehicle query")
		return
	}

	goal := domain.NormalizeSaleGoal(req.Goal)

	var report *domain.ValuationReport
	if req.TTLSeconds != nil {
		report, err = s.pipeline.RunWithTTL(r.Context(), query, goal, time.Duration(*req.TTLSeconds)*time.Second)
	} else {
		report, err = s.pipeline.Run(r.Context(), query, goal)
	}
	if err != nil {
		s.log.Error().Err(err).Str("vehicle", query.Label()).Msg("Valuation failed")
		s.writeError(w, http.StatusInternalServerError, "valuation failed")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// handleValuationHistory handles GET /api/valuations/history
func (s *Server) handleValuationHistory(w http.ResponseWriter, r *http.Request) {
	makeName := r.URL.Query().Get("make")
	model := r.URL.Query().Get("model")
	if makeName == "" || model == "" {
		s.writeError(w, http.StatusBadRequest, "make and model are required")
		return
	}

	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = parsed
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	family := history.Family(makeName, model, year)

	observations, err := s.history.Recent(family, limit)
	if err != nil {
		s.log.Error().Err(err).Str("family", family).Msg("Failed to query valuation history")
		s.writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"family":       family,
		"count":        len(observations),
		"observations": observations,
	})
}

// handleHealth handles health check requests. It pings every database
// and reports degraded with a 503 when any ping fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK

	for _, db := range s.databases {
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check ping failed")
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": "1.0.0",
		"service": "appraiser",
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
