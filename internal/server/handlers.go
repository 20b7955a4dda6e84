package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liftlab/liftlab/internal/experiment"
	"github.com/liftlab/liftlab/internal/performance"
	"github.com/liftlab/liftlab/internal/recommend"
	"github.com/liftlab/liftlab/internal/stats"
	"github.com/liftlab/liftlab/internal/store"
)

type healthResponse struct {
	Status        string `json:"status"`
	TestsCount    int    `json:"tests_count"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tests, err := s.store.ListTests(r.Context())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	_ = row.Scan(&dbSize)

	writeJSON(w, healthResponse{
		Status:        "ok",
		TestsCount:    len(tests),
		DBSizeBytes:   dbSize,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

// beaconRequest is one tracked event. Variants are addressed by name so
// callers never need internal IDs.
type beaconRequest struct {
	Test      string  `json:"t"`
	Variant   string  `json:"v"`
	Event     string  `json:"e"`
	VisitorID string  `json:"vid,omitempty"`
	Revenue   float64 `json:"rev,omitempty"`
}

func (s *Server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req beaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Test == "" || req.Variant == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if req.Event != store.EventImpression && req.Event != store.EventConversion {
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	test, err := s.store.GetTest(ctx, req.Test)
	if err != nil {
		s.writeError(w, err)
		return
	}

	variant := variantByName(test, req.Variant)
	if variant == nil {
		http.Error(w, "Unknown variant", http.StatusBadRequest)
		return
	}

	if test.Status != experiment.StatusActive {
		s.writeError(w, experiment.ErrTestNotActive)
		return
	}

	// Audit row and counter increment commit together (or not at all),
	// so concurrent beacons and rejected conversions cannot drift the
	// counters away from the event log.
	_, err = s.store.RecordEvent(ctx, store.Event{
		TestID:    test.ID,
		VariantID: variant.ID,
		EventType: req.Event,
		VisitorID: req.VisitorID,
		Revenue:   req.Revenue,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type testSummary struct {
	Name        string            `json:"name"`
	Type        experiment.Type   `json:"type"`
	Status      experiment.Status `json:"status"`
	Variants    int               `json:"variants"`
	SampleSize  int64             `json:"sample_size"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tests, err := s.store.ListTests(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	summaries := make([]testSummary, 0, len(tests))
	for _, t := range tests {
		summaries = append(summaries, testSummary{
			Name:        t.Name,
			Type:        t.Type,
			Status:      t.Status,
			Variants:    len(t.Variants),
			SampleSize:  t.SampleSize(),
			CreatedAt:   t.CreatedAt,
			CompletedAt: t.CompletedAt,
		})
	}
	writeJSON(w, summaries)
}

type variantView struct {
	Name              string  `json:"name"`
	IsControl         bool    `json:"is_control"`
	TrafficAllocation float64 `json:"traffic_allocation"`
	Impressions       int64   `json:"impressions"`
	Conversions       int64   `json:"conversions"`
	Revenue           float64 `json:"revenue"`
	Rate              float64 `json:"rate"` // percent
}

type resultsResponse struct {
	Test         testSummary   `json:"test"`
	Variants     []variantView `json:"variants"`
	Significance *stats.Result `json:"significance,omitempty"`
}

// handleTestDetail serves GET /api/tests/{name}/results.
func (s *Server) handleTestDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, action := splitTestPath(r.URL.Path, "/api/tests/")
	if name == "" || action != "results" {
		http.NotFound(w, r)
		return
	}

	test, err := s.store.GetTest(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := resultsResponse{
		Test: testSummary{
			Name:        test.Name,
			Type:        test.Type,
			Status:      test.Status,
			Variants:    len(test.Variants),
			SampleSize:  test.SampleSize(),
			CreatedAt:   test.CreatedAt,
			CompletedAt: test.CompletedAt,
		},
	}
	for _, v := range test.Variants {
		resp.Variants = append(resp.Variants, variantView{
			Name:              v.Name,
			IsControl:         v.IsControl,
			TrafficAllocation: v.TrafficAllocation,
			Impressions:       v.Impressions,
			Conversions:       v.Conversions,
			Revenue:           v.Revenue,
			Rate:              v.Rate(),
		})
	}

	if sig, err := test.Significance(); err == nil {
		resp.Significance = &sig
	}

	writeJSON(w, resp)
}

type transitionRequest struct {
	Action experiment.Action `json:"action"`
}

// handleAdminTest serves POST /admin/tests/{name}/transition and
// GET /admin/tests/{name}/recommendations.
func (s *Server) handleAdminTest(w http.ResponseWriter, r *http.Request) {
	name, action := splitTestPath(r.URL.Path, "/admin/tests/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	test, err := s.store.GetTest(ctx, name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch {
	case action == "transition" && r.Method == http.MethodPost:
		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if err := test.Transition(req.Action); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.store.SaveStatus(ctx, test); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"name": test.Name, "status": test.Status})

	case action == "recommendations" && r.Method == http.MethodGet:
		recs, err := s.recommendations(r, test)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, recs)

	default:
		http.NotFound(w, r)
	}
}

// recommendations assembles classifier input from the test and, when
// present, per-variant ledger entries keyed "testName/variantName".
func (s *Server) recommendations(r *http.Request, test *experiment.Test) ([]recommend.Recommendation, error) {
	in := recommend.Input{
		TestName:          test.Name,
		SampleSize:        test.SampleSize(),
		MinimumSampleSize: test.MinimumSampleSize,
		ConfidenceLevel:   test.ConfidenceLevel,
		Elapsed:           test.Elapsed(time.Now()),
	}

	if sig, err := test.Significance(); err == nil {
		in.Significance = sig
	}

	for _, v := range test.Variants {
		agg, err := s.store.CampaignAggregate(r.Context(), test.Name+"/"+v.Name, time.Time{}, time.Time{})
		if err != nil {
			return nil, err
		}
		in.VariantROI = append(in.VariantROI, performance.Compute(agg))
	}

	return recommend.Evaluate(in, recommend.DefaultConfig()), nil
}

func variantByName(t *experiment.Test, name string) *experiment.Variant {
	for _, v := range t.Variants {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// splitTestPath extracts "{name}/{action}" after a route prefix.
func splitTestPath(path, prefix string) (name, action string) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses: structural problems
// are client errors, lifecycle conflicts are 409s, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *experiment.ValidationError

	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.As(err, &verr), errors.Is(err, experiment.ErrInvariant), errors.Is(err, experiment.ErrVariantNotFound):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, experiment.ErrTestNotActive), errors.Is(err, experiment.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
