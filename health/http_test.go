package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, agg *Aggregator, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	RegisterHandlers(mux, agg)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLivenessHandler(t *testing.T) {
	rec := serve(t, NewAggregator(), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		code   int
		body   string
	}{
		{"healthy", Healthy("ok"), http.StatusOK, "OK"},
		{"degraded", Degraded("dropping"), http.StatusOK, "DEGRADED"},
		{"unhealthy", Unhealthy("closed", ErrStoreClosed), http.StatusServiceUnavailable, "UNHEALTHY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			agg.Register(fixed("store", tt.result))
			rec := serve(t, agg, "/readyz")
			if rec.Code != tt.code || rec.Body.String() != tt.body {
				t.Errorf("GET /readyz = %d %q, want %d %q", rec.Code, rec.Body.String(), tt.code, tt.body)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("store", Healthy("3 of 10 entries").WithDetails(map[string]any{"entries": 3})))
	agg.Register(fixed("breaker", Unhealthy("stuck", ErrCheckFailed)))

	rec := serve(t, agg, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != "unhealthy" || report.Timestamp == "" {
		t.Errorf("report = %+v", report)
	}
	if got := report.Checks["store"]; got.Status != "healthy" || got.Details["entries"] != float64(3) {
		t.Errorf("store check = %+v", got)
	}
	if got := report.Checks["breaker"]; got.Error != ErrCheckFailed.Error() {
		t.Errorf("breaker check = %+v", got)
	}
}

func TestCheckHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("store", Degraded("dropping")))

	rec := serve(t, agg, "/health/store")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health/store = %d", rec.Code)
	}
	var got CheckReport
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "degraded" || got.Message != "dropping" {
		t.Errorf("report = %+v", got)
	}

	if rec := serve(t, agg, "/health/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /health/missing = %d, want 404", rec.Code)
	}
}
