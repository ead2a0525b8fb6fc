package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordResolution(t *testing.T) {
	m := New()

	m.RecordResolution(true, 3, 20*time.Millisecond)
	m.RecordResolution(false, 1, 5*time.Millisecond)

	if got := counterValue(t, m.ResolutionsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := counterValue(t, m.ResolutionsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}

func TestRecordResolverRun(t *testing.T) {
	m := New()

	m.RecordResolverRun("WeatherLookupResolver", time.Millisecond, nil)
	m.RecordResolverRun("WeatherLookupResolver", time.Millisecond, http.ErrHandlerTimeout)

	if got := counterValue(t, m.ResolverRuns.WithLabelValues("WeatherLookupResolver", "success")); got != 1 {
		t.Errorf("expected 1 successful run, got %v", got)
	}
	if got := counterValue(t, m.ResolverRuns.WithLabelValues("WeatherLookupResolver", "failure")); got != 1 {
		t.Errorf("expected 1 failed run, got %v", got)
	}
}

func TestRecordCacheAccess(t *testing.T) {
	m := New()

	m.RecordCacheAccess("sql", true)
	m.RecordCacheAccess("sql", false)
	m.RecordCacheAccess("sql", false)

	if got := counterValue(t, m.CacheHits.WithLabelValues("sql")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := counterValue(t, m.CacheMisses.WithLabelValues("sql")); got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
}

func TestRecordFactStatus(t *testing.T) {
	m := New()

	m.RecordFactStatus("solid")
	m.RecordFactStatus("conflict")
	m.RecordFactStatus("solid")

	if got := counterValue(t, m.FactStatuses.WithLabelValues("solid")); got != 2 {
		t.Errorf("expected 2 solid facts, got %v", got)
	}
}

func TestMiddleware_RecordsRequests(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/run", nil))

	if got := counterValue(t, m.RequestsTotal.WithLabelValues("GET", "/api/run", "418")); got != 1 {
		t.Errorf("expected request counted, got %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/run":       "/api/run",
		"/health/ready":  "/health/ready",
		"/":              "/",
		"/metrics":       "/metrics",
		"/random/thing":  "/other",
		"/another/thing": "/other",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.RecordResolution(true, 1, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
