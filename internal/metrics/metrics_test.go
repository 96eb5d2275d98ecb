package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/":                           "/",
		"/metrics":                    "/metrics",
		"/api/transactions":           "/api/transactions",
		"/api/transactions/":          "/api/transactions",
		"/api/ledgers?monthYear=2024": "/api/ledgers",
		"/api/ledgers/abc":            "other",
		"/wp-admin":                   "other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveSubmission("INCOME", "ok")
	m.ObserveSubmission("income", "ok")
	m.ObserveSubmission("EXPENSE", "conflict")
	m.IncConflict()
	m.IncRetry()
	m.IncRetry()

	if got := testutil.ToFloat64(m.submissions.WithLabelValues("income", "ok")); got != 2 {
		t.Fatalf("income ok = %v", got)
	}
	if got := testutil.ToFloat64(m.retries); got != 2 {
		t.Fatalf("retries = %v", got)
	}
	if got := testutil.ToFloat64(m.conflicts); got != 1 {
		t.Fatalf("conflicts = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSubmission("income", "ok")
	m.IncConflict()
	m.IncRetry()
	m.ObserveSummaryRead("cache", "ok")
	m.IncPublishFailure()
	m.ObserveExport("ok")

	h := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestInstrumentAndHandler(t *testing.T) {
	m := New()
	h := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/transactions", nil))

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/api/transactions", "201")); got != 1 {
		t.Fatalf("requests = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("exposition missing counter:\n%s", rec.Body.String())
	}
}
