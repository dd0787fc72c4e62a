package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snaplink/snaplink/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m := metrics.NewPrometheus()
	m.IncLinkCreated()
	m.IncClickEnqueued()
	m.IncClickDropped()
	m.IncClickProcessed("success")
	m.IncClickProcessed("boom")
	m.SetClickQueueDepth(7)
	m.IncRedirectCacheHit()
	m.IncRateLimited("redirect")
	m.IncRateLimited("anonymous-create")

	rec := httptest.NewRecorder()
	NewMetricsHandler(m.Gatherer()).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	for _, line := range []string{
		`snaplink_links_total{op="create"} 1`,
		"snaplink_clicks_enqueued_total 1",
		"snaplink_clicks_dropped_total 1",
		`snaplink_clicks_processed_total{status="success"} 1`,
		`snaplink_clicks_processed_total{status="failed"} 1`,
		"snaplink_click_queue_depth 7",
		`snaplink_redirect_cache_total{result="hit"} 1`,
		`snaplink_rate_limited_total{bucket="anonymous-create"} 1`,
		`snaplink_rate_limited_total{bucket="redirect"} 1`,
		"# TYPE snaplink_redirect_duration_seconds histogram",
		"go_goroutines",
	} {
		if !strings.Contains(body, line) {
			t.Errorf("metrics output missing %q:\n%s", line, body)
		}
	}
}

func TestMetricsHandler_NoGatherer(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}
