package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = (*InMemoryRecorder)(nil)
	_ Recorder = (*NoopRecorder)(nil)
)

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.IncRedirectCacheHit()
	p.IncRedirectCacheMiss()
	p.IncRedirectCacheMiss()
	p.ObserveRedirectDuration(3 * time.Millisecond)
	p.IncLinkCreated()
	p.IncLinkDeleted()
	p.IncClickProcessed("success")
	p.IncClickProcessed("timeout")
	p.SetClickQueueDepth(4)
	p.IncRateLimited("redirect")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"cache hits", testutil.ToFloat64(p.redirectCache.WithLabelValues("hit")), 1},
		{"cache misses", testutil.ToFloat64(p.redirectCache.WithLabelValues("miss")), 2},
		{"links created", testutil.ToFloat64(p.links.WithLabelValues("create")), 1},
		{"links updated", testutil.ToFloat64(p.links.WithLabelValues("update")), 0},
		{"links deleted", testutil.ToFloat64(p.links.WithLabelValues("delete")), 1},
		{"clicks recorded", testutil.ToFloat64(p.clicksProcessed.WithLabelValues("success")), 1},
		{"non-success folds into failed", testutil.ToFloat64(p.clicksProcessed.WithLabelValues("failed")), 1},
		{"queue depth", testutil.ToFloat64(p.clickQueueDepth), 4},
		{"rate limited", testutil.ToFloat64(p.rateLimited.WithLabelValues("redirect")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(p.redirectDuration); n != 1 {
		t.Errorf("redirect duration series = %d, want 1", n)
	}
}

func TestPrometheusRecorder_IsolatedRegistries(t *testing.T) {
	t.Parallel()

	a, b := NewPrometheus(), NewPrometheus()
	a.IncClickDropped()

	if got := testutil.ToFloat64(b.clicksDropped); got != 0 {
		t.Errorf("second registry saw %v drops", got)
	}
	if _, err := a.Gatherer().Gather(); err != nil {
		t.Errorf("Gather() error = %v", err)
	}
}
