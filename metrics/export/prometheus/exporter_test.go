package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authsdk"
)

type fakeSource struct {
	snapshot authsdk.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) Metrics() authsdk.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64             { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authsdk.MetricsSnapshot{
			Counters: map[authsdk.MetricID]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authsdk.MetricsSnapshot{
			Counters: map[authsdk.MetricID]uint64{
				authsdk.MetricLoginSuccess:     7,
				authsdk.MetricRefreshCollapsed: 3,
			},
			Latency: []uint64{1, 2, 3, 4, 5, 6, 7, 8},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "authsdk_login_success_total 7") {
		t.Fatalf("expected login success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authsdk_refresh_collapsed_total 3") {
		t.Fatalf("expected refresh collapsed counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authsdk_request_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authsdk_request_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected cumulative +Inf bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authsdk_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authsdk.MetricsSnapshot{
			Counters: map[authsdk.MetricID]uint64{authsdk.MetricLoginSuccess: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
