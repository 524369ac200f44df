package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, c *Collector, name string) *dto.MetricFamily {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestRecordRequest(t *testing.T) {
	c := NewCollector(nil)

	c.RecordRequest("gemini", "gemini-2.5-pro", "success", false, 1200*time.Millisecond, 100, 50)
	c.RecordRequest("gemini", "gemini-2.5-pro", "success", false, 800*time.Millisecond, 20, 10)
	c.RecordRequest("gemini", "gemini-2.5-pro", "upstream_error", true, 100*time.Millisecond, 0, 0)

	mf := findMetric(t, c, "vandamme_requests_total")
	if mf == nil {
		t.Fatal("requests_total not registered")
	}
	total := 0.0
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	if total != 3 {
		t.Errorf("requests_total sum = %v, want 3", total)
	}

	tokens := findMetric(t, c, "vandamme_tokens_total")
	if tokens == nil {
		t.Fatal("tokens_total not registered")
	}
	var input, output float64
	for _, m := range tokens.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "direction" {
				switch l.GetValue() {
				case "input":
					input = m.GetCounter().GetValue()
				case "output":
					output = m.GetCounter().GetValue()
				}
			}
		}
	}
	if input != 120 || output != 60 {
		t.Errorf("tokens input=%v output=%v", input, output)
	}
}

func TestCacheMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordCacheHit("signatures")
	c.RecordCacheHit("signatures")
	c.RecordCacheMiss("signatures")
	c.SetCacheEntries("signatures", 7)

	hits := findMetric(t, c, "vandamme_cache_hits_total")
	if hits == nil || hits.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("cache hits = %v", hits)
	}
	entries := findMetric(t, c, "vandamme_cache_entries")
	if entries == nil || entries.GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Errorf("cache entries = %v", entries)
	}
}

func TestOAuthRefreshMetric(t *testing.T) {
	c := NewCollector(nil)

	c.RecordOAuthRefresh("gemini", "success")
	c.RecordOAuthRefresh("gemini", "failure")

	mf := findMetric(t, c, "vandamme_oauth_refresh_total")
	if mf == nil || len(mf.GetMetric()) != 2 {
		t.Errorf("oauth_refresh_total = %v", mf)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollector(nil)
	c.RecordUpstreamError("gemini", "timeout_error")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "vandamme_upstream_errors_total") {
		t.Errorf("exposition missing metric:\n%s", body)
	}
}
