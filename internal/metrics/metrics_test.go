package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labelValue string) (float64, bool) {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue == "" || (len(m.GetLabel()) > 0 && m.GetLabel()[len(m.GetLabel())-1].GetValue() == labelValue) {
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

// TestRecordGraphRequest_IncrementsCounterAndHistogram はGraph呼び出しメトリクスの記録を検証する。
func TestRecordGraphRequest_IncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGraphRequest("list_messages", "200", 100*time.Millisecond)
	c.RecordGraphRequest("list_messages", "200", 2*time.Second)
	c.RecordGraphRequest("send_mail", "error", 30*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var foundCounter, foundHistogram bool
	for _, mf := range metrics {
		switch mf.GetName() {
		case "mailgate_graph_requests_total":
			foundCounter = true
			if len(mf.GetMetric()) != 2 {
				t.Errorf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
		case "mailgate_graph_latency_seconds":
			foundHistogram = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 3 {
				t.Errorf("sample_count = %d, want 3", h.GetSampleCount())
			}
		}
	}
	if !foundCounter {
		t.Error("mailgate_graph_requests_total metric not found")
	}
	if !foundHistogram {
		t.Error("mailgate_graph_latency_seconds metric not found")
	}
}

// TestRecordTokenRefresh_LabelsByResult はリフレッシュ結果のラベル分けを検証する。
func TestRecordTokenRefresh_LabelsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenRefresh(true)
	c.RecordTokenRefresh(true)
	c.RecordTokenRefresh(false)

	if val, ok := counterValue(t, reg, "mailgate_token_refresh_total", "success"); !ok || val != 2 {
		t.Errorf("token_refresh_total{result=success} = %v (found=%v), want 2", val, ok)
	}
	if val, ok := counterValue(t, reg, "mailgate_token_refresh_total", "failure"); !ok || val != 1 {
		t.Errorf("token_refresh_total{result=failure} = %v (found=%v), want 1", val, ok)
	}
}

// TestRecordAuthExchange_IncrementsCounter は認可コード交換カウンタの増加を検証する。
func TestRecordAuthExchange_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthExchange(false)

	if val, ok := counterValue(t, reg, "mailgate_auth_exchanges_total", "failure"); !ok || val != 1 {
		t.Errorf("auth_exchanges_total{result=failure} = %v (found=%v), want 1", val, ok)
	}
}

// TestRecordHTTPStatus_LabelsByStatusCode はHTTPステータスカウンタのラベル分けを検証する。
func TestRecordHTTPStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	if val, ok := counterValue(t, reg, "mailgate_http_status_total", "200"); !ok || val != 2 {
		t.Errorf("http_status_total{status_code=200} = %v (found=%v), want 2", val, ok)
	}
	if val, ok := counterValue(t, reg, "mailgate_http_status_total", "401"); !ok || val != 1 {
		t.Errorf("http_status_total{status_code=401} = %v (found=%v), want 1", val, ok)
	}
}

// TestHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGraphRequest("get_message", "200", 50*time.Millisecond)
	c.RecordTokenRefresh(true)
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"mailgate_graph_requests_total",
		"mailgate_graph_latency_seconds",
		"mailgate_token_refresh_total",
		"mailgate_http_status_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}
