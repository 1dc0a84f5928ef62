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

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
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
			matched := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
					break
				}
			}
			if matched {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSubmission_IncrementsCounter は提出カウンタが増加することを検証する。
func TestRecordSubmission_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSubmission()
	c.RecordSubmission()

	if got := counterValue(t, reg, "lunchdraw_submissions_total", nil); got != 2 {
		t.Errorf("submissions_total = %v, want 2", got)
	}
}

// TestRecordPick_IncrementsByResult は抽選カウンタが結果ラベル別に増加することを検証する。
func TestRecordPick_IncrementsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPick("success")
	c.RecordPick("conflict")
	c.RecordPick("conflict")

	if got := counterValue(t, reg, "lunchdraw_picks_total", map[string]string{"result": "success"}); got != 1 {
		t.Errorf("picks_total{result=success} = %v, want 1", got)
	}
	if got := counterValue(t, reg, "lunchdraw_picks_total", map[string]string{"result": "conflict"}); got != 2 {
		t.Errorf("picks_total{result=conflict} = %v, want 2", got)
	}
}

// TestRecordSessionCreated_IncrementsCounter はセッション作成カウンタが増加することを検証する。
func TestRecordSessionCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCreated()

	if got := counterValue(t, reg, "lunchdraw_sessions_created_total", nil); got != 1 {
		t.Errorf("sessions_created_total = %v, want 1", got)
	}
}

// TestRecordHTTPStatus_IncrementsByStatusCode はHTTPステータスカウンタが
// コード別に増加することを検証する。
func TestRecordHTTPStatus_IncrementsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(409)

	if got := counterValue(t, reg, "lunchdraw_http_status_total", map[string]string{"status_code": "200"}); got != 2 {
		t.Errorf("http_status_total{200} = %v, want 2", got)
	}
	if got := counterValue(t, reg, "lunchdraw_http_status_total", map[string]string{"status_code": "409"}); got != 1 {
		t.Errorf("http_status_total{409} = %v, want 1", got)
	}
}

// TestRecordRequestDuration_ObservesHistogram は処理時間ヒストグラムへの記録を検証する。
func TestRecordRequestDuration_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestDuration(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == "lunchdraw_request_duration_seconds" {
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("histogram sample count = %d, want 1", count)
			}
			return
		}
	}
	t.Fatal("request_duration_seconds metric not found")
}

// TestHandler_ExposesMetrics は/metricsハンドラーがPrometheusテキスト形式で
// メトリクスを公開することを検証する。
func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSubmission()

	h := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "lunchdraw_submissions_total 1") {
		t.Errorf("metrics output should contain submissions_total, got:\n%s", body)
	}
}
