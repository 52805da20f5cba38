package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベルに一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordAuthOperation_CountsAndObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthOperation("login", "success", 120*time.Millisecond)
	c.RecordAuthOperation("login", "success", 80*time.Millisecond)
	c.RecordAuthOperation("login", "TIMEOUT", 15*time.Second)

	m := findMetric(t, reg, "vidshare_auth_operations_total", map[string]string{"operation": "login", "outcome": "success"})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	m = findMetric(t, reg, "vidshare_auth_operations_total", map[string]string{"operation": "login", "outcome": "TIMEOUT"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("timeout count = %v, want 1", got)
	}

	h := findMetric(t, reg, "vidshare_auth_operation_duration_seconds", map[string]string{"operation": "login"})
	if got := h.GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("sample count = %d, want 3", got)
	}
}

func TestRecordStaleWriteDiscarded(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStaleWriteDiscarded("profile_fetch")

	m := findMetric(t, reg, "vidshare_stale_writes_discarded_total", map[string]string{"source": "profile_fetch"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

func TestSetActiveSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetActiveSessions(3)
	c.SetActiveSessions(2)

	m := findMetric(t, reg, "vidshare_active_session_contexts", nil)
	if got := m.GetGauge().GetValue(); got != 2 {
		t.Errorf("gauge = %v, want 2", got)
	}
}

func TestRecordHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(504)

	m := findMetric(t, reg, "vidshare_http_status_total", map[string]string{"status_code": "504"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

// 同じレジストリへの二重登録はpanicすること
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
