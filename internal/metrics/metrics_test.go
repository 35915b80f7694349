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

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if NewCollector(prometheus.NewRegistry()) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordProfileSync_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProfileSync(SyncResultSuccess)
	c.RecordProfileSync(SyncResultSuccess)
	c.RecordProfileSync(SyncResultNotFound)

	if v := findMetric(t, reg, "metagame_profile_sync_total", map[string]string{"result": SyncResultSuccess}).GetCounter().GetValue(); v != 2 {
		t.Errorf("success = %v, want 2", v)
	}
	if v := findMetric(t, reg, "metagame_profile_sync_total", map[string]string{"result": SyncResultNotFound}).GetCounter().GetValue(); v != 1 {
		t.Errorf("not_found = %v, want 1", v)
	}
}

func TestRecordAccountLinked_CountsByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAccountLinked("TWITTER")

	m := findMetric(t, reg, "metagame_accounts_linked_total", map[string]string{"type": "TWITTER"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("accounts_linked_total = %v, want 1", v)
	}
}

func TestRecordRankRoleSync_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRankRoleSync(RoleResultRemoved)
	c.RecordRankRoleSync(RoleResultAdded)
	c.RecordRankRoleSync(RoleResultAdded)

	m := findMetric(t, reg, "metagame_rank_role_sync_total", map[string]string{"result": RoleResultAdded})
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("added = %v, want 2", v)
	}
}

func TestRecordProfileSyncLatency_ObservesSeconds(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProfileSyncLatency(1500 * time.Millisecond)

	h := findMetric(t, reg, "metagame_profile_sync_latency_seconds", map[string]string{}).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.5 {
		t.Errorf("sample sum = %v, want 1.5", h.GetSampleSum())
	}
}

func TestNop_ImplementsCollector(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordProfileSync(SyncResultError)
	c.RecordRankRoleSync(RoleResultFailed)
}
