package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func counterFor(t *testing.T, family string, labels map[string]string) float64 {
	t.Helper()
	fam := gatherFamily(t, family)
	if fam == nil {
		return 0
	}
	for _, metric := range fam.Metric {
		matched := true
		for k, v := range labels {
			if labelValue(metric, k) != v {
				matched = false
				break
			}
		}
		if matched && metric.Counter != nil {
			return metric.Counter.GetValue()
		}
	}
	return 0
}

func TestVaultdObserveOperation(t *testing.T) {
	m := Vaultd()
	m.ObserveOperation("metrics_test_deposit", 5*time.Millisecond, "")
	m.ObserveOperation("metrics_test_deposit", 5*time.Millisecond, "TransferFailed")
	m.ObserveOperation("metrics_test_deposit", 5*time.Millisecond, "TransferFailed")

	if got := counterFor(t, "vault_vaultd_operations_total", map[string]string{"operation": "metrics_test_deposit", "outcome": "success"}); got != 1 {
		t.Fatalf("success count = %v, want 1", got)
	}
	if got := counterFor(t, "vault_vaultd_operations_total", map[string]string{"operation": "metrics_test_deposit", "outcome": "rejected"}); got != 2 {
		t.Fatalf("rejected count = %v, want 2", got)
	}
	if got := counterFor(t, "vault_vaultd_rejections_total", map[string]string{"operation": "metrics_test_deposit", "code": "TransferFailed"}); got != 2 {
		t.Fatalf("rejection code count = %v, want 2", got)
	}

	fam := gatherFamily(t, "vault_vaultd_operation_duration_seconds")
	if fam == nil {
		t.Fatalf("latency histogram not registered")
	}
	var samples uint64
	for _, metric := range fam.Metric {
		if labelValue(metric, "operation") == "metrics_test_deposit" {
			samples = metric.GetHistogram().GetSampleCount()
		}
	}
	if samples != 3 {
		t.Fatalf("latency samples = %d, want 3", samples)
	}
}

func TestVaultdPauseGauge(t *testing.T) {
	m := Vaultd()
	m.SetPaused(true)
	fam := gatherFamily(t, "vault_vaultd_pause_engaged")
	if fam == nil || len(fam.Metric) == 0 || fam.Metric[0].GetGauge().GetValue() != 1 {
		t.Fatalf("pause gauge not engaged")
	}
	m.SetPaused(false)
	fam = gatherFamily(t, "vault_vaultd_pause_engaged")
	if fam.Metric[0].GetGauge().GetValue() != 0 {
		t.Fatalf("pause gauge still engaged")
	}
}

func TestModuleThrottleCounter(t *testing.T) {
	ModuleMetrics().RecordThrottle("metrics_test_group", "")
	if got := counterFor(t, "vault_module_throttles_total", map[string]string{"module": "metrics_test_group", "reason": "unspecified"}); got != 1 {
		t.Fatalf("throttle count = %v, want 1", got)
	}
}
