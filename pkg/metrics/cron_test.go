package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMaintenanceMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMaintenanceMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_800_000_000, 0) }

	m.ObserveRun("guest-cart-cleanup", 250*time.Millisecond, nil)
	m.ObserveRun("guest-cart-cleanup", 100*time.Millisecond, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, nil)
	m.IncSkippedCycle()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "storefront_cron_job_runs_total")
	if runs == nil {
		t.Fatalf("runs counter not exported")
	}
	if got := valueWithLabels(runs, map[string]string{"job": "guest-cart-cleanup", "result": "success"}); got != 1 {
		t.Fatalf("expected one success, got %f", got)
	}
	if got := valueWithLabels(runs, map[string]string{"job": "guest-cart-cleanup", "result": "failure"}); got != 1 {
		t.Fatalf("expected one failure, got %f", got)
	}
	if got := valueWithLabels(runs, map[string]string{"job": "unknown", "result": "success"}); got != 1 {
		t.Fatalf("empty job names should be labelled unknown, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "storefront_cron_job_duration_seconds", "job", "guest-cart-cleanup"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0.3 {
		t.Fatalf("expected both durations observed, got %f", got)
	}

	last := findMetricFamily(mfs, "storefront_cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() != 1_800_000_000 {
		t.Fatalf("last success gauge not set")
	}

	skipped := findMetricFamily(mfs, "storefront_cron_cycles_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle")
	}
}

func TestNilMaintenanceMetricsIsNoop(t *testing.T) {
	var m *MaintenanceMetrics
	m.ObserveRun("job", time.Second, nil)
	m.IncSkippedCycle()
	NewMaintenanceMetrics(nil).ObserveRun("job", time.Second, errors.New("x"))
}

func valueWithLabels(mf *dto.MetricFamily, want map[string]string) float64 {
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if want[pair.GetName()] == pair.GetValue() {
				matched++
			}
		}
		if matched == len(want) {
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}
