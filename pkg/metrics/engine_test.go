package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngineMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.IncOrderCreated("checkout")
	m.IncOrderCreated("checkout")
	m.IncRefund("return", "failed")
	m.IncStockRejection("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_orders_created_total", "source", "checkout"); err != nil || got != 2 {
		t.Fatalf("expected 2 checkout orders, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_refunds_total", "outcome", "failed"); err != nil || got != 1 {
		t.Fatalf("expected 1 failed refund, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_stock_rejections_total", "reason", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty reason to normalize to unknown, got %f (%v)", got, err)
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.IncOrderCreated("manual")
	m.IncTransition("status", "SHIPPED")
	NewEngineMetrics(nil).IncRefund("order", "ok")
}
