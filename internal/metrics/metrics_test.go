package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestFulfillmentMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)
	m.Step("ship", nil)
	m.Step("ship", nil)
	m.Step("ship", errors.New("boom"))
	m.UnitsShipped(5)
	m.LowStock()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := counterValue(mfs, "fulfillment_steps_total", map[string]string{"step": "ship", "outcome": "success"}); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}
	if got, err := counterValue(mfs, "fulfillment_steps_total", map[string]string{"step": "ship", "outcome": "failure"}); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := counterValue(mfs, "stock_units_shipped_total", nil); err != nil {
		t.Fatalf("fetch units: %v", err)
	} else if got != 5 {
		t.Fatalf("expected units=5, got %f", got)
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("/api/v1/products", "GET", 200, 20*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := counterValue(mfs, "http_requests_total", map[string]string{"route": "/api/v1/products", "status": "200"})
	if err != nil {
		t.Fatalf("fetch requests: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1 request, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var f *FulfillmentMetrics
	f.Step("claim", nil)
	f.LowStock()
	f.UnitsShipped(3)

	var h *HTTPMetrics
	h.Observe("/", "GET", 200, time.Millisecond)

	NewFulfillmentMetrics(nil).Step("claim", nil)
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue(), nil
			}
		}
		return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, p := range pairs {
			if p.GetName() == k && p.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
