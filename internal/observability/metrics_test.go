package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.AdminCallCounter.WithLabelValues("summary", "success").Inc()
	m.AdminCallCounter.WithLabelValues("summary", "success").Inc()
	m.HTTPRequestCounter.WithLabelValues("GET", "/api/admin/experiments", "200").Inc()
	m.ExperimentsGauge.WithLabelValues("app1").Set(3)

	if got := testutil.ToFloat64(m.AdminCallCounter.WithLabelValues("summary", "success")); got != 2 {
		t.Fatalf("admin calls=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ExperimentsGauge.WithLabelValues("app1")); got != 3 {
		t.Fatalf("experiments gauge=%v, want 3", got)
	}
}
