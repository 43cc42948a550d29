package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHelpersRecordAfterRegister(t *testing.T) {
	ObservePropagation("Product", "create", "success", 0.01)
	if got := testutil.ToFloat64(propagations.WithLabelValues("Product", "create", "success")); got != 0 {
		t.Fatalf("expected no-op before register, got %v", got)
	}

	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	ObservePropagation("Product", "create", "success", 0.01)
	if got := testutil.ToFloat64(propagations.WithLabelValues("Product", "create", "success")); got != 1 {
		t.Fatalf("expected 1 propagation, got %v", got)
	}

	SetConnectionState("healthy")
	if got := testutil.ToFloat64(connectionState.WithLabelValues("healthy")); got != 1 {
		t.Fatalf("expected healthy=1, got %v", got)
	}
	if got := testutil.ToFloat64(connectionState.WithLabelValues("unhealthy")); got != 0 {
		t.Fatalf("expected unhealthy=0, got %v", got)
	}

	AddResync("Category", 3, 1, 0)
	if got := testutil.ToFloat64(resyncRecords.WithLabelValues("Category", "synced")); got != 3 {
		t.Fatalf("expected 3 synced, got %v", got)
	}

	SetDrift("Category", true)
	if got := testutil.ToFloat64(driftMismatch.WithLabelValues("Category")); got != 1 {
		t.Fatalf("expected mismatch gauge 1, got %v", got)
	}
}
