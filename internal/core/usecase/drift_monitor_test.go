package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

func TestDriftMonitorCheckNowRecordsLastReport(t *testing.T) {
	f := newResyncFixture()
	f.source.records["products"] = []domain.Record{rec("1", `{}`)}
	m := NewDriftMonitor(f.compare(), time.Hour, zerolog.Nop())

	if _, at := m.Last(); !at.IsZero() {
		t.Fatal("expected no report before the first check")
	}
	report := m.CheckNow(context.Background())
	if report.InSync() {
		t.Fatal("expected drift")
	}
	last, at := m.Last()
	if at.IsZero() || len(last.Entries) != 2 {
		t.Fatalf("unexpected last report: %+v at %v", last, at)
	}
	metrics := m.Metrics()
	if metrics.RunsTotal != 1 || metrics.MismatchedTotal != 1 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestDriftMonitorStartRunsOnInterval(t *testing.T) {
	f := newResyncFixture()
	m := NewDriftMonitor(f.compare(), 10*time.Millisecond, zerolog.Nop())
	m.Start(context.Background())
	m.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for m.Metrics().RunsTotal < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("monitor did not run, metrics=%+v", m.Metrics())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	runs := m.Metrics().RunsTotal
	time.Sleep(30 * time.Millisecond)
	if m.Metrics().RunsTotal != runs {
		t.Fatal("monitor kept running after close")
	}
	if m.Metrics().MismatchedTotal != 0 {
		t.Fatalf("expected empty stores to be in sync, got %+v", m.Metrics())
	}
}
