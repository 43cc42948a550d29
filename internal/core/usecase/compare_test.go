package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

func TestDriftComparatorReportsMismatchPerType(t *testing.T) {
	f := newResyncFixture()
	f.source.records["products"] = []domain.Record{rec("1", `{}`), rec("2", `{}`)}
	f.conn.collection("products").docs["1"] = json.RawMessage(`{}`)

	report := f.compare().Compare(context.Background())
	if report.InSync() {
		t.Fatal("expected drift")
	}
	mm := report.Mismatches()
	if len(mm) != 1 || mm[0].Type != "Product" || mm[0].Local != 2 || mm[0].Live != 1 || mm[0].Err != "" {
		t.Fatalf("unexpected mismatches: %+v", mm)
	}
	if f.conn.collection("products").calls != 0 {
		t.Fatal("comparator must not write")
	}
}

func TestDriftComparatorAnnotatesCountFailures(t *testing.T) {
	f := newResyncFixture()
	f.conn.collection("products").failCount = errSecondaryDown
	f.source.failCount = map[string]error{"categories": errors.New("no such table")}

	report := f.compare().Compare(context.Background())
	if len(report.Entries) != 2 {
		t.Fatalf("expected every type reported, got %+v", report.Entries)
	}
	for _, e := range report.Entries {
		if e.Match || e.Err == "" {
			t.Fatalf("expected annotated mismatch, got %+v", e)
		}
	}
}

func TestDriftComparatorWithoutSecondary(t *testing.T) {
	f := newResyncFixture()
	f.conn = newMemConnection(domain.StateUnhealthy)
	report := f.compare().Compare(context.Background())
	if report.InSync() {
		t.Fatal("expected mismatch when secondary is down")
	}
	for _, e := range report.Entries {
		if e.Err != domain.ErrSecondaryUnavailable.Error() {
			t.Fatalf("unexpected annotation: %+v", e)
		}
	}
}
