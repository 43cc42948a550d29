package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
)

func newTestPropagator(conn *memConnection) (*Propagator, *ShapeRegistry) {
	reg := NewShapeRegistry()
	reg.Register("Product", productShape)
	return NewPropagator(reg, conn, nil, zerolog.Nop(), time.Second), reg
}

func TestPropagatorCreateCopiesIdentifierVerbatim(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)

	id := "0b6f2c4e-9a1d-4c1b-8f53-2a7d3c9e1f00"
	out := p.Propagate(context.Background(), "Product", nil, rec(id, `{"id":"`+id+`","name":"A"}`), domain.OperationCreate)
	if out != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", out)
	}
	if _, ok := conn.collection("products").get(id); !ok {
		t.Fatalf("expected record %s on secondary", id)
	}
}

func TestPropagatorUpsertIsIdempotent(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)
	ctx := context.Background()

	p.Propagate(ctx, "Product", nil, rec("1", `{"id":"1","name":"A"}`), domain.OperationCreate)
	p.Propagate(ctx, "Product", nil, rec("1", `{"id":"1","name":"A"}`), domain.OperationCreate)
	out := p.Propagate(ctx, "Product", nil, rec("1", `{"id":"1","name":"B"}`), domain.OperationUpdate)
	if out != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", out)
	}

	coll := conn.collection("products")
	if n, _ := coll.Count(ctx); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
	data, _ := coll.get("1")
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["name"] != "B" {
		t.Fatalf("expected latest values, got %v", doc)
	}
}

func TestPropagatorUpdateOfMissingRecordCreatesIt(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)
	out := p.Propagate(context.Background(), "Product", nil, rec("7", `{"id":"7","name":"late"}`), domain.OperationUpdate)
	if out != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", out)
	}
	if _, ok := conn.collection("products").get("7"); !ok {
		t.Fatal("expected update to upsert a missing record")
	}
}

func TestPropagatorDeleteIsIdempotent(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)
	ctx := context.Background()
	p.Propagate(ctx, "Product", nil, rec("1", `{"id":"1","name":"A"}`), domain.OperationCreate)

	for i := 0; i < 2; i++ {
		if out := p.Propagate(ctx, "Product", nil, domain.Record{ID: "1"}, domain.OperationDelete); out != domain.OutcomeSuccess {
			t.Fatalf("delete %d: expected success, got %s", i, out)
		}
	}
	if out := p.Propagate(ctx, "Product", nil, domain.Record{ID: "never-existed"}, domain.OperationDelete); out != domain.OutcomeSuccess {
		t.Fatalf("expected absent delete to succeed, got %s", out)
	}
	if n, _ := conn.collection("products").Count(ctx); n != 0 {
		t.Fatalf("expected empty collection, got %d", n)
	}
}

func TestPropagatorSkipsWithoutHealthySecondary(t *testing.T) {
	for _, state := range []domain.ConnectionState{domain.StateUnconfigured, domain.StateConnecting, domain.StateUnhealthy} {
		conn := newMemConnection(state)
		p, _ := newTestPropagator(conn)
		out := p.Propagate(context.Background(), "Product", nil, rec("1", `{"id":"1","name":"A"}`), domain.OperationCreate)
		if out != domain.OutcomeSkippedNoSecondary {
			t.Fatalf("%s: expected skipped_no_secondary, got %s", state, out)
		}
		if conn.accessed != 0 {
			t.Fatalf("%s: expected no accessor call, got %d", state, conn.accessed)
		}
	}
}

func TestPropagatorNilConnectionNeverPanics(t *testing.T) {
	reg := NewShapeRegistry()
	p := NewPropagator(reg, nil, nil, zerolog.Nop(), 0)
	if out := p.Propagate(context.Background(), "Product", nil, rec("1", `{}`), domain.OperationCreate); out != domain.OutcomeSkippedNoSecondary {
		t.Fatalf("expected skipped_no_secondary, got %s", out)
	}
}

func TestPropagatorSkipsUnregisteredType(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)
	out := p.Propagate(context.Background(), "Order", nil, rec("1", `{"id":"1"}`), domain.OperationCreate)
	if out != domain.OutcomeSkippedNoShape {
		t.Fatalf("expected skipped_no_shape, got %s", out)
	}
	if len(conn.collections) != 0 {
		t.Fatalf("expected no collections touched, got %d", len(conn.collections))
	}
}

func TestPropagatorUsesFallbackShape(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)
	fb := &domain.Shape{Collection: "orders"}
	out := p.Propagate(context.Background(), "Order", fb, rec("o-1", `{"id":"o-1"}`), domain.OperationCreate)
	if out != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", out)
	}
	if _, ok := conn.collection("orders").get("o-1"); !ok {
		t.Fatal("expected record in fallback collection")
	}
}

func TestPropagatorSwallowsSecondaryErrorsWithoutChangingState(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	conn.collection("products").failWrite = errSecondaryDown
	p, _ := newTestPropagator(conn)

	for _, op := range []domain.Operation{domain.OperationCreate, domain.OperationUpdate, domain.OperationDelete} {
		out := p.Propagate(context.Background(), "Product", nil, rec("1", `{"id":"1","name":"A"}`), op)
		if out != domain.OutcomeFailed {
			t.Fatalf("%s: expected failed, got %s", op, out)
		}
	}
	if conn.State() != domain.StateHealthy {
		t.Fatalf("write errors must not change connection state, got %s", conn.State())
	}
}

func TestPropagatorRejectsRecordsViolatingShape(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)
	out := p.Propagate(context.Background(), "Product", nil, rec("1", `{"id":"1"}`), domain.OperationCreate)
	if out != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if n, _ := conn.collection("products").Count(context.Background()); n != 0 {
		t.Fatalf("expected nothing written, got %d", n)
	}
}

func TestPropagatorRejectsMissingIdentifierAndUnknownOperation(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)
	ctx := context.Background()
	if out := p.Propagate(ctx, "Product", nil, rec("", `{"name":"A"}`), domain.OperationCreate); out != domain.OutcomeFailed {
		t.Fatalf("expected failed for empty id, got %s", out)
	}
	if out := p.Propagate(ctx, "Product", nil, rec("1", `{"id":"1","name":"A"}`), domain.Operation("merge")); out != domain.OutcomeFailed {
		t.Fatalf("expected failed for unknown operation, got %s", out)
	}
}

type panickingCollection struct{ *memCollection }

func (panickingCollection) Upsert(context.Context, domain.Record) error { panic("driver bug") }

type panickingConnection struct{}

func (panickingConnection) IsHealthy() bool { return true }
func (panickingConnection) State() domain.ConnectionState { return domain.StateHealthy }
func (panickingConnection) Accessor(domain.Shape) ports.MirrorCollection {
	return panickingCollection{newMemCollection()}
}

func TestPropagatorRecoversFromDriverPanic(t *testing.T) {
	reg := NewShapeRegistry()
	reg.Register("Product", domain.Shape{Collection: "products"})
	p := NewPropagator(reg, panickingConnection{}, nil, zerolog.Nop(), time.Second)
	if out := p.Propagate(context.Background(), "Product", nil, rec("1", `{"id":"1"}`), domain.OperationCreate); out != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
}

func TestPropagatorConcurrentCallsShareConnection(t *testing.T) {
	conn := newMemConnection(domain.StateHealthy)
	p, _ := newTestPropagator(conn)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p-%d", i)
			p.Propagate(context.Background(), "Product", nil, rec(id, `{"id":"`+id+`","name":"x"}`), domain.OperationCreate)
		}(i)
	}
	wg.Wait()
	if n, _ := conn.collection("products").Count(context.Background()); n != 50 {
		t.Fatalf("expected 50 records, got %d", n)
	}
}
