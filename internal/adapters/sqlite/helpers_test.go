package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
	"github.com/atvirokodosprendimai/dbmirror/migrations"
)

func openTestDB(t *testing.T) *gormsqlite.DB {
	t.Helper()
	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "primary.sqlite"), gormsqlite.Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if _, err := migrations.Up(context.Background(), sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type propagation struct {
	typeName string
	rec      domain.Record
	op       domain.Operation
}

type recordingPropagator struct {
	mu    sync.Mutex
	calls []propagation
	block chan struct{}
}

func (p *recordingPropagator) Propagate(_ context.Context, typeName string, _ *domain.Shape, rec domain.Record, op domain.Operation) domain.Outcome {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, propagation{typeName: typeName, rec: rec, op: op})
	return domain.OutcomeSuccess
}

func (p *recordingPropagator) snapshot() []propagation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]propagation(nil), p.calls...)
}

type stubConnection struct {
	healthy bool
}

func (c stubConnection) IsHealthy() bool { return c.healthy }

func (c stubConnection) State() domain.ConnectionState {
	if c.healthy {
		return domain.StateHealthy
	}
	return domain.StateUnhealthy
}

func (stubConnection) Accessor(domain.Shape) ports.MirrorCollection { return nil }
