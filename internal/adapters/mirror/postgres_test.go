package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// startPostgres runs a throwaway PostgreSQL and returns its URL. The test is
// skipped when Docker is not available.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("live"),
		postgres.WithUsername("mirror"),
		postgres.WithPassword("mirror"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

func TestPostgresCollection(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	m := NewManager(Config{Log: zerolog.Nop(), ConnectTimeout: 10 * time.Second})
	t.Cleanup(func() { _ = m.Close() })
	if err := m.Connect(ctx, dsn); err != nil {
		t.Fatalf("connect: %v", err)
	}
	coll := m.Accessor(testShape)
	if coll == nil {
		t.Fatal("expected accessor")
	}

	if err := coll.Upsert(ctx, domain.Record{ID: "1", Data: json.RawMessage(`{"name":"A"}`)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := coll.Upsert(ctx, domain.Record{ID: "1", Data: json.RawMessage(`{"name":"B"}`)}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := coll.Insert(ctx, domain.Record{ID: "1", Data: json.RawMessage(`{}`)}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key, got %v", err)
	}
	err := coll.InsertMany(ctx, []domain.Record{{ID: "2", Data: json.RawMessage(`{}`)}, {ID: "1", Data: json.RawMessage(`{}`)}})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key from batch, got %v", err)
	}
	if err := coll.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}

	recs, err := coll.(*Collection).List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || string(recs[0].Data) != `{"name":"B"}` {
		t.Fatalf("unexpected records: %+v", recs)
	}

	if err := coll.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n, err := coll.Count(ctx); err != nil || n != 0 {
		t.Fatalf("expected empty collection, got %d %v", n, err)
	}
}

func TestIsDuplicateKeyRecognisesDrivers(t *testing.T) {
	if isDuplicateKey(nil) || isDuplicateKey(errors.New("boom")) {
		t.Fatal("plain errors are not duplicates")
	}
	if err := translateError("insert", errors.New("boom")); errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("unexpected duplicate: %v", err)
	}
	if !isDuplicateKey(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("expected unique_violation to be a duplicate")
	}
	if isDuplicateKey(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violations are not duplicates")
	}
	if !isDuplicateKey(gorm.ErrDuplicatedKey) {
		t.Fatal("expected translated gorm error to be a duplicate")
	}
	if translateError("insert", nil) != nil {
		t.Fatal("nil stays nil")
	}
}
