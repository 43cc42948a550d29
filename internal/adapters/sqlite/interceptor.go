package sqlite

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
)

const (
	callbackCreate = "mirror:after_create"
	callbackUpdate = "mirror:after_update"
	callbackDelete = "mirror:after_delete"

	afterCommit = "gorm:commit_or_rollback_transaction"
)

// Interceptor hooks gorm's create, update and delete chains on the write
// pool and hands every committed mutation of a registered table to the
// propagator on its own goroutine. The primary statement never waits for,
// or learns about, the mirror.
//
// Statements run inside an explicit caller transaction reach the callbacks
// before that transaction commits, so mirrored writes must not be wrapped.
// Deletes issued with conditions on a zero-value model carry no identifier
// and are not mirrored; resync covers them.
type Interceptor struct {
	registry   Registry
	source     ports.SnapshotSource
	propagator ports.Propagator
	conn       ports.MirrorConnection
	log        zerolog.Logger
	timeout    time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Registry maps a table to the logical type mirrored from it.
type Registry interface {
	ByCollection(collection string) (string, domain.Shape, bool)
}

type InterceptorConfig struct {
	Registry   Registry
	Source     ports.SnapshotSource
	Propagator ports.Propagator
	// Conn, when set, lets the interceptor skip reloading rows while the
	// secondary is not healthy.
	Conn    ports.MirrorConnection
	Log     zerolog.Logger
	Timeout time.Duration
}

func NewInterceptor(cfg InterceptorConfig) *Interceptor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Interceptor{
		registry:   cfg.Registry,
		source:     cfg.Source,
		propagator: cfg.Propagator,
		conn:       cfg.Conn,
		log:        cfg.Log,
		timeout:    cfg.Timeout,
	}
}

// Attach registers the callbacks on db. Call it once per gorm handle.
func (i *Interceptor) Attach(db *gorm.DB) error {
	if err := db.Callback().Create().After(afterCommit).Register(callbackCreate, i.afterMutation(domain.OperationCreate)); err != nil {
		return fmt.Errorf("register create callback: %w", err)
	}
	if err := db.Callback().Update().After(afterCommit).Register(callbackUpdate, i.afterMutation(domain.OperationUpdate)); err != nil {
		return fmt.Errorf("register update callback: %w", err)
	}
	if err := db.Callback().Delete().After(afterCommit).Register(callbackDelete, i.afterMutation(domain.OperationDelete)); err != nil {
		return fmt.Errorf("register delete callback: %w", err)
	}
	return nil
}

// Wait blocks until every propagation started so far has finished.
func (i *Interceptor) Wait() {
	i.wg.Wait()
}

// Close stops accepting new mutations and waits for in-flight ones.
func (i *Interceptor) Close() error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	i.wg.Wait()
	return nil
}

func (i *Interceptor) afterMutation(op domain.Operation) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Error != nil || db.Statement == nil || db.Statement.Schema == nil || db.RowsAffected == 0 {
			return
		}
		typeName, shape, ok := i.registry.ByCollection(db.Statement.Table)
		if !ok {
			return
		}
		for _, id := range primaryKeys(db) {
			i.dispatch(typeName, shape, id, op)
		}
	}
}

func (i *Interceptor) dispatch(typeName string, shape domain.Shape, id string, op domain.Operation) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return
	}

	if i.conn != nil && !i.conn.IsHealthy() {
		// No network is touched on this path; the call only records the skip.
		i.propagator.Propagate(context.Background(), typeName, &shape, domain.Record{ID: id}, op)
		return
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		rec := domain.Record{ID: id}
		if op != domain.OperationDelete {
			loaded, err := i.load(shape, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					// Deleted again before we got here; the delete propagates on its own.
					i.log.Debug().Str("type", typeName).Str("id", id).Msg("row gone before mirroring")
					return
				}
				i.log.Warn().Err(err).Str("type", typeName).Str("operation", string(op)).Str("id", id).Msg("reload for mirroring failed")
				return
			}
			rec = loaded
		}
		i.propagator.Propagate(context.Background(), typeName, &shape, rec, op)
	}()
}

func (i *Interceptor) load(shape domain.Shape, id string) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	return i.source.Load(ctx, shape, id)
}

// primaryKeys returns the non-zero primary key values of the statement's
// destination, one per element when it is a slice.
func primaryKeys(db *gorm.DB) []string {
	field := db.Statement.Schema.PrioritizedPrimaryField
	if field == nil {
		return nil
	}
	ctx := db.Statement.Context
	rv := reflect.Indirect(db.Statement.ReflectValue)

	var ids []string
	collect := func(v reflect.Value) {
		v = reflect.Indirect(v)
		if v.Kind() != reflect.Struct {
			return
		}
		if val, zero := field.ValueOf(ctx, v); !zero {
			ids = append(ids, fmt.Sprint(val))
		}
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for j := 0; j < rv.Len(); j++ {
			collect(rv.Index(j))
		}
	case reflect.Struct:
		collect(rv)
	}
	return ids
}
