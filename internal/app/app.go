package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/mirror"
	sqliteadapter "github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/catalog"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/usecase"
	"github.com/atvirokodosprendimai/dbmirror/internal/metrics"
	"github.com/atvirokodosprendimai/dbmirror/migrations"
)

type Config struct {
	Addr             string
	PrimaryPath      string
	SecondaryAddress string
	OpTimeout        time.Duration
	ConnectTimeout   time.Duration
	// DriftInterval schedules background drift checks. Zero disables them.
	DriftInterval    time.Duration
	BootstrapAPIKey  string
	BootstrapKeyName string
	Log              zerolog.Logger
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Engine holds the pieces shared by the server and the operator commands:
// the primary store, the shape registry and the secondary connection.
type Engine struct {
	DB        *gormsqlite.DB
	Registry  *usecase.ShapeRegistry
	Source    *sqliteadapter.SnapshotSource
	Mirror    *mirror.Manager
	Validator *usecase.ShapeValidator

	log       zerolog.Logger
	opTimeout time.Duration
}

// OpenEngine opens and migrates the primary store and makes one attempt to
// reach the secondary. An unreachable secondary is logged, not returned:
// the primary keeps working without it.
func OpenEngine(ctx context.Context, cfg Config) (*Engine, error) {
	db, err := gormsqlite.Open(cfg.PrimaryPath, gormsqlite.Options{Logger: cfg.Log})
	if err != nil {
		return nil, fmt.Errorf("open primary sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	applied, err := migrations.Up(migCtx, writeSQLDB)
	cancel()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		cfg.Log.Info().Ints64("versions", applied).Msg("migrations applied")
	}

	registry := usecase.NewShapeRegistry()
	catalog.Register(registry)
	if err := registry.Require(catalog.Names()...); err != nil {
		_ = db.Close()
		return nil, err
	}

	manager := mirror.NewManager(mirror.Config{
		Log:            cfg.Log.With().Str("component", "mirror").Logger(),
		ConnectTimeout: cfg.ConnectTimeout,
		OpTimeout:      cfg.OpTimeout,
	})
	// Failure is already reflected in the manager state.
	_ = manager.Connect(ctx, cfg.SecondaryAddress)

	return &Engine{
		DB:        db,
		Registry:  registry,
		Source:    sqliteadapter.NewSnapshotSource(db),
		Mirror:    manager,
		Validator: usecase.NewShapeValidator(),
		log:       cfg.Log,
		opTimeout: cfg.OpTimeout,
	}, nil
}

func (e *Engine) Propagator() *usecase.Propagator {
	return usecase.NewPropagator(e.Registry, e.Mirror, e.Validator, e.log.With().Str("component", "propagator").Logger(), e.opTimeout)
}

// AttachInterceptor hooks live propagation into every write made through
// the primary writer pool.
func (e *Engine) AttachInterceptor() (*sqliteadapter.Interceptor, error) {
	interceptor := sqliteadapter.NewInterceptor(sqliteadapter.InterceptorConfig{
		Registry:   e.Registry,
		Source:     e.Source,
		Propagator: e.Propagator(),
		Conn:       e.Mirror,
		Log:        e.log.With().Str("component", "interceptor").Logger(),
		Timeout:    e.opTimeout,
	})
	if err := interceptor.Attach(e.DB.W); err != nil {
		return nil, err
	}
	return interceptor, nil
}

func (e *Engine) Resynchronizer() *usecase.Resynchronizer {
	return usecase.NewResynchronizer(e.Registry, e.Source, e.Mirror, e.Validator, e.log.With().Str("component", "resync").Logger(), e.opTimeout)
}

func (e *Engine) Comparator() *usecase.DriftComparator {
	return usecase.NewDriftComparator(e.Registry, e.Source, e.Mirror, e.log.With().Str("component", "compare").Logger(), e.opTimeout)
}

func (e *Engine) Close() error {
	return errors.Join(e.Mirror.Close(), e.DB.Close())
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	engine, err := OpenEngine(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	interceptor, err := engine.AttachInterceptor()
	if err != nil {
		_ = engine.Close()
		return nil, nil, fmt.Errorf("attach mirror interceptor: %w", err)
	}

	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(engine.DB)
	authService := usecase.NewAuthService(apiKeyRepo)
	catalogService := usecase.NewCatalogService(sqliteadapter.NewCatalogRepository(engine.DB), catalog.Names())

	if cfg.BootstrapAPIKey != "" {
		bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := authService.Bootstrap(bootstrapCtx, cfg.BootstrapKeyName, cfg.BootstrapAPIKey)
		bootstrapCancel()
		if err != nil {
			_ = interceptor.Close()
			_ = engine.Close()
			return nil, nil, fmt.Errorf("bootstrap api key: %w", err)
		}
	}

	comparator := engine.Comparator()
	var drift *usecase.DriftMonitor
	deps := httpapi.Deps{
		Catalog:    catalogService,
		Auth:       authService,
		Mirror:     engine.Mirror,
		Comparator: comparator,
		Primary:    engine.DB,
		Log:        cfg.Log.With().Str("component", "http").Logger(),
	}
	if cfg.DriftInterval > 0 {
		drift = usecase.NewDriftMonitor(comparator, cfg.DriftInterval, cfg.Log.With().Str("component", "drift").Logger())
		drift.Start(context.Background())
		deps.Drift = drift
	}

	handler := httpapi.NewHandler(deps)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	closers := []io.Closer{interceptor}
	if drift != nil {
		closers = append(closers, drift)
	}
	closers = append(closers, engine)
	return server, resourceCloser{closers: closers}, nil
}
