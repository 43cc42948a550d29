package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
)

var ErrUnsupportedAddress = errors.New("unsupported secondary address")

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

// parseAddress accepts postgres:// and postgresql:// URLs, sqlite:// URLs
// and bare SQLite file paths.
func parseAddress(address string) (dialect, string, error) {
	address = strings.TrimSpace(address)
	switch {
	case strings.HasPrefix(address, "postgres://"), strings.HasPrefix(address, "postgresql://"):
		return dialectPostgres, address, nil
	case strings.HasPrefix(address, "sqlite://"):
		path := strings.TrimPrefix(address, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("%w: empty sqlite path", ErrUnsupportedAddress)
		}
		return dialectSQLite, path, nil
	case strings.HasPrefix(address, "file:"):
		return dialectSQLite, address, nil
	case strings.Contains(address, "://"):
		scheme, _, _ := strings.Cut(address, "://")
		return "", "", fmt.Errorf("%w: scheme %q", ErrUnsupportedAddress, scheme)
	case address == "":
		return "", "", fmt.Errorf("%w: empty address", ErrUnsupportedAddress)
	default:
		return dialectSQLite, address, nil
	}
}

// store is an open secondary database. Reads and writes share one handle
// except on SQLite, where the split pools of gormsqlite are reused.
type store struct {
	dialect dialect
	r       *gorm.DB
	w       *gorm.DB
	close   func() error
}

func openStore(ctx context.Context, address string, log zerolog.Logger) (*store, error) {
	d, dsn, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	switch d {
	case dialectPostgres:
		return openPostgres(ctx, dsn, log)
	default:
		return openSQLite(ctx, dsn, log)
	}
}

func openSQLite(ctx context.Context, path string, log zerolog.Logger) (*store, error) {
	db, err := gormsqlite.Open(path, gormsqlite.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &store{dialect: dialectSQLite, r: db.R, w: db.W, close: db.Close}, nil
}

func openPostgres(ctx context.Context, dsn string, log zerolog.Logger) (*store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableAutomaticPing: true,
		TranslateError:       true,
		Logger: logger.New(gormWriter{log: log}, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &store{dialect: dialectPostgres, r: db, w: db, close: sqlDB.Close}, nil
}

type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn().Str("component", "gorm").Str("store", "secondary").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
