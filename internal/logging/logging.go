package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config selects level, format and destination of the process log. With an
// empty File the log goes to Stderr (os.Stderr when nil). Rotation follows
// lumberjack semantics.
type Config struct {
	Level      string
	Format     string // "json" or "console"
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Stderr     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the root logger. The returned closer releases the log file.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var (
		out    io.Writer = cfg.Stderr
		closer io.Closer = nopCloser{}
	)
	if out == nil {
		out = os.Stderr
	}
	if cfg.File != "" {
		file := &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		out = zerolog.SyncWriter(file)
		closer = file
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, NoColor: cfg.File != "", TimeFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		_ = closer.Close()
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	log := zerolog.New(out).Level(level).With().Timestamp().Str("service", "dbmirror").Logger()
	return log, closer, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
