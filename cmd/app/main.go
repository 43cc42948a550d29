package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/dbmirror/internal/app"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/usecase"
	"github.com/atvirokodosprendimai/dbmirror/internal/logging"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(err)
			return
		}
		zlog.Fatal().Err(err).Msg("dbmirror failed")
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "dbmirror",
		Usage: "SQLite catalog store mirrored to a secondary database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "primary",
				Value:   "./dbmirror.sqlite",
				Sources: cli.EnvVars("DBMIRROR_PRIMARY"),
				Usage:   "Primary SQLite file path",
			},
			&cli.StringFlag{
				Name:    "secondary",
				Sources: cli.EnvVars("DBMIRROR_SECONDARY"),
				Usage:   "Secondary store address (postgres://..., sqlite://path); empty disables mirroring",
			},
			&cli.DurationFlag{
				Name:    "op-timeout",
				Value:   5 * time.Second,
				Sources: cli.EnvVars("DBMIRROR_OP_TIMEOUT"),
				Usage:   "Bound on each secondary operation",
			},
			&cli.DurationFlag{
				Name:    "connect-timeout",
				Value:   5 * time.Second,
				Sources: cli.EnvVars("DBMIRROR_CONNECT_TIMEOUT"),
				Usage:   "Bound on the secondary connection attempt",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("DBMIRROR_LOG_LEVEL"),
				Usage:   "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "console",
				Sources: cli.EnvVars("DBMIRROR_LOG_FORMAT"),
				Usage:   "console or json",
			},
			&cli.StringFlag{
				Name:    "log-file",
				Sources: cli.EnvVars("DBMIRROR_LOG_FILE"),
				Usage:   "Write logs to a rotated file instead of stderr",
			},
			&cli.IntFlag{
				Name:  "log-max-size",
				Value: logging.DefaultMaxSizeMB,
				Usage: "Rotate the log file after this many megabytes",
			},
			&cli.IntFlag{
				Name:  "log-max-backups",
				Value: logging.DefaultMaxBackups,
				Usage: "Rotated log files to keep",
			},
			&cli.IntFlag{
				Name:  "log-max-age",
				Value: logging.DefaultMaxAgeDays,
				Usage: "Days to keep rotated log files",
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the admin API with live mirroring",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Value: ":8080",
						Usage: "HTTP listen address",
					},
					&cli.DurationFlag{
						Name:    "drift-interval",
						Value:   time.Minute,
						Sources: cli.EnvVars("DBMIRROR_DRIFT_INTERVAL"),
						Usage:   "Background drift check interval; 0 disables",
					},
					&cli.StringFlag{
						Name:    "bootstrap-api-key",
						Sources: cli.EnvVars("DBMIRROR_BOOTSTRAP_API_KEY"),
						Usage:   "Optional API key to upsert at startup",
					},
					&cli.StringFlag{
						Name:    "bootstrap-key-name",
						Value:   "bootstrap",
						Sources: cli.EnvVars("DBMIRROR_BOOTSTRAP_KEY_NAME"),
						Usage:   "Name for bootstrap API key",
					},
				},
				Action: serve,
			},
			{
				Name:   "resync",
				Usage:  "Replace every mirrored collection with the primary's current contents",
				Action: resync,
			},
			{
				Name:   "compare",
				Usage:  "Compare record counts per type across both stores",
				Action: compare,
			},
		},
	}
}

func newLogger(c *cli.Command) (zerolog.Logger, io.Closer, error) {
	log, closer, err := logging.New(logging.Config{
		Level:      c.String("log-level"),
		Format:     c.String("log-format"),
		File:       c.String("log-file"),
		MaxSizeMB:  int(c.Int("log-max-size")),
		MaxBackups: int(c.Int("log-max-backups")),
		MaxAgeDays: int(c.Int("log-max-age")),
		Compress:   true,
	})
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	zlog.Logger = log
	return log, closer, nil
}

func baseConfig(c *cli.Command, log zerolog.Logger) app.Config {
	return app.Config{
		PrimaryPath:      c.String("primary"),
		SecondaryAddress: c.String("secondary"),
		OpTimeout:        c.Duration("op-timeout"),
		ConnectTimeout:   c.Duration("connect-timeout"),
		Log:              log,
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	log, logCloser, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	cfg := baseConfig(c, log)
	cfg.Addr = c.String("addr")
	cfg.DriftInterval = c.Duration("drift-interval")
	cfg.BootstrapAPIKey = c.String("bootstrap-api-key")
	cfg.BootstrapKeyName = c.String("bootstrap-key-name")

	server, closer, err := app.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("close resources")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// openOperatorEngine refuses to go on without a configured secondary. A
// configured but unreachable one is left to the command, which reports it
// per type.
func openOperatorEngine(ctx context.Context, c *cli.Command) (*app.Engine, io.Closer, error) {
	log, logCloser, err := newLogger(c)
	if err != nil {
		return nil, nil, err
	}
	engine, err := app.OpenEngine(ctx, baseConfig(c, log))
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	if engine.Mirror.State() == domain.StateUnconfigured {
		_ = engine.Close()
		_ = logCloser.Close()
		return nil, nil, cli.Exit("no secondary store configured (set --secondary or DBMIRROR_SECONDARY)", 2)
	}
	return engine, closerFunc(func() error { return errors.Join(engine.Close(), logCloser.Close()) }), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func resync(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, closer, err := openOperatorEngine(ctx, c)
	if err != nil {
		return err
	}
	defer closer.Close()

	report, err := engine.Resynchronizer().Run(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("resync: %v", err), 1)
	}
	if err := usecase.WriteResyncReport(c.Root().Writer, report); err != nil {
		return err
	}
	if report.Failed() {
		return cli.Exit("", 1)
	}
	return nil
}

func compare(ctx context.Context, c *cli.Command) error {
	engine, closer, err := openOperatorEngine(ctx, c)
	if err != nil {
		return err
	}
	defer closer.Close()

	report := engine.Comparator().Compare(ctx)
	if err := usecase.WriteDriftReport(c.Root().Writer, report); err != nil {
		return err
	}
	if !report.InSync() {
		return cli.Exit("", 1)
	}
	return nil
}
