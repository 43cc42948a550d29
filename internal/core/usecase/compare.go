package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
	"github.com/atvirokodosprendimai/dbmirror/internal/metrics"
)

// DriftComparator counts every registered type on both stores. It never
// writes.
type DriftComparator struct {
	registry *ShapeRegistry
	source   ports.SnapshotSource
	conn     ports.MirrorConnection
	log      zerolog.Logger
	timeout  time.Duration
}

func NewDriftComparator(registry *ShapeRegistry, source ports.SnapshotSource, conn ports.MirrorConnection, log zerolog.Logger, timeout time.Duration) *DriftComparator {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &DriftComparator{registry: registry, source: source, conn: conn, log: log, timeout: timeout}
}

// Compare reports one entry per registered type. A type that cannot be
// counted on either side is reported as a mismatch carrying the error.
func (c *DriftComparator) Compare(ctx context.Context) domain.DriftReport {
	names := c.registry.Names()
	report := domain.DriftReport{Entries: make([]domain.DriftEntry, 0, len(names))}
	for _, name := range names {
		entry := c.compareType(ctx, name)
		metrics.SetDrift(name, !entry.Match)
		if !entry.Match {
			c.log.Warn().Str("type", name).
				Int64("local", entry.Local).
				Int64("live", entry.Live).
				Str("error", entry.Err).
				Msg("drift detected")
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}

func (c *DriftComparator) compareType(ctx context.Context, name string) domain.DriftEntry {
	entry := domain.DriftEntry{Type: name}
	shape, ok := c.registry.Resolve(name, nil)
	if !ok {
		entry.Err = "no shape registered"
		return entry
	}

	local, err := c.countLocal(ctx, shape)
	if err != nil {
		entry.Err = fmt.Sprintf("count primary: %v", err)
		return entry
	}
	entry.Local = local

	if c.conn == nil || !c.conn.IsHealthy() {
		entry.Err = domain.ErrSecondaryUnavailable.Error()
		return entry
	}
	coll := c.conn.Accessor(shape)
	if coll == nil {
		entry.Err = domain.ErrSecondaryUnavailable.Error()
		return entry
	}
	live, err := c.countLive(ctx, coll)
	if err != nil {
		entry.Err = fmt.Sprintf("count secondary: %v", err)
		return entry
	}
	entry.Live = live
	entry.Match = local == live
	return entry
}

func (c *DriftComparator) countLocal(ctx context.Context, shape domain.Shape) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.source.Count(ctx, shape)
}

func (c *DriftComparator) countLive(ctx context.Context, coll ports.MirrorCollection) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return coll.Count(ctx)
}
