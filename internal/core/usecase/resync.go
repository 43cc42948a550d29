package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
	"github.com/atvirokodosprendimai/dbmirror/internal/metrics"
)

// Resynchronizer wipes every registered collection on the secondary and
// reloads it from the primary snapshot, one type at a time in registration
// order. It does not lock out live propagation.
type Resynchronizer struct {
	registry  *ShapeRegistry
	source    ports.SnapshotSource
	conn      ports.MirrorConnection
	validator *ShapeValidator
	log       zerolog.Logger
	timeout   time.Duration
}

func NewResynchronizer(registry *ShapeRegistry, source ports.SnapshotSource, conn ports.MirrorConnection, validator *ShapeValidator, log zerolog.Logger, timeout time.Duration) *Resynchronizer {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	if validator == nil {
		validator = NewShapeValidator()
	}
	return &Resynchronizer{registry: registry, source: source, conn: conn, validator: validator, log: log, timeout: timeout}
}

// Run returns an error only when the secondary is not usable at all.
// Per-type and per-record failures end up in the report.
func (r *Resynchronizer) Run(ctx context.Context) (domain.ResyncReport, error) {
	if r.conn == nil || !r.conn.IsHealthy() {
		return domain.ResyncReport{}, domain.ErrSecondaryUnavailable
	}

	names := r.registry.Names()
	r.log.Info().Strs("order", names).Msg("bulk resync starting")

	report := domain.ResyncReport{Tallies: make([]domain.SyncTally, 0, len(names))}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		tally := r.syncType(ctx, name)
		metrics.AddResync(name, tally.Synced, tally.Skipped, tally.Errored)

		ev := r.log.Info()
		if !tally.Converged() {
			ev = r.log.Warn()
		}
		ev.Str("type", name).
			Int64("local", tally.LocalCount).
			Int64("live", tally.LiveCount).
			Int("synced", tally.Synced).
			Int("skipped", tally.Skipped).
			Int("errored", tally.Errored).
			Str("error", tally.Err).
			Msg("type resynced")
		report.Tallies = append(report.Tallies, tally)
	}
	return report, nil
}

func (r *Resynchronizer) syncType(ctx context.Context, name string) domain.SyncTally {
	tally := domain.SyncTally{Type: name}
	shape, ok := r.registry.Resolve(name, nil)
	if !ok {
		tally.Err = "no shape registered"
		return tally
	}
	coll := r.conn.Accessor(shape)
	if coll == nil {
		tally.Err = domain.ErrSecondaryUnavailable.Error()
		return tally
	}

	records, err := r.source.Snapshot(ctx, shape)
	if err != nil {
		tally.Err = fmt.Sprintf("read primary: %v", err)
		return tally
	}
	tally.LocalCount = int64(len(records))

	if err := r.withTimeout(ctx, coll.DeleteAll); err != nil {
		tally.Err = fmt.Sprintf("clear secondary: %v", err)
		return tally
	}

	valid := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			r.log.Warn().Err(err).Str("type", name).Str("id", rec.ID).Msg("record rejected")
			tally.Errored++
			continue
		}
		if err := r.validator.Validate(shape, rec.Data); err != nil {
			r.log.Warn().Err(err).Str("type", name).Str("id", rec.ID).Msg("record rejected")
			tally.Errored++
			continue
		}
		valid = append(valid, rec)
	}

	if len(valid) > 0 {
		err := r.withTimeout(ctx, func(ctx context.Context) error { return coll.InsertMany(ctx, valid) })
		if err == nil {
			tally.Synced += len(valid)
		} else {
			r.log.Warn().Err(err).Str("type", name).Int("records", len(valid)).Msg("bulk insert failed, inserting one at a time")
			r.insertEach(ctx, coll, valid, &tally)
		}
	}

	live, err := r.count(ctx, coll)
	if err != nil {
		tally.Err = fmt.Sprintf("count secondary: %v", err)
		return tally
	}
	tally.LiveCount = live
	return tally
}

func (r *Resynchronizer) insertEach(ctx context.Context, coll ports.MirrorCollection, recs []domain.Record, tally *domain.SyncTally) {
	for _, rec := range recs {
		err := r.withTimeout(ctx, func(ctx context.Context) error { return coll.Insert(ctx, rec) })
		switch {
		case err == nil:
			tally.Synced++
		case errors.Is(err, domain.ErrDuplicateKey):
			tally.Skipped++
		default:
			r.log.Warn().Err(err).Str("type", tally.Type).Str("id", rec.ID).Msg("insert failed")
			tally.Errored++
		}
	}
}

func (r *Resynchronizer) count(ctx context.Context, coll ports.MirrorCollection) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return coll.Count(ctx)
}

func (r *Resynchronizer) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}
