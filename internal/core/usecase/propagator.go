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

const defaultOpTimeout = 5 * time.Second

// Propagator replays one successful primary mutation against the secondary
// store. It never returns an error: failures are logged and reported only
// through the returned Outcome, so the primary write path cannot observe
// them.
type Propagator struct {
	registry  *ShapeRegistry
	conn      ports.MirrorConnection
	validator *ShapeValidator
	log       zerolog.Logger
	timeout   time.Duration
}

func NewPropagator(registry *ShapeRegistry, conn ports.MirrorConnection, validator *ShapeValidator, log zerolog.Logger, timeout time.Duration) *Propagator {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	if validator == nil {
		validator = NewShapeValidator()
	}
	return &Propagator{registry: registry, conn: conn, validator: validator, log: log, timeout: timeout}
}

func (p *Propagator) Propagate(ctx context.Context, typeName string, fallback *domain.Shape, rec domain.Record, op domain.Operation) domain.Outcome {
	start := time.Now()
	outcome := p.propagate(ctx, typeName, fallback, rec, op)
	var elapsed float64
	if outcome == domain.OutcomeSuccess || outcome == domain.OutcomeFailed {
		elapsed = time.Since(start).Seconds()
	}
	metrics.ObservePropagation(typeName, string(op), string(outcome), elapsed)
	return outcome
}

func (p *Propagator) propagate(ctx context.Context, typeName string, fallback *domain.Shape, rec domain.Record, op domain.Operation) domain.Outcome {
	if p.conn == nil || !p.conn.IsHealthy() {
		return domain.OutcomeSkippedNoSecondary
	}
	shape, ok := p.registry.Resolve(typeName, fallback)
	if !ok {
		p.log.Debug().Str("type", typeName).Str("operation", string(op)).Str("id", rec.ID).Msg("no shape registered, mutation not mirrored")
		return domain.OutcomeSkippedNoShape
	}
	coll := p.conn.Accessor(shape)
	if coll == nil {
		return domain.OutcomeSkippedNoSecondary
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.apply(ctx, coll, shape, rec, op); err != nil {
		p.log.Warn().Err(err).
			Str("type", typeName).
			Str("operation", string(op)).
			Str("id", rec.ID).
			Msg("mirror propagation failed")
		return domain.OutcomeFailed
	}
	return domain.OutcomeSuccess
}

func (p *Propagator) apply(ctx context.Context, coll ports.MirrorCollection, shape domain.Shape, rec domain.Record, op domain.Operation) (err error) {
	defer func() {
		// A misbehaving driver must not take the caller down with it.
		if r := recover(); r != nil {
			err = fmt.Errorf("secondary panic: %v", r)
		}
	}()

	if err := domain.ValidateID(rec.ID); err != nil {
		return err
	}
	switch op {
	case domain.OperationCreate, domain.OperationUpdate:
		if err := rec.Validate(); err != nil {
			return err
		}
		if err := p.validator.Validate(shape, rec.Data); err != nil {
			return err
		}
		return coll.Upsert(ctx, rec)
	case domain.OperationDelete:
		return coll.Delete(ctx, rec.ID)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}
