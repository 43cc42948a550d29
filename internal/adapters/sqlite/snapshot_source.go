package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// SnapshotSource reads whole rows of a shape's table from the read pool and
// encodes them as mirror records.
type SnapshotSource struct {
	db *gormsqlite.DB
}

func NewSnapshotSource(db *gormsqlite.DB) *SnapshotSource {
	return &SnapshotSource{db: db}
}

func (s *SnapshotSource) Snapshot(ctx context.Context, shape domain.Shape) ([]domain.Record, error) {
	var rows []map[string]any
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Table(shape.Collection).
			Order(clause.OrderByColumn{Column: clause.Column{Name: shape.IDField}}).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", shape.Collection, err)
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := encodeRow(row, shape.IDField)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", shape.Collection, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *SnapshotSource) Count(ctx context.Context, shape domain.Shape) (int64, error) {
	var n int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Table(shape.Collection).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", shape.Collection, err)
	}
	return n, nil
}

func (s *SnapshotSource) Load(ctx context.Context, shape domain.Shape, id string) (domain.Record, error) {
	var rows []map[string]any
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Table(shape.Collection).
			Where(clause.Eq{Column: clause.Column{Name: shape.IDField}, Value: id}).
			Limit(1).
			Find(&rows).Error
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("load %s/%s: %w", shape.Collection, id, err)
	}
	if len(rows) == 0 {
		return domain.Record{}, domain.ErrNotFound
	}
	return encodeRow(rows[0], shape.IDField)
}

// encodeRow turns a scanned row into a record whose data is the full row as
// a JSON object. Byte slices become strings and times RFC 3339 in UTC so the
// same row always encodes the same way.
func encodeRow(row map[string]any, idField string) (domain.Record, error) {
	doc := make(map[string]any, len(row))
	for k, v := range row {
		doc[k] = canonicalValue(v)
	}
	rawID, ok := doc[idField]
	if !ok || rawID == nil {
		return domain.Record{}, fmt.Errorf("row has no %q value", idField)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode row: %w", err)
	}
	return domain.Record{ID: fmt.Sprint(rawID), Data: data}, nil
}

func canonicalValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
