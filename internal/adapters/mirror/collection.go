package mirror

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
)

const insertBatchSize = 200

// documentRow is how every shape is stored on the secondary: the primary
// identifier verbatim plus the full field set as JSON.
type documentRow struct {
	ID         string    `gorm:"column:id;primaryKey;type:varchar(191)"`
	Data       string    `gorm:"column:data;type:text;not null"`
	MirroredAt time.Time `gorm:"column:mirrored_at;not null"`
}

// Collection is the secondary table of one shape.
type Collection struct {
	table   string
	r       *gorm.DB
	w       *gorm.DB
	timeout time.Duration
	ensure  func(ctx context.Context) error
}

var _ ports.MirrorCollection = (*Collection)(nil)

func (c *Collection) Upsert(ctx context.Context, rec domain.Record) error {
	ctx, cancel := c.begin(ctx)
	defer cancel()
	if err := c.ensure(ctx); err != nil {
		return err
	}
	row := toRow(rec)
	err := c.w.WithContext(ctx).Table(c.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "mirrored_at"}),
	}).Create(&row).Error
	return translateError("upsert "+c.table, err)
}

// Delete removes id; an absent id is not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	ctx, cancel := c.begin(ctx)
	defer cancel()
	if err := c.ensure(ctx); err != nil {
		return err
	}
	err := c.w.WithContext(ctx).Table(c.table).Where("id = ?", id).Delete(&documentRow{}).Error
	return translateError("delete "+c.table, err)
}

// InsertMany inserts all records in one transaction, so either every record
// lands or none does.
func (c *Collection) InsertMany(ctx context.Context, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := c.begin(ctx)
	defer cancel()
	if err := c.ensure(ctx); err != nil {
		return err
	}
	rows := make([]documentRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, toRow(rec))
	}
	err := c.w.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(c.table).CreateInBatches(&rows, insertBatchSize).Error
	})
	return translateError("insert many "+c.table, err)
}

func (c *Collection) Insert(ctx context.Context, rec domain.Record) error {
	ctx, cancel := c.begin(ctx)
	defer cancel()
	if err := c.ensure(ctx); err != nil {
		return err
	}
	row := toRow(rec)
	err := c.w.WithContext(ctx).Table(c.table).Create(&row).Error
	return translateError("insert "+c.table, err)
}

func (c *Collection) Count(ctx context.Context) (int64, error) {
	ctx, cancel := c.begin(ctx)
	defer cancel()
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	var n int64
	if err := c.r.WithContext(ctx).Table(c.table).Count(&n).Error; err != nil {
		return 0, translateError("count "+c.table, err)
	}
	return n, nil
}

func (c *Collection) DeleteAll(ctx context.Context) error {
	ctx, cancel := c.begin(ctx)
	defer cancel()
	if err := c.ensure(ctx); err != nil {
		return err
	}
	err := c.w.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Table(c.table).Delete(&documentRow{}).Error
	return translateError("delete all "+c.table, err)
}

// List returns every mirrored record ordered by id.
func (c *Collection) List(ctx context.Context) ([]domain.Record, error) {
	ctx, cancel := c.begin(ctx)
	defer cancel()
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	var rows []documentRow
	if err := c.r.WithContext(ctx).Table(c.table).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translateError("list "+c.table, err)
	}
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Record{ID: row.ID, Data: json.RawMessage(row.Data)})
	}
	return out, nil
}

func (c *Collection) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func toRow(rec domain.Record) documentRow {
	return documentRow{ID: rec.ID, Data: string(rec.Data), MirroredAt: time.Now().UTC()}
}
