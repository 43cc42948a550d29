package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
)

// keyRow is never registered as a shape, so key changes stay on the primary.
type keyRow struct {
	TokenHash string     `gorm:"column:token_hash;primaryKey"`
	Name      string     `gorm:"column:name;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
}

func (keyRow) TableName() string { return "api_keys" }

func (r keyRow) toDomain() domain.APIKey {
	return domain.APIKey{TokenHash: r.TokenHash, Name: r.Name, CreatedAt: r.CreatedAt, RevokedAt: r.RevokedAt}
}

type APIKeyRepository struct {
	db *gormsqlite.DB
}

var _ ports.APIKeyRepository = (*APIKeyRepository)(nil)

func NewAPIKeyRepository(db *gormsqlite.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) ByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error) {
	var row keyRow
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Take(&row, "token_hash = ?", tokenHash).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.APIKey{}, domain.ErrNotFound
	case err != nil:
		return domain.APIKey{}, fmt.Errorf("load api key: %w", err)
	}
	return row.toDomain(), nil
}

func (r *APIKeyRepository) Save(ctx context.Context, key domain.APIKey) error {
	row := keyRow{TokenHash: key.TokenHash, Name: key.Name, CreatedAt: key.CreatedAt.UTC(), RevokedAt: key.RevokedAt}
	err := r.db.W.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_hash"}},
		DoUpdates: clause.Assignments(map[string]any{"name": key.Name, "revoked_at": key.RevokedAt}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save api key %q: %w", key.Name, translateError(err))
	}
	return nil
}

func (r *APIKeyRepository) RevokeByName(ctx context.Context, name string, at time.Time) (int64, error) {
	res := r.db.W.WithContext(ctx).Model(&keyRow{}).
		Where("name = ? AND revoked_at IS NULL", name).
		Update("revoked_at", at.UTC())
	if res.Error != nil {
		return 0, fmt.Errorf("revoke api key %q: %w", name, res.Error)
	}
	return res.RowsAffected, nil
}
