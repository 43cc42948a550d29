package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/catalog"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// CatalogRepository persists catalog entities through their gorm models.
// Writes go straight to the write pool without an enclosing transaction so
// the mirror callbacks observe the commit of each statement.
type CatalogRepository struct {
	db *gormsqlite.DB
}

func NewCatalogRepository(db *gormsqlite.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Create(ctx context.Context, kind string, data json.RawMessage) (any, error) {
	model, err := newModel(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidData, err)
	}
	if id := model.GetID(); id != "" {
		if err := domain.ValidateID(id); err != nil {
			return nil, err
		}
	}
	if err := r.db.W.WithContext(ctx).Create(model).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, translateError(err))
	}
	return model, nil
}

func (r *CatalogRepository) Update(ctx context.Context, kind, id string, data json.RawMessage) (any, error) {
	model, err := newModel(kind)
	if err != nil {
		return nil, err
	}
	if err := r.db.W.WithContext(ctx).Where("id = ?", id).First(model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidData, err)
	}
	// The identifier is immutable; a body carrying another id is ignored.
	model.SetID(id)
	if err := r.db.W.WithContext(ctx).Save(model).Error; err != nil {
		return nil, fmt.Errorf("update %s: %w", kind, translateError(err))
	}
	return model, nil
}

func (r *CatalogRepository) Delete(ctx context.Context, kind, id string) (bool, error) {
	model, err := newModel(kind)
	if err != nil {
		return false, err
	}
	model.SetID(id)
	res := r.db.W.WithContext(ctx).Delete(model)
	if res.Error != nil {
		return false, fmt.Errorf("delete %s: %w", kind, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *CatalogRepository) Get(ctx context.Context, kind, id string) (any, error) {
	model, err := newModel(kind)
	if err != nil {
		return nil, err
	}
	err = r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return model, nil
}

func (r *CatalogRepository) List(ctx context.Context, kind string, limit int) (any, error) {
	k := catalog.Kind(kind)
	items, ok := catalog.NewSlice(k)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Table(k.Collection()).Order("created_at DESC, id ASC").Limit(limit).Find(items).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return items, nil
}

func newModel(kind string) (catalog.Entity, error) {
	model, ok := catalog.New(catalog.Kind(kind))
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	return model, nil
}
