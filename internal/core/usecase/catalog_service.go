package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// CatalogService is the back-office CRUD surface over the primary store.
// Mirroring happens underneath it; nothing here knows about the secondary.
type CatalogService struct {
	repo  ports.CatalogRepository
	kinds map[string]struct{}
}

func NewCatalogService(repo ports.CatalogRepository, kinds []string) *CatalogService {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return &CatalogService{repo: repo, kinds: set}
}

func (s *CatalogService) Create(ctx context.Context, kind string, data json.RawMessage) (any, error) {
	if err := s.checkKind(kind); err != nil {
		return nil, err
	}
	if err := validateObject(data); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, kind, data)
}

func (s *CatalogService) Update(ctx context.Context, kind, id string, data json.RawMessage) (any, error) {
	if err := s.checkKind(kind); err != nil {
		return nil, err
	}
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	if err := validateObject(data); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, kind, id, data)
}

func (s *CatalogService) Get(ctx context.Context, kind, id string) (any, error) {
	if err := s.checkKind(kind); err != nil {
		return nil, err
	}
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, kind, id)
}

func (s *CatalogService) Delete(ctx context.Context, kind, id string) (bool, error) {
	if err := s.checkKind(kind); err != nil {
		return false, err
	}
	if err := domain.ValidateID(id); err != nil {
		return false, err
	}
	return s.repo.Delete(ctx, kind, id)
}

func (s *CatalogService) List(ctx context.Context, kind string, limit int) (any, error) {
	if err := s.checkKind(kind); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, kind, limit)
}

func (s *CatalogService) checkKind(kind string) error {
	if kind == "" {
		return domain.ErrInvalidKind
	}
	if _, ok := s.kinds[kind]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	return nil
}

func validateObject(data json.RawMessage) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return fmt.Errorf("%w: body must be a json object", domain.ErrInvalidData)
	}
	return nil
}
