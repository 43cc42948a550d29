package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

type stubCatalogRepo struct {
	createFn func(ctx context.Context, kind string, data json.RawMessage) (any, error)
	listFn   func(ctx context.Context, kind string, limit int) (any, error)
	deleted  []string
}

func (s *stubCatalogRepo) Create(ctx context.Context, kind string, data json.RawMessage) (any, error) {
	if s.createFn != nil {
		return s.createFn(ctx, kind, data)
	}
	return map[string]any{"kind": kind}, nil
}

func (s *stubCatalogRepo) Update(_ context.Context, kind, id string, _ json.RawMessage) (any, error) {
	return map[string]any{"kind": kind, "id": id}, nil
}

func (s *stubCatalogRepo) Delete(_ context.Context, _ string, id string) (bool, error) {
	s.deleted = append(s.deleted, id)
	return true, nil
}

func (s *stubCatalogRepo) Get(_ context.Context, _ string, _ string) (any, error) {
	return nil, domain.ErrNotFound
}

func (s *stubCatalogRepo) List(ctx context.Context, kind string, limit int) (any, error) {
	if s.listFn != nil {
		return s.listFn(ctx, kind, limit)
	}
	return []any{}, nil
}

func TestCatalogServiceRejectsUnknownKind(t *testing.T) {
	svc := NewCatalogService(&stubCatalogRepo{}, []string{"products"})
	if _, err := svc.Create(context.Background(), "orders", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "", "1"); !errors.Is(err, domain.ErrInvalidKind) {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}

func TestCatalogServiceValidatesInput(t *testing.T) {
	repo := &stubCatalogRepo{}
	svc := NewCatalogService(repo, []string{"products"})
	ctx := context.Background()

	if _, err := svc.Create(ctx, "products", json.RawMessage(`[1,2]`)); !errors.Is(err, domain.ErrInvalidData) {
		t.Fatalf("expected invalid data, got %v", err)
	}
	if _, err := svc.Update(ctx, "products", "bad id", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
	if _, err := svc.Delete(ctx, "products", "../x"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatalf("repository must not be called for invalid input, got %v", repo.deleted)
	}
}

func TestCatalogServiceClampsListLimit(t *testing.T) {
	var got []int
	svc := NewCatalogService(&stubCatalogRepo{listFn: func(_ context.Context, _ string, limit int) (any, error) {
		got = append(got, limit)
		return nil, nil
	}}, []string{"products"})

	for _, limit := range []int{0, 25, 5000} {
		if _, err := svc.List(context.Background(), "products", limit); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if got[0] != defaultListLimit || got[1] != 25 || got[2] != maxListLimit {
		t.Fatalf("unexpected limits: %v", got)
	}
}
