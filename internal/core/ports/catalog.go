package ports

import (
	"context"
	"encoding/json"
)

type CatalogRepository interface {
	Create(ctx context.Context, kind string, data json.RawMessage) (any, error)
	Update(ctx context.Context, kind, id string, data json.RawMessage) (any, error)
	Delete(ctx context.Context, kind, id string) (bool, error)
	Get(ctx context.Context, kind, id string) (any, error)
	List(ctx context.Context, kind string, limit int) (any, error)
}
