package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

type APIKeyRepository interface {
	ByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error)
	// Save inserts key, or renames and un-revokes an existing key with the
	// same token hash.
	Save(ctx context.Context, key domain.APIKey) error
	// RevokeByName revokes every live key carrying name and reports how many
	// were affected.
	RevokeByName(ctx context.Context, name string, at time.Time) (int64, error)
}
