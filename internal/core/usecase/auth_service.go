package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
)

var ErrUnauthorized = errors.New("unauthorized")

// AuthService guards the admin API. Only token hashes are stored.
type AuthService struct {
	repo ports.APIKeyRepository
}

func NewAuthService(repo ports.APIKeyRepository) *AuthService {
	return &AuthService{repo: repo}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, ErrUnauthorized
	}

	apiKey, err := s.repo.ByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.APIKey{}, ErrUnauthorized
		}
		return domain.APIKey{}, err
	}
	if apiKey.Revoked() {
		return domain.APIKey{}, ErrUnauthorized
	}
	return apiKey, nil
}

// Bootstrap stores a key for token under name. Calling it again with the
// same token un-revokes the key.
func (s *AuthService) Bootstrap(ctx context.Context, name, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("bootstrap token is empty")
	}
	if name == "" {
		name = "bootstrap"
	}
	return s.repo.Save(ctx, domain.APIKey{
		TokenHash: HashToken(token),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
}

// Revoke withdraws every live key named name. It reports false when there
// was nothing to revoke.
func (s *AuthService) Revoke(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("%w: key name is required", domain.ErrInvalidData)
	}
	n, err := s.repo.RevokeByName(ctx, name, time.Now())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
