package domain

import "time"

// APIKey is an admin API credential. The token itself is never stored; keys
// are looked up by the sha256 of the presented token.
type APIKey struct {
	TokenHash string
	Name      string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the key was withdrawn. Bootstrapping the same
// token again clears it.
func (k APIKey) Revoked() bool { return k.RevokedAt != nil }
