package services

import (
	"context"
	"time"

	"taskledger/backend/internal/cache"

	"github.com/gofrs/uuid"
)

// RevocationList remembers access tokens that were logged out before they
// expired. Entries live exactly as long as the token would have.
type RevocationList struct {
	store cache.Cache
	now   func() time.Time
}

func NewRevocationList(store cache.Cache) *RevocationList {
	return &RevocationList{store: store, now: time.Now}
}

func revocationKey(jti uuid.UUID) string {
	return "revoked:" + jti.String()
}

func (r *RevocationList) Revoke(ctx context.Context, jti uuid.UUID, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.store.Set(ctx, revocationKey(jti), "1", ttl)
}

func (r *RevocationList) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	return r.store.Exists(ctx, revocationKey(jti))
}
