package services

import (
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// Identity is what the access gate learns from a verified credential.
type Identity struct {
	UserID    uuid.UUID
	TokenID   uuid.UUID
	ExpiresAt time.Time
}

type AccessGate interface {
	Authenticate(ctx context.Context, credential string) (*Identity, error)
}

type AccessGateImpl struct {
	tokens  *TokenManager
	revoked *RevocationList
}

// NewAccessGate builds a gate; revoked may be nil to skip revocation checks.
func NewAccessGate(tokens *TokenManager, revoked *RevocationList) *AccessGateImpl {
	return &AccessGateImpl{tokens: tokens, revoked: revoked}
}

// Authenticate resolves a bearer credential to the user it was issued for.
// It fails with ErrUnauthenticated when credential is empty and with
// ErrInvalidCredential when it cannot be verified.
func (g *AccessGateImpl) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := g.tokens.Verify(credential, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		UserID:  uuid.FromStringOrNil(claims.UserID),
		TokenID: uuid.FromStringOrNil(claims.ID),
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(ctx, identity.TokenID)
		if err != nil {
			return nil, storageError("check token revocation", err)
		}
		if revoked {
			return nil, ErrInvalidCredential
		}
	}

	return identity, nil
}
