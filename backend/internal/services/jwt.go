package services

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenClaims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

type IssuedToken struct {
	Token     string
	JTI       uuid.UUID
	ExpiresAt time.Time
}

// TokenManager signs and verifies HS256 bearer credentials.
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{
		config: config,
		now:    time.Now,
	}
}

func (m *TokenManager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

func (m *TokenManager) Issue(userID uuid.UUID, tokenType string) (*IssuedToken, error) {
	ttl := m.config.AccessTTL
	if tokenType == TokenTypeRefresh {
		ttl = m.config.RefreshTTL
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate jti: %w", err)
	}

	now := m.now()
	expiresAt := now.Add(ttl)
	claims := TokenClaims{
		UserID:    userID.String(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   userID.String(),
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, issuer, audience, lifetime and token type. Every
// failure is reported as ErrInvalidCredential.
func (m *TokenManager) Verify(tokenString, tokenType string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidCredential, tokenType)
	}
	if _, err := uuid.FromString(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: bad user_id", ErrInvalidCredential)
	}
	if _, err := uuid.FromString(claims.ID); err != nil {
		return nil, fmt.Errorf("%w: bad jti", ErrInvalidCredential)
	}
	return claims, nil
}
