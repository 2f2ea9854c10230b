package services

import (
	"context"
	"errors"
	"time"

	"taskledger/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthService interface {
	LoginUser(ctx context.Context, username, password string) (*models.User, error)
	GenerateToken(ctx context.Context, userID uuid.UUID) (*TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeToken(ctx context.Context, refreshToken string, access *Identity) error
}

type AuthServiceImpl struct {
	db      *gorm.DB
	hasher  *PasswordHasher
	tokens  *TokenManager
	revoked *RevocationList
	now     func() time.Time
}

func NewAuthService(db *gorm.DB, hasher *PasswordHasher, tokens *TokenManager, revoked *RevocationList) *AuthServiceImpl {
	return &AuthServiceImpl{
		db:      db,
		hasher:  hasher,
		tokens:  tokens,
		revoked: revoked,
		now:     time.Now,
	}
}

// LoginUser does not reveal whether the username or the password was wrong.
func (s *AuthServiceImpl) LoginUser(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storageError("lookup user", err)
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *AuthServiceImpl) GenerateToken(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	return s.issuePair(s.db.WithContext(ctx), userID)
}

// issuePair signs a new access/refresh pair and records the refresh jti on db.
func (s *AuthServiceImpl) issuePair(db *gorm.DB, userID uuid.UUID) (*TokenPair, error) {
	access, err := s.tokens.Issue(userID, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(userID, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	record := models.RefreshToken{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    userID,
		JTI:       refresh.JTI,
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: s.now(),
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, storageError("create refresh token", err)
	}

	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// RefreshToken rotates a refresh credential: the presented one is consumed
// and a new pair is issued in the same transaction.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	userID := uuid.FromStringOrNil(claims.UserID)
	jti := uuid.FromStringOrNil(claims.ID)

	var pair *TokenPair
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("jti = ? AND user_id = ? AND expires_at > ?", jti, userID, s.now()).
			Delete(&models.RefreshToken{})
		if result.Error != nil {
			return storageError("consume refresh token", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidCredential
		}

		pair, err = s.issuePair(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// RevokeToken logs a session out. The refresh credential, when given, must
// belong to the same user as access.
func (s *AuthServiceImpl) RevokeToken(ctx context.Context, refreshToken string, access *Identity) error {
	if refreshToken != "" {
		claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
		if err != nil {
			return err
		}
		if access != nil && claims.UserID != access.UserID.String() {
			return ErrInvalidCredential
		}
		err = s.db.WithContext(ctx).
			Where("jti = ?", uuid.FromStringOrNil(claims.ID)).
			Delete(&models.RefreshToken{}).Error
		if err != nil {
			return storageError("delete refresh token", err)
		}
	}

	if access != nil && s.revoked != nil {
		if err := s.revoked.Revoke(ctx, access.TokenID, access.ExpiresAt); err != nil {
			return storageError("revoke access token", err)
		}
	}
	return nil
}
