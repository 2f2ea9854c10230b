package services

import (
	"context"
	"errors"
	"time"

	"taskledger/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type RegistrationRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterService interface {
	RegisterUser(ctx context.Context, username, password string) (*models.User, error)
}

type RegisterServiceImpl struct {
	db     *gorm.DB
	hasher *PasswordHasher
}

func NewRegisterService(db *gorm.DB, hasher *PasswordHasher) *RegisterServiceImpl {
	return &RegisterServiceImpl{db: db, hasher: hasher}
}

func (s *RegisterServiceImpl) RegisterUser(ctx context.Context, username, password string) (*models.User, error) {
	username, err := validateCredentials(username, password)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageError("lookup username", err)
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := models.User{
		ID:           uuid.Must(uuid.NewV4()),
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The pre-check above races with concurrent registrations; the unique
	// index on username settles it.
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, storageError("create user", err)
	}

	return &user, nil
}
