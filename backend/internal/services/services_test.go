package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskledger/backend/internal/cache"
	"taskledger/backend/internal/database"
	"taskledger/backend/internal/repositories"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

const (
	today     = "2024-06-15"
	yesterday = "2024-06-14"
	nextWeek  = "2024-06-22"
)

func fixedClock() time.Time { return fixedNow }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       database.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "services.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	cfg := repositories.DefaultMigrationConfig()
	cfg.RetryDelay = 0
	require.NoError(t, repositories.RunMigrations(pool.DB, cfg))
	return pool.DB
}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:     "test-secret",
		Issuer:     "task-ledger-test",
		Audience:   "task-ledger-users",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

// testEnv wires every service against one database, the way main does.
type testEnv struct {
	db       *gorm.DB
	register *RegisterServiceImpl
	auth     *AuthServiceImpl
	tasks    *TaskServiceImpl
	gate     *AccessGateImpl
	tokens   *TokenManager
	revoked  *RevocationList
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	store := cache.NewMemoryCache()
	t.Cleanup(func() { store.Close() })

	hasher := NewPasswordHasher(bcrypt.MinCost)
	tokens := NewTokenManager(testTokenConfig())
	revoked := NewRevocationList(store)

	return &testEnv{
		db:       db,
		register: NewRegisterService(db, hasher),
		auth:     NewAuthService(db, hasher, tokens, revoked),
		tasks:    NewTaskService(db).WithClock(fixedClock),
		gate:     NewAccessGate(tokens, revoked),
		tokens:   tokens,
		revoked:  revoked,
	}
}

// loginAs registers username and returns its access credential.
func (e *testEnv) loginAs(t *testing.T, username string) (*TokenPair, *Identity) {
	t.Helper()
	ctx := context.Background()

	user, err := e.register.RegisterUser(ctx, username, "password-"+username)
	require.NoError(t, err)

	pair, err := e.auth.GenerateToken(ctx, user.ID)
	require.NoError(t, err)

	identity, err := e.gate.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.UserID)
	return pair, identity
}

func validInput(title string) TaskInput {
	return TaskInput{
		Title:       title,
		Description: "desc",
		Priority:    3,
		DueDate:     nextWeek,
	}
}
