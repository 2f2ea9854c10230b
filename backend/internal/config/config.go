package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskledger/backend/internal/utils"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver          string
	DSN             string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        string
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type JWTConfig struct {
	Secret          string
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

type RateLimitConfig struct {
	RequestsPerMin int
	BurstSize      int
	LoginPerMin    int
}

type CORSConfig struct {
	AllowOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

const defaultJWTSecret = "default_secret_change_in_production"

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         utils.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:         utils.GetEnvAsInt("SERVER_PORT", 5001),
			Environment:  utils.GetEnv("APP_ENV", "development"),
			ReadTimeout:  utils.GetEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: utils.GetEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  utils.GetEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(utils.GetEnv("DB_DRIVER", "sqlite")),
			DSN:             utils.GetEnv("DB_DSN", "tasks.db"),
			Name:            utils.GetEnv("DB_NAME", "task_ledger"),
			MaxOpenConns:    utils.GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    utils.GetEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: utils.GetEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: utils.GetEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			LogLevel:        utils.GetEnv("DB_LOG_LEVEL", "warn"),
		},
		Redis: RedisConfig{
			Enabled:      utils.GetEnvAsBool("REDIS_ENABLED", true),
			Host:         utils.GetEnv("REDIS_HOST", "localhost"),
			Port:         utils.GetEnvAsInt("REDIS_PORT", 6379),
			Password:     utils.GetEnv("REDIS_PASSWORD", ""),
			DB:           utils.GetEnvAsInt("REDIS_DB", 0),
			PoolSize:     utils.GetEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: utils.GetEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:   utils.GetEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  utils.GetEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  utils.GetEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: utils.GetEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		JWT: JWTConfig{
			Secret:          utils.GetEnv("JWT_SECRET", defaultJWTSecret),
			Issuer:          utils.GetEnv("JWT_ISSUER", "task-ledger-backend"),
			Audience:        utils.GetEnv("JWT_AUDIENCE", "task-ledger-users"),
			AccessTokenTTL:  utils.GetEnvAsDuration("JWT_ACCESS_TTL", time.Hour),
			RefreshTokenTTL: utils.GetEnvAsDuration("JWT_REFRESH_TTL", 24*time.Hour),
			BcryptCost:      utils.GetEnvAsInt("BCRYPT_COST", 10),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: utils.GetEnvAsInt("RATE_LIMIT_PER_MIN", 600),
			BurstSize:      utils.GetEnvAsInt("RATE_LIMIT_BURST", 50),
			LoginPerMin:    utils.GetEnvAsInt("LOGIN_RATE_LIMIT_PER_MIN", 20),
		},
		CORS: CORSConfig{
			AllowOrigins: utils.GetEnvAsSlice("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		},
		Log: LogConfig{
			Level:  utils.GetEnv("LOG_LEVEL", "info"),
			Format: utils.GetEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("DB_DSN must not be empty")
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		return errors.New("JWT token lifetimes must be positive")
	}
	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.RateLimit.RequestsPerMin <= 0 || c.RateLimit.BurstSize <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
