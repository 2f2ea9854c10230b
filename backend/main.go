package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskledger/backend/internal/cache"
	"taskledger/backend/internal/config"
	"taskledger/backend/internal/database"
	"taskledger/backend/internal/handlers"
	"taskledger/backend/internal/middleware"
	"taskledger/backend/internal/monitoring"
	"taskledger/backend/internal/repositories"
	"taskledger/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Application holds all application dependencies and state
type Application struct {
	Config *config.Config
	Pool   *database.DatabasePool
	Redis  *redis.Client
	// Revocations backs the access-token revocation list: memory in front
	// of redis when reachable, process memory alone otherwise.
	Revocations cache.Cache
	Router      *gin.Engine
	Server      *http.Server
	// LoginBreaker guards redis calls of the login limiter; nil without redis.
	LoginBreaker *middleware.CircuitBreaker

	// Services
	Gate            services.AccessGate
	TaskService     services.TaskService
	AuthService     services.AuthService
	RegisterService services.RegisterService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrateCommand(cfg, os.Args[2:]); err != nil {
			log.Fatalf("❌ Migration command failed: %v", err)
		}
		return
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startServer()
}

func migrationConfig(cfg *config.Config) *repositories.MigrationConfig {
	return &repositories.MigrationConfig{
		Driver:     cfg.Database.Driver,
		DBName:     cfg.Database.Name,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// runMigrateCommand handles "migrate up|down|version" without starting the server.
func runMigrateCommand(cfg *config.Config, args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        database.ParseLogLevel(cfg.Database.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	switch action {
	case "up":
		return repositories.RunMigrations(pool.DB, migrationConfig(cfg))
	case "down":
		return repositories.RollbackMigration(pool.DB, migrationConfig(cfg))
	case "version":
		version, dirty, err := repositories.GetMigrationVersion(pool.DB, migrationConfig(cfg))
		if err != nil {
			return err
		}
		log.Printf("📋 Migration version: %d (dirty: %v)", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or version)", action)
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() || strings.EqualFold(cfg.Log.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("⚠️  Unknown log level %q, using info", cfg.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	log.Println("🚀 Initializing Task Ledger Backend...")
	log.Printf("📋 Environment: %s", cfg.Server.Environment)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        database.ParseLogLevel(cfg.Database.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.Pool = pool
	log.Printf("✅ Database connected (%s)", pool.Driver())

	if err := repositories.RunMigrations(pool.DB, migrationConfig(cfg)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	app.connectRedis()

	if app.Redis != nil {
		app.Revocations = cache.NewMultiLevelCache(cache.NewMemoryCache(), cache.NewRedisCache(app.Redis, "taskledger:"))
		log.Println("✅ Token revocation list stored in Redis (memory L1)")
	} else {
		app.Revocations = cache.NewMemoryCache()
		log.Println("✅ Token revocation list stored in memory (single instance only)")
	}

	hasher := services.NewPasswordHasher(cfg.JWT.BcryptCost)
	tokens := services.NewTokenManager(services.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
	})
	revoked := services.NewRevocationList(app.Revocations)

	app.Gate = services.NewAccessGate(tokens, revoked)
	app.AuthService = services.NewAuthService(pool.DB, hasher, tokens, revoked)
	app.RegisterService = services.NewRegisterService(pool.DB, hasher)
	app.TaskService = services.NewTaskService(pool.DB)

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return pool.Health()
	})
	monitoring.RegisterOptionalHealthCheck("revocation_store", app.Revocations.Health)

	log.Println("✅ All services initialized")

	return app, nil
}

func (app *Application) connectRedis() {
	cfg := app.Config
	if !cfg.Redis.Enabled {
		log.Println("ℹ️  Redis disabled by configuration")
		return
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Redis unavailable: %v (continuing with in-memory fallbacks)", err)
		redisClient.Close()
		return
	}
	app.Redis = redisClient
	log.Println("✅ Redis connected")
}

func (app *Application) loginLimiter() gin.HandlerFunc {
	perMin := app.Config.RateLimit.LoginPerMin

	if app.Redis != nil {
		app.LoginBreaker = middleware.NewCircuitBreaker(5, 30*time.Second)
		limiter := middleware.NewDistributedRateLimiter(app.Redis, app.LoginBreaker)
		return limiter.CreateMiddleware("auth", &middleware.RateLimit{
			Rate:    perMin,
			Window:  time.Minute,
			KeyFunc: middleware.IPKeyFunc,
		})
	}

	burst := perMin / 4
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiter(rate.Limit(float64(perMin)/60.0), burst)
}

func (app *Application) setupRoutes() {
	r := gin.New()

	// Global middleware stack (order matters!)
	r.Use(gin.Logger())
	r.Use(monitoring.MetricsMiddleware())
	r.Use(middleware.RecoveryWithLog())
	r.Use(middleware.SecureHeader())

	rateLimit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
	r.Use(middleware.RateLimiter(rateLimit, app.Config.RateLimit.BurstSize))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.Config.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and monitoring endpoints (no auth required)
	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())

	loginLimiter := app.loginLimiter()

	sections := []func() (string, interface{}){
		func() (string, interface{}) { return "database", app.Pool.Stats() },
		func() (string, interface{}) { return "revocation_store", app.Revocations.Stats() },
	}
	if app.LoginBreaker != nil {
		sections = append(sections, func() (string, interface{}) {
			return "login_limiter", gin.H{"breaker": app.LoginBreaker.State()}
		})
	}
	r.GET("/metrics", monitoring.MetricsHandler(sections...))

	handlers.RegisterRoutes(r, handlers.Dependencies{
		Gate:            app.Gate,
		AuthService:     app.AuthService,
		RegisterService: app.RegisterService,
		TaskService:     app.TaskService,
		LoginLimiter:    loginLimiter,
	})

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}

		app.cleanup()
		log.Println("✅ Server stopped gracefully")
	}()

	log.Printf("🚀 Server starting on %s", addr)
	log.Printf("📊 Metrics available at http://%s/metrics", addr)
	log.Printf("💚 Health check at http://%s/health", addr)

	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
	<-stopped
}

func (app *Application) cleanup() {
	log.Println("🧹 Cleaning up resources...")

	if app.Revocations != nil {
		if err := app.Revocations.Close(); err != nil {
			log.Printf("⚠️  Error closing revocation store: %v", err)
		}
	}

	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.Printf("⚠️  Error closing Redis: %v", err)
		}
	}

	if app.Pool != nil {
		if err := app.Pool.Close(); err != nil {
			log.Printf("⚠️  Error closing database: %v", err)
		}
	}

	log.Println("✅ Cleanup complete")
}
