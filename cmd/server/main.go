package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"github.com/tododeck/tododeck-backend/internal/config"
	"github.com/tododeck/tododeck-backend/internal/database"
	"github.com/tododeck/tododeck-backend/internal/handlers"
	"github.com/tododeck/tododeck-backend/internal/logging"
	"github.com/tododeck/tododeck-backend/internal/middleware"
	"github.com/tododeck/tododeck-backend/internal/ratelimit"
	"github.com/tododeck/tododeck-backend/internal/routes"
	"github.com/tododeck/tododeck-backend/internal/services"
	"github.com/tododeck/tododeck-backend/internal/storage"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.LevelFromEnv()}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Avatar storage
	avatars, err := storage.NewAvatarStore(cfg.UploadDir, cfg.MaxAvatarSize)
	if err != nil {
		slog.Error("failed to init avatar storage", "error", err)
		os.Exit(1)
	}

	// Failed-login limiter: in-memory by default, Redis when configured
	policy := ratelimit.Policy{
		MaxAttempts: cfg.RateLimitMaxAttempts,
		Window:      cfg.RateLimitWindow,
		Block:       cfg.RateLimitBlock,
	}
	var loginLimiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		loginLimiter = ratelimit.NewRedisLimiter(client, policy)
		slog.Info("login limiter using redis", "addr", cfg.RedisAddr)
	} else {
		loginLimiter = ratelimit.NewMemoryLimiter(policy)
	}

	// Services
	tokenService := services.NewTokenService(database.DB, cfg)
	authService := services.NewAuthService(database.DB, cfg, tokenService)
	userService := services.NewUserService(database.DB)
	todoService := services.NewTodoService(database.DB)

	// Hourly sweep of expired refresh tokens
	sweeperDone := make(chan struct{})
	tokenService.StartSweeper(sweeperDone)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, tokenService, loginLimiter)
	userHandler := handlers.NewUserHandler(userService, tokenService, avatars)
	todoHandler := handlers.NewTodoHandler(todoService)
	healthHandler := handlers.NewHealthHandler()
	adminHandler := handlers.NewAdminHandler(tokenService)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    8 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB, authHandler, userHandler, todoHandler, healthHandler, adminHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	close(sweeperDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
