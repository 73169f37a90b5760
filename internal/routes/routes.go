package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/tododeck/tododeck-backend/internal/config"
	"github.com/tododeck/tododeck-backend/internal/handlers"
	"github.com/tododeck/tododeck-backend/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	todoHandler *handlers.TodoHandler,
	healthHandler *handlers.HealthHandler,
	adminHandler *handlers.AdminHandler,
) {
	api := app.Group("/api/v1")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Public auth endpoints get a stricter request limiter on top of the
	// failed-attempt guard inside the login handler: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)
	api.Post("/auth/logout-all", middleware.JWTProtected(cfg), authHandler.LogoutAll)

	// Users
	api.Get("/users/me", middleware.JWTProtected(cfg), userHandler.Me)
	api.Patch("/users/me", middleware.JWTProtected(cfg), userHandler.UpdateMe)
	api.Delete("/users/me", middleware.JWTProtected(cfg), userHandler.DeleteMe)
	api.Post("/users/me/avatar", middleware.JWTProtected(cfg), userHandler.UploadAvatar)
	api.Get("/users/avatar/:filename", userHandler.GetAvatar)

	// Todos (JWT required)
	todos := api.Group("/todos", middleware.JWTProtected(cfg))
	todos.Post("", todoHandler.Create)
	todos.Get("", todoHandler.List)
	todos.Get("/:id", todoHandler.Get)
	todos.Patch("/:id", todoHandler.Update)
	todos.Delete("/:id", todoHandler.Delete)
	todos.Post("/:id/toggle", todoHandler.Toggle)

	// Admin maintenance
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Post("/tokens/sweep", adminHandler.SweepTokens)
}
