package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/contested-app/contested/internal/config"
	"github.com/contested-app/contested/internal/handler"
	"github.com/contested-app/contested/internal/middleware"
	"github.com/contested-app/contested/internal/model"
)

// Handlers groups everything the router wires up.
type Handlers struct {
	Auth         *handler.AuthHandler
	Profile      *handler.ProfileHandler
	Session      *handler.SessionHandler
	Feedback     *handler.FeedbackHandler
	Subscription *handler.SubscriptionHandler
	Admin        *handler.AdminHandler
}

// Register wires every route of the API onto the provided Echo instance.
// The Redis client may be nil; rate limiting and response caching then
// disable themselves and routes run unprotected.
func Register(e *echo.Echo, cfg config.Config, h Handlers, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Credential endpoints are rate-limited to slow down guessing.
	auth := e.Group("/api/auth", limiter)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh-session", h.Auth.RefreshSession)
	// Logout works with either an access token or a refresh token in the
	// body, so it stays outside the JWT middleware.
	auth.POST("/logout", h.Auth.Logout)

	// Wizard scratch sessions are anonymous: the account does not exist
	// until the terminal step submits.
	e.GET("/api/session/new", h.Session.New, limiter)
	e.GET("/api/session/:id", h.Session.Get)
	e.POST("/api/session/:id/user-type", h.Session.SetUserType)

	// Public, cacheable catalog.
	e.GET("/api/plans", h.Subscription.Plans, cache)

	// Everything below requires a valid access token.
	api := e.Group("/api", middleware.JWTAuth(cfg.JWTSecret))

	api.GET("/auth/user", h.Auth.CurrentUser)

	profiles := api.Group("", middleware.RequireRole(
		model.RoleAthlete, model.RoleBusiness, model.RoleAdmin, model.RoleCompliance))
	profiles.GET("/profile", h.Profile.Get)
	profiles.POST("/profile", h.Profile.Create)
	profiles.PATCH("/profile", h.Profile.Patch)
	profiles.GET("/profile/detect-role", h.Profile.DetectRole)
	profiles.POST("/create-business-profile", h.Profile.CreateBusiness)
	profiles.POST("/profile/upload-image", h.Profile.UploadImage)
	profiles.DELETE("/profile/remove-image", h.Profile.RemoveImage)

	api.POST("/feedback", h.Feedback.Submit)
	api.POST("/subscription/confirm", h.Subscription.Confirm)

	admin := api.Group("/admin", middleware.RequireRole(model.RoleAdmin, model.RoleCompliance))
	admin.GET("/users", h.Admin.ListUsers)
	admin.GET("/feedback", h.Feedback.List)
}
