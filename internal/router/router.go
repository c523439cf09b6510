// Package router wires HTTP routes to their handlers and middleware. Routes
// fall into four surfaces: public endpoints, session-authenticated user
// endpoints under /v1, moderation/admin endpoints gated by role, and the
// game-server plugin API under /plugin/v1 authenticated by api token.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/craft-community/internal/handler"
	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth  *handler.AuthHandler
	Apps  *handler.ApplicationHandler
	Trust *handler.TrustLevelHandler
	Rep   *handler.ReputationHandler
	Game  *handler.GameHandler
	Admin *handler.AdminHandler
}

// Auth bundles the middleware the route groups are built from. RateLimit is
// optional; when nil the abuse-prone public endpoints run unthrottled (the
// login and application handlers still enforce their own DB-backed limits).
type Auth struct {
	Session   echo.MiddlewareFunc
	ApiToken  echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// Register mounts every route on the Echo instance.
func Register(e *echo.Echo, h Handlers, a Auth) {
	e.GET("/healthz", handler.Health)

	// Public endpoints. Login and application submission are the abuse
	// surface, so the Redis token bucket goes in front of them.
	public := []echo.MiddlewareFunc{}
	if a.RateLimit != nil {
		public = append(public, a.RateLimit)
	}
	e.POST("/v1/auth/login", h.Auth.Login, public...)
	e.POST("/v1/applications", h.Apps.Submit, public...)
	e.GET("/v1/applications/status", h.Apps.Status)

	// Logout stays outside the session gate: it reads the bearer token
	// itself and deactivating an already-dead session is a 204, so a second
	// logout with the same token never errors.
	e.POST("/v1/auth/logout", h.Auth.Logout)

	// Session-authenticated user surface.
	v1 := e.Group("/v1", a.Session)
	v1.POST("/auth/logout-all", h.Auth.LogoutAll)
	v1.POST("/auth/change-password", h.Auth.ChangePassword)
	v1.POST("/auth/email/request-verification", h.Auth.RequestEmailVerification)
	v1.POST("/auth/email/verify", h.Auth.VerifyEmail)
	v1.GET("/me", h.Auth.Me)
	v1.GET("/me/stats", h.Game.MyStats)
	v1.POST("/game-tokens", h.Game.IssueToken)
	v1.GET("/trust-level/eligibility", h.Trust.Eligibility)
	v1.POST("/trust-level/applications", h.Trust.Apply)
	v1.GET("/users/:id/reputation", h.Rep.Record)
	v1.POST("/users/:id/reputation/votes", h.Rep.Vote)

	// Moderation surface: review queues, bans, reputation audit.
	mod := v1.Group("/moderation", middleware.RequireRole(model.RoleModerator, model.RoleAdmin))
	mod.GET("/applications", h.Apps.ListPending)
	mod.POST("/applications/:id/review", h.Apps.Review)
	mod.GET("/trust-level/applications", h.Trust.ListPending)
	mod.POST("/trust-level/applications/:id/review", h.Trust.Review)
	mod.GET("/users/:id/reputation/events", h.Rep.History)
	mod.POST("/users/:id/ban", h.Admin.Ban)
	mod.DELETE("/users/:id/ban", h.Admin.Unban)

	// Admin-only surface.
	admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.POST("/users", h.Admin.CreateUser)
	admin.PUT("/users/:id/trust-level", h.Trust.AdminSetLevel)
	admin.POST("/users/:id/reputation", h.Rep.AdminAdjust)
	admin.POST("/api-tokens", h.Admin.CreateApiToken)
	admin.DELETE("/api-tokens/:id", h.Admin.RevokeApiToken)

	// Game-server plugin surface, authenticated by api token.
	plugin := e.Group("/plugin/v1", a.ApiToken)
	plugin.POST("/game-tokens/verify", h.Game.VerifyToken)
	plugin.POST("/game-sessions", h.Game.CreateSession)
	plugin.POST("/game-sessions/check", h.Game.CheckSession)
	plugin.POST("/stats", h.Game.UpdateStats)
}
