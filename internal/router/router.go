package router // package router registers the HTTP routes

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/receipt-printer/internal/handler"
)

// Handlers bundles the admin-side handlers.
type Handlers struct {
	Print    *handler.PrintHandler
	Admin    *handler.AdminGuestHandler
	Settings *handler.SettingsHandler
	Session  *handler.SessionHandler
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, info echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	e.GET("/_health", handler.LegacyHealth)
	e.GET("/", info)
}

// RegisterAdmin registers print, settings and guest management behind
// adminAuth, plus the login/logout endpoints that issue the cookie.
func RegisterAdmin(e *echo.Echo, h Handlers, adminAuth echo.MiddlewareFunc) {
	e.POST("/ui/login", h.Session.Login)
	e.GET("/ui/logout", h.Session.Logout)

	// /print predates the /api prefix and is kept for existing clients
	e.POST("/print", h.Print.Template, adminAuth)

	api := e.Group("/api", adminAuth)
	api.POST("/print/template", h.Print.Template)
	api.POST("/print/raw", h.Print.Raw)
	api.POST("/print/image", h.Print.Image)

	api.GET("/settings", h.Settings.Get)
	api.PUT("/settings", h.Settings.Put)
	api.POST("/settings/test", h.Settings.Test)

	api.GET("/guests", h.Admin.List)
	api.POST("/guests", h.Admin.Create)
	api.POST("/guests/:token/revoke", h.Admin.Revoke)
}

// RegisterGuest registers the public guest link routes behind limiter.
func RegisterGuest(e *echo.Echo, g *handler.GuestHandler, limiter echo.MiddlewareFunc) {
	grp := e.Group("/guest/:token", limiter)
	grp.GET("", g.Show)
	grp.POST("/print/template", g.Template)
	grp.POST("/print/raw", g.Raw)
	grp.POST("/print/image", g.Image)
}
