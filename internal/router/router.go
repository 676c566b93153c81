// Package router maps the HTTP surface onto the handlers. Public catalog
// routes sit behind the Redis response cache, auth routes behind the rate
// limiter, and every admin group behind an explicit role guard.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/handler"
	"github.com/xbinlabs/mining-rental/internal/middleware"
	"github.com/xbinlabs/mining-rental/internal/model"
)

// Handlers bundles every handler the router wires up.
type Handlers struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Machines *handler.MachineHandler
	Bookings *handler.BookingUserHandler
	Admin    *handler.BookingAdminHandler
	Wallets  *handler.WalletHandler
	Contact  *handler.ContactHandler
	Legal    *handler.LegalHandler
}

// Middlewares carries the optional route-group middleware. A nil entry
// disables that concern.
type Middlewares struct {
	Cache     echo.MiddlewareFunc // response cache for public GETs
	RateLimit echo.MiddlewareFunc // token bucket for auth endpoints
}

// Register wires every route. The layout is /v1 prefixed throughout:
// public, then authenticated, then admin (role-guarded) groups.
func Register(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
	e.GET("/healthz", handler.Health)

	// ----- public -----
	pub := e.Group("/v1")
	if mw.Cache != nil {
		pub.Use(mw.Cache)
	}
	pub.GET("/machines", h.Machines.List)
	pub.GET("/machines/featured", h.Machines.Featured)
	pub.GET("/machines/:id", h.Machines.Get)
	pub.GET("/legal/:type", h.Legal.Get)

	e.POST("/v1/contact", h.Contact.Submit)

	// ----- auth (rate limited) -----
	auth := e.Group("/v1/auth")
	if mw.RateLimit != nil {
		auth.Use(mw.RateLimit)
	}
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/verify-reset-token", h.Auth.VerifyResetToken)
	auth.POST("/reset-password", h.Auth.ResetPassword)
	auth.POST("/verify-email", h.Auth.VerifyEmail)

	// ----- authenticated -----
	api := e.Group("/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	api.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))

	api.GET("/me", h.Auth.Me)
	api.POST("/auth/resend-verification", h.Auth.ResendVerification)
	api.PUT("/profile", h.Users.UpdateProfile)
	api.PUT("/profile/password", h.Users.ChangePassword)

	api.POST("/bookings", h.Bookings.Create)
	api.GET("/bookings", h.Bookings.List)
	api.GET("/bookings/unread-count", h.Bookings.UnreadCount)
	api.GET("/bookings/:id", h.Bookings.Get)
	api.POST("/bookings/:id/payment-sent", h.Bookings.MarkPaymentSent)
	api.POST("/bookings/:id/cancel", h.Bookings.Cancel)
	api.POST("/bookings/:id/messages", h.Bookings.SendMessage)
	api.GET("/bookings/:id/messages", h.Bookings.Messages)
	api.PUT("/bookings/:id/messages/mark-read", h.Bookings.MarkMessagesRead)

	api.GET("/wallets", h.Wallets.List)
	api.GET("/wallets/:cryptoType", h.Wallets.Get)
	api.PUT("/wallets/:cryptoType/address", h.Wallets.UpdateAddress)

	// ----- admin -----
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))

	admin.GET("/users", h.Users.List)
	admin.GET("/users/:id", h.Users.Get)
	admin.PUT("/users/:id/role", h.Users.SetRole)
	admin.PUT("/users/:id/active", h.Users.SetActive)

	admin.GET("/machines", h.Machines.ListAll)
	admin.POST("/machines", h.Machines.Create)
	admin.PUT("/machines/:id", h.Machines.Update)
	admin.DELETE("/machines/:id", h.Machines.Delete)
	admin.PUT("/machines/:id/status", h.Machines.SetStatus)
	admin.POST("/machines/:id/toggle-active", h.Machines.ToggleActive)
	admin.POST("/machines/:id/toggle-featured", h.Machines.ToggleFeatured)
	admin.POST("/machines/:id/image", h.Machines.UploadImage)

	admin.GET("/bookings", h.Admin.List)
	admin.GET("/bookings/statistics", h.Admin.Statistics)
	admin.GET("/bookings/unread-count", h.Admin.UnreadCount)
	admin.GET("/bookings/:id", h.Admin.Get)
	admin.POST("/bookings/:id/payment-address", h.Admin.SendPaymentAddress)
	admin.POST("/bookings/:id/approve", h.Admin.Approve)
	admin.POST("/bookings/:id/reject", h.Admin.Reject)
	admin.POST("/bookings/:id/messages", h.Admin.SendMessage)
	admin.GET("/bookings/:id/messages", h.Admin.Messages)
	admin.PUT("/bookings/:id/messages/mark-read", h.Admin.MarkMessagesRead)

	admin.POST("/wallets/:userId/:cryptoType/credit", h.Wallets.Credit)
	admin.POST("/wallets/:userId/:cryptoType/debit", h.Wallets.Debit)

	admin.GET("/contact", h.Contact.List)
	admin.GET("/contact/:id", h.Contact.Get)
	admin.PUT("/contact/:id/status", h.Contact.SetStatus)
	admin.DELETE("/contact/:id", h.Contact.Delete)

	admin.GET("/legal", h.Legal.List)
	admin.PUT("/legal/:type", h.Legal.Upsert)
	admin.DELETE("/legal/:type", h.Legal.Delete)
}
