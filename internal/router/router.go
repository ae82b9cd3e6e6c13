// Package router registers the HTTP API routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/handler"
	"github.com/iliyamo/student-stay/internal/middleware"
)

// Handlers is everything the API serves. Any nil handler leaves its routes
// unregistered.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Me       *handler.MeHandler
	Catalog  *handler.CatalogHandler
	Listings *handler.ListingHandler
	Inquiry  *handler.InquiryHandler
	Blog     *handler.BlogHandler
	Uploads  *handler.UploadHandler
}

// Middleware groups the optional cross-cutting middleware. Nil entries are
// skipped.
type Middleware struct {
	RateLimit           echo.MiddlewareFunc
	OTPRateLimit        echo.MiddlewareFunc
	OTPConfirmRateLimit echo.MiddlewareFunc
	Cache               echo.MiddlewareFunc
}

func use(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Register mounts every route on e.
func Register(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	if h.Health != nil {
		e.GET("/healthz", h.Health.Health)
	}

	v1 := e.Group("/v1", use(mw.RateLimit)...)
	jwt := middleware.JWTAuth(jwtSecret)
	admin := v1.Group("/admin", jwt, middleware.RequireAdmin())

	if a := h.Auth; a != nil {
		g := v1.Group("/auth")
		g.POST("/signup", a.Signup)
		g.POST("/login", a.Login)
		g.POST("/federated", a.Federated)
		g.POST("/otp", a.RequestOtp, use(mw.OTPRateLimit)...)
		g.POST("/otp/confirm", a.ConfirmOtp, use(mw.OTPConfirmRateLimit)...)
		g.POST("/refresh", a.Refresh)
		g.POST("/logout", a.Logout, jwt)
	}

	if m := h.Me; m != nil {
		v1.GET("/me", m.Get, jwt)
		v1.PATCH("/me", m.UpdateProfile, jwt)
		v1.GET("/me/saved", m.Saved, jwt)
		v1.PUT("/me/saved/:id", m.Save, jwt)
		v1.DELETE("/me/saved/:id", m.Unsave, jwt)
		v1.GET("/me/filters", m.GetFilters, jwt)
		v1.PUT("/me/filters", m.PutFilters, jwt)
		v1.DELETE("/me/filters", m.DeleteFilters, jwt)
	}

	cached := use(mw.Cache)
	if c := h.Catalog; c != nil {
		v1.GET("/accommodations", c.List, cached...)
		v1.GET("/accommodations/:id", c.Get, cached...)
		v1.GET("/colleges", c.Colleges, cached...)
	}

	if l := h.Listings; l != nil {
		v1.GET("/listings", l.Approved, cached...)
		v1.POST("/listings", l.Submit, jwt)
		admin.GET("/listings", l.Pending)
		admin.POST("/listings/:id/approve", l.Approve)
		admin.POST("/listings/:id/reject", l.Reject)
	}

	if i := h.Inquiry; i != nil {
		v1.POST("/inquiries", i.Create, jwt)
		admin.GET("/inquiries", i.List)
	}

	if b := h.Blog; b != nil {
		v1.GET("/blog", b.List, cached...)
		v1.GET("/blog/:slug", b.Get, cached...)
		admin.POST("/blog", b.Create)
	}

	if u := h.Uploads; u != nil {
		v1.POST("/uploads", u.Upload, jwt)
		v1.GET("/files/:id", u.Download)
	}
}
