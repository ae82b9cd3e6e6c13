package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/utils"
)

// RequireAdmin lets the request through only for tokens carrying the
// administrator flag and role. It must run after JWTAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ctxRole).(string)
			if !IsAdmin(c) || role != utils.RoleAdmin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "authorization", "message": "admin access required"})
			}
			return next(c)
		}
	}
}
