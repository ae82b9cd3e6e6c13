// Package middleware holds the Echo middleware of the HTTP service:
// authentication, admin gating, response caching and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/utils"
)

// JWTAuth rejects requests without a valid bearer access token and stores
// the account id, role and admin flag in the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication", "message": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication", "message": "invalid or expired token"})
			}
			c.Set(ctxAccountID, claims.Subject)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxAdmin, claims.Admin)
			return next(c)
		}
	}
}
