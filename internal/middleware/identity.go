package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	ctxAccountID = "account_id"
	ctxRole      = "role"
	ctxAdmin     = "is_admin"
)

// AccountID returns the authenticated account id, or "" for anonymous
// requests.
func AccountID(c echo.Context) string {
	s, _ := c.Get(ctxAccountID).(string)
	return s
}

// IsAdmin reports whether the token carried the administrator flag.
func IsAdmin(c echo.Context) bool {
	b, _ := c.Get(ctxAdmin).(bool)
	return b
}

// rateIdentity is the user part of rate-limit keys.
func rateIdentity(c echo.Context) string {
	if id := AccountID(c); id != "" {
		return id
	}
	return "anon"
}
