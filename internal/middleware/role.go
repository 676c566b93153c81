package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/response"
)

// RequireRole enforces that the authenticated user carries one of the given
// roles in its JWT "role" claim. Must run after JWTAuth. A missing or
// disallowed role aborts with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden,
					response.Error("Forbidden", "AUTH_004", "insufficient role"))
			}
			return next(c)
		}
	}
}
