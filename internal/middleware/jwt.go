// Package middleware provides shared request processing for handlers:
// authentication, role checks, response caching, rate limiting and request
// logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/response"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects its claims into the request context. Handlers read the
// authenticated identity via c.Get("user_id"), c.Get("email") and
// c.Get("role"); all three are plain strings.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized,
					response.Error("Unauthorized", "AUTH_003", "missing bearer token"))
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized,
					response.Error("Unauthorized", "AUTH_003", "invalid or expired token"))
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized,
					response.Error("Unauthorized", "AUTH_003", "invalid claims"))
			}

			c.Set("user_id", claimString(claims, "sub"))
			c.Set("email", claimString(claims, "email"))
			c.Set("role", claimString(claims, "role"))
			return next(c)
		}
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
