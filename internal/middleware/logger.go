package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger emits one structured log line per request with method,
// path, status, latency and the client IP.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			ev := log.Info()
			status := c.Response().Status
			if status >= 500 {
				ev = log.Error()
			} else if status >= 400 {
				ev = log.Warn()
			}
			ev.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Msg("request")
			return nil
		}
	}
}
