package middleware

import (
	"time"

	"RecoBoard/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs every request at debug, slow ones at warn and 5xx at error.
func RequestLogging(l *logger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// let echo write the error so the status below is final
				c.Error(err)
			}

			latency := time.Since(start)
			res := c.Response()
			fields := []logger.Field{
				logger.String("method", c.Request().Method),
				logger.String("route", routeOf(c)),
				logger.String("uri", c.Request().RequestURI),
				logger.String("remote", c.RealIP()),
				logger.Int("status", res.Status),
				logger.Duration("latency_ms", latency),
				logger.Int64("bytes", res.Size),
			}

			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && latency >= slowThreshold:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
