package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"RecoBoard/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns handler panics into a 500 for the server's error handler.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					l.Error("http handler panic",
						logger.Error(perr),
						logger.String("route", routeOf(c)),
						logger.String("stack", string(debug.Stack())),
					)
					err = echo.NewHTTPError(http.StatusInternalServerError).SetInternal(perr)
				}
			}()
			return next(c)
		}
	}
}
