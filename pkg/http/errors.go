package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"RecoBoard/pkg/logger"
)

// AppError is an error with an HTTP status and a stable machine code.
// Err is kept for logs and never serialized.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

// ServiceUnavailableError is for dependencies that are down or not ready yet.
func ServiceUnavailableError(message string) *AppError {
	return NewAppError("ERR_UNAVAILABLE", "", message, http.StatusServiceUnavailable)
}

// BadGatewayError is for upstream data we received but cannot use.
func BadGatewayError(message string) *AppError {
	return NewAppError("ERR_UPSTREAM", "", message, http.StatusBadGateway)
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// statusCodes maps echo's own errors (unknown route, wrong method, recovered
// panics) onto envelope codes.
var statusCodes = map[int]string{
	http.StatusNotFound:              "ERR_NOT_FOUND",
	http.StatusMethodNotAllowed:      "ERR_METHOD_NOT_ALLOWED",
	http.StatusRequestEntityTooLarge: "ERR_TOO_LARGE",
	http.StatusTooManyRequests:       "ERR_RATE_LIMITED",
	http.StatusUnsupportedMediaType:  "ERR_MEDIA_TYPE",
	http.StatusInternalServerError:   "ERR_INTERNAL",
}

// ErrorHandler renders every error that reaches echo in the standard
// envelope, so clients never see echo's bare {"message": ...} bodies.
func ErrorHandler(l *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var appErr *AppError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &he):
			code, ok := statusCodes[he.Code]
			if !ok {
				code = "ERR_HTTP"
			}
			appErr = NewAppError(code, "", http.StatusText(he.Code), he.Code)
		default:
			l.Error("unhandled http error", logger.String("route", c.Path()), logger.Error(err))
			appErr = InternalError(http.StatusText(http.StatusInternalServerError))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(appErr.Status)
		} else {
			werr = AppErrorResponse(c, appErr)
		}
		if werr != nil {
			l.Warn("write error response", logger.Error(werr))
		}
	}
}
