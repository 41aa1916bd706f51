package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	models "RecoBoard/internal/domain/models"
	"RecoBoard/internal/service/ratelimit"
	"RecoBoard/internal/usecase"
	xhttp "RecoBoard/pkg/http"
	xlogger "RecoBoard/pkg/logger"
)

// NoticeService stores per-window notice dismissals.
type NoticeService interface {
	Dismiss(ctx context.Context, userID, noticeID, windowID string) (string, error)
	IsDismissed(ctx context.Context, userID, noticeID, windowID string) (bool, string, error)
}

// RateLimit is the dismiss endpoint budget per client.
type RateLimit struct {
	Burst     float64
	PerSecond float64
}

type NoticeHandler struct {
	logger  *xlogger.Logger
	svc     NoticeService
	limiter *ratelimit.Limiter
	limit   RateLimit
}

func NewNoticeHandler(logger *xlogger.Logger, svc NoticeService, limiter *ratelimit.Limiter, limit RateLimit) *NoticeHandler {
	return &NoticeHandler{logger: logger.With("notice_api"), svc: svc, limiter: limiter, limit: limit}
}

type noticeState struct {
	UserID    string `json:"user_id"`
	NoticeID  string `json:"notice_id"`
	WindowID  string `json:"window_id"`
	Dismissed bool   `json:"dismissed"`
}

func (h *NoticeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/notices")
	var mw []echo.MiddlewareFunc
	if h.limiter != nil && h.limit.Burst > 0 {
		mw = append(mw, h.limiter.Middleware(h.limit.Burst, h.limit.PerSecond))
	}
	g.POST("/dismiss", h.Dismiss, mw...)
	g.GET("/status", h.Status)
}

func (h *NoticeHandler) Dismiss(c echo.Context) error {
	req := &models.DismissNoticeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	windowID, err := h.svc.Dismiss(c.Request().Context(), req.UserID, req.NoticeID, req.WindowID)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.mapError("dismiss", err))
	}
	return xhttp.CreatedResponse(c, noticeState{
		UserID:    req.UserID,
		NoticeID:  req.NoticeID,
		WindowID:  windowID,
		Dismissed: true,
	})
}

func (h *NoticeHandler) Status(c echo.Context) error {
	req := &models.NoticeStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ok, windowID, err := h.svc.IsDismissed(c.Request().Context(), req.UserID, req.NoticeID, req.WindowID)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.mapError("status", err))
	}
	return xhttp.SuccessResponse(c, noticeState{
		UserID:    req.UserID,
		NoticeID:  req.NoticeID,
		WindowID:  windowID,
		Dismissed: ok,
	})
}

func (h *NoticeHandler) mapError(op string, err error) error {
	if errors.Is(err, usecase.ErrInvalidNotice) {
		return xhttp.BadRequestError(err.Error())
	}
	h.logger.Error("notice "+op+" failed", xlogger.Error(err))
	return xhttp.ServiceUnavailableError("notice store unavailable").WithError(err)
}
