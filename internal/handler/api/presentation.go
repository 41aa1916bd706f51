package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	models "RecoBoard/internal/domain/models"
	domrepo "RecoBoard/internal/domain/repository"
	"RecoBoard/internal/service/feed"
	"RecoBoard/internal/services/presentation"
	xhttp "RecoBoard/pkg/http"
	xlogger "RecoBoard/pkg/logger"
)

// Presenter renders the presentation payload.
type Presenter interface {
	Present(ctx context.Context, now time.Time, displayCap int, expand bool) (*models.Presentation, error)
	Now() time.Time
}

// PresentationHandler serves the rendered recommendation feed.
type PresentationHandler struct {
	logger    *xlogger.Logger
	presenter Presenter
}

func NewPresentationHandler(logger *xlogger.Logger, presenter Presenter) *PresentationHandler {
	return &PresentationHandler{logger: logger.With("presentation_api"), presenter: presenter}
}

func (h *PresentationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/presentation", h.Presentation)
	g.GET("/presentation/sections", h.Sections)
}

// Presentation returns the full payload.
func (h *PresentationHandler) Presentation(c echo.Context) error {
	req := &models.PresentationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.present(c, req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, out)
}

// Sections returns only the sectioned view model.
func (h *PresentationHandler) Sections(c echo.Context) error {
	req := &models.PresentationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.present(c, req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, out.Sections)
}

func (h *PresentationHandler) present(c echo.Context, req *models.PresentationRequest) (*models.Presentation, error) {
	displayCap := req.Cap
	if c.QueryParam("cap") == "" {
		displayCap = -1
	}
	out, err := h.presenter.Present(c.Request().Context(), h.presenter.Now(), displayCap, req.Expand)
	if err != nil {
		h.logger.Error("presentation usecase error", xlogger.Error(err))
		return nil, mapPresentError(err)
	}
	return out, nil
}

func mapPresentError(err error) error {
	switch {
	case errors.Is(err, domrepo.ErrNoSnapshot):
		return xhttp.ServiceUnavailableError("no feed snapshot received yet").WithError(err)
	case errors.Is(err, feed.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("recommendation feed unavailable").WithError(err)
	case errors.Is(err, presentation.ErrContractViolation):
		return xhttp.BadGatewayError("recommendation feed violates its data contract").WithError(err)
	default:
		return xhttp.InternalError("failed to render presentation").WithError(err)
	}
}
