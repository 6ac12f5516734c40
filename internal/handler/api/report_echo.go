package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"MarketBrief/internal/domain/models"
	mid "MarketBrief/internal/middleware"
	xhttp "MarketBrief/pkg/http"
	xlogger "MarketBrief/pkg/logger"
)

const readyText = "Bot is ready. POST /api/run to generate a report."

// Reports is the use case surface the HTTP layer needs.
type Reports interface {
	Trigger(ctx context.Context, trigger string) (*models.PipelineOutcome, error)
	Latest(ctx context.Context) (*models.PipelineOutcome, error)
	History(ctx context.Context, limit int) ([]models.RunRecord, error)
}

// ReportEchoHandler exposes the trigger and report read endpoints.
type ReportEchoHandler struct {
	logger  *xlogger.Logger
	reports Reports
	secret  string
	limiter mid.Allower
}

func NewReportEchoHandler(logger *xlogger.Logger, reports Reports, secret string, limiter mid.Allower) *ReportEchoHandler {
	return &ReportEchoHandler{logger: logger, reports: reports, secret: secret, limiter: limiter}
}

func (h *ReportEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Ready)
	e.GET("/health", h.Health)

	g := e.Group("/api", mid.TriggerAuth(h.secret, h.logger))
	g.POST("/run", h.Run, mid.RateLimit(h.limiter))
	g.GET("/report/latest", h.Latest)
	g.GET("/runs", h.Runs)
}

func (h *ReportEchoHandler) Ready(c echo.Context) error {
	return c.String(http.StatusOK, readyText)
}

func (h *ReportEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Run executes one pipeline run. The body is the RunResponse itself: 200 on Success, 500 on Failure.
func (h *ReportEchoHandler) Run(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	o, err := h.reports.Trigger(c.Request().Context(), req.Reason)
	if err != nil {
		if errors.Is(err, models.ErrRunInProgress) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("a report run is already in progress"))
		}
		h.logger.Error("run usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("run failed to start").WithError(err))
	}

	status := http.StatusOK
	if !o.Succeeded() {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, models.NewRunResponse(o))
}

func (h *ReportEchoHandler) Latest(c echo.Context) error {
	o, err := h.reports.Latest(c.Request().Context())
	if err != nil {
		if errors.Is(err, models.ErrNoReport) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no report has been produced yet"))
		}
		h.logger.Error("latest report usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, o)
}

func (h *ReportEchoHandler) Runs(c echo.Context) error {
	req := &models.RunsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	runs, err := h.reports.History(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("run history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, runs, int64(len(runs)))
}
