package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrief/internal/domain/models"
	mid "MarketBrief/internal/middleware"
	"MarketBrief/internal/service/ratelimit"
	xlogger "MarketBrief/pkg/logger"
)

type fakeReports struct {
	outcome  *models.PipelineOutcome
	err      error
	latest   *models.PipelineOutcome
	runs     []models.RunRecord
	triggers []string
	limit    int
}

func (f *fakeReports) Trigger(_ context.Context, trigger string) (*models.PipelineOutcome, error) {
	f.triggers = append(f.triggers, trigger)
	return f.outcome, f.err
}

func (f *fakeReports) Latest(context.Context) (*models.PipelineOutcome, error) {
	if f.latest == nil {
		return nil, models.ErrNoReport
	}
	return f.latest, nil
}

func (f *fakeReports) History(_ context.Context, limit int) ([]models.RunRecord, error) {
	f.limit = limit
	return f.runs, nil
}

func successOutcome() *models.PipelineOutcome {
	at := time.Now()
	return &models.PipelineOutcome{
		RunID:      "run-1",
		Trigger:    "manual",
		StartedAt:  at,
		FinishedAt: at.Add(1500 * time.Millisecond),
		Snapshot: models.SnapshotFromQuote(&models.Quote{Symbol: "PAXGUSDT", Price: models.ParseFigure("2000")},
			models.PrimaryProvider, "binance", at),
		Headlines: []models.Headline{{Title: "Fed holds rates"}},
		Analysis:  &models.AnalysisResult{ModelUsed: "m1", Text: "report text"},
		Delivered: true,
	}
}

func newTestEcho(reports Reports, secret string, limiter *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	var allower mid.Allower
	if limiter != nil {
		allower = limiter
	}
	NewReportEchoHandler(xlogger.Nop(), reports, secret, allower).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, secret, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if secret != "" {
		req.Header.Set("X-Secret-Key", secret)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReadyAndHealth(t *testing.T) {
	e := newTestEcho(&fakeReports{}, "s", nil)

	rec := do(e, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bot is ready")

	rec = do(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunSuccess(t *testing.T) {
	reports := &fakeReports{outcome: successOutcome()}
	e := newTestEcho(reports, "s", nil)

	rec := do(e, http.MethodPost, "/api/run", "s", `{"reason":"cron-job"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Success", body.Status)
	assert.Equal(t, "m1", body.Model)
	assert.Equal(t, "2000.00", body.Price)
	assert.Equal(t, models.PrimaryProvider, body.PriceSource)
	assert.Equal(t, 1, body.Headlines)
	assert.Equal(t, int64(1500), body.DurationMs)
	assert.Equal(t, []string{"cron-job"}, reports.triggers)
}

func TestRunDefaultsReason(t *testing.T) {
	reports := &fakeReports{outcome: successOutcome()}
	e := newTestEcho(reports, "", nil)

	rec := do(e, http.MethodPost, "/api/run", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"manual"}, reports.triggers)
}

func TestRunFailureIs500(t *testing.T) {
	o := successOutcome()
	o.Fail(models.StageModel, "all model candidates exhausted after 2 attempt(s): bad-2: boom")
	e := newTestEcho(&fakeReports{outcome: o}, "", nil)

	rec := do(e, http.MethodPost, "/api/run", "", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body models.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failure", body.Status)
	assert.Equal(t, models.StageModel, body.Stage)
	assert.Contains(t, body.Message, "bad-2: boom")
}

func TestRunWrongSecretIs403(t *testing.T) {
	reports := &fakeReports{outcome: successOutcome()}
	e := newTestEcho(reports, "s", nil)

	rec := do(e, http.MethodPost, "/api/run", "nope", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, reports.triggers)
}

func TestRunInProgressIs409(t *testing.T) {
	e := newTestEcho(&fakeReports{err: models.ErrRunInProgress}, "", nil)

	rec := do(e, http.MethodPost, "/api/run", "", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunUnexpectedErrorIs500(t *testing.T) {
	e := newTestEcho(&fakeReports{err: errors.New("boom")}, "", nil)

	rec := do(e, http.MethodPost, "/api/run", "", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_INTERNAL")
}

func TestRunRateLimited(t *testing.T) {
	e := newTestEcho(&fakeReports{outcome: successOutcome()}, "", ratelimit.New(1, 0.0001))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/run", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/api/run", "", "").Code)
}

func TestRunValidation(t *testing.T) {
	e := newTestEcho(&fakeReports{outcome: successOutcome()}, "", nil)

	rec := do(e, http.MethodPost, "/api/run", "", `{"reason":"`+strings.Repeat("x", 65)+`"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_MAX")
}

func TestLatest(t *testing.T) {
	reports := &fakeReports{}
	e := newTestEcho(reports, "", nil)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/report/latest", "", "").Code)

	reports.latest = successOutcome()
	rec := do(e, http.MethodGet, "/api/report/latest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
	assert.Contains(t, rec.Body.String(), `"price":"2000.00"`)
}

func TestRuns(t *testing.T) {
	reports := &fakeReports{runs: []models.RunRecord{successOutcome().Record()}}
	e := newTestEcho(reports, "", nil)

	rec := do(e, http.MethodGet, "/api/runs?limit=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, reports.limit)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(e, http.MethodGet, "/api/runs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, reports.limit)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/runs?limit=500", "", "").Code)
}
