package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	models "TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	icache "TradePulse/internal/service/cache"
	"TradePulse/internal/service/ratelimit"
	"TradePulse/internal/usecase"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const portfolioCacheTTL = 30 * time.Second

// Trigger limits per client; runs are expensive and idempotent handles make
// hammering pointless.
const (
	runBurst     = 3.0
	runPerSecond = 0.2
)

// RunsEchoHandler exposes the control plane: trigger analysis runs, poll
// dispatch handles, aggregate the portfolio, and stream worker progress.
type RunsEchoHandler struct {
	logger      *xlogger.Logger
	coordinator *usecase.Coordinator
	aggregator  *usecase.PortfolioAggregator
	hub         *ProgressHub
	store       drepo.ResultStore
	lookback    time.Duration
	cache       icache.BytesCache
	rl          *ratelimit.Limiter
}

func NewRunsEchoHandler(
	logger *xlogger.Logger,
	coordinator *usecase.Coordinator,
	aggregator *usecase.PortfolioAggregator,
	hub *ProgressHub,
	store drepo.ResultStore,
	lookback time.Duration,
) *RunsEchoHandler {
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	return &RunsEchoHandler{
		logger:      logger,
		coordinator: coordinator,
		aggregator:  aggregator,
		hub:         hub,
		store:       store,
		lookback:    lookback,
		rl:          ratelimit.New(),
	}
}

// SetCache enables short-lived response caching on the portfolio endpoint.
func (h *RunsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/runs", h.TriggerRun)
	g.GET("/runs/status", h.PollHandle)
	g.GET("/portfolio", h.Portfolio)
	if h.hub != nil {
		e.GET("/ws/runs", h.hub.Serve)
	}
	e.GET("/health", h.Health)
}

// TriggerRun dispatches one analysis per requested symbol and returns the
// dispatch summary. Completion is observed via PollHandle or the websocket
// stream, not this response.
func (h *RunsEchoHandler) TriggerRun(c echo.Context) error {
	if !h.rl.Allow("runs:"+c.RealIP(), runBurst, runPerSecond) {
		return xhttp.DataResponse(c, 429, map[string]string{"error": "too many run requests"})
	}

	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := xhttp.ParseTimeDefault(req.To, time.Now())
	from := xhttp.ParseTimeDefault(req.From, to.Add(-h.lookback))
	if !from.Before(to) {
		return xhttp.BadRequestResponse(c,
			xhttp.BadRequestError("'from' must precede 'to'"))
	}

	summary, err := h.coordinator.Run(c.Request().Context(), req.Symbols, from, to)
	if err != nil {
		if errors.Is(err, drepo.ErrEmptyUniverse) {
			return xhttp.BadRequestResponse(c,
				xhttp.BadRequestError("symbol universe is empty"))
		}
		h.logger.Error("run trigger failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, summary)
}

// PollHandle reports the dispatch state for one handle.
func (h *RunsEchoHandler) PollHandle(c echo.Context) error {
	req := &models.PollRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	state, err := h.coordinator.Poll(c.Request().Context(), drepo.Handle(req.Handle))
	if err != nil {
		if errors.Is(err, drepo.ErrHandleNotFound) {
			return xhttp.NotFoundResponse(c,
				xhttp.NotFoundErrorf("unknown handle '%s'", req.Handle))
		}
		h.logger.Error("handle poll failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"handle": req.Handle,
		"state":  string(state),
	})
}

// Portfolio aggregates persisted result tables across the requested symbols.
func (h *RunsEchoHandler) Portfolio(c echo.Context) error {
	req := &models.PortfolioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	bucket := time.Duration(req.BucketHr) * time.Hour
	key := portfolioCacheKey(req.Symbols, bucket)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(key); err == nil && ok {
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
	}

	summary, err := h.aggregator.AggregateBucket(c.Request().Context(), req.Symbols, bucket)
	if err != nil {
		if errors.Is(err, drepo.ErrEmptyUniverse) {
			return xhttp.BadRequestResponse(c,
				xhttp.BadRequestError("symbol universe is empty"))
		}
		h.logger.Error("portfolio aggregation failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(summary); err == nil {
			_ = h.cache.SetBytes(key, b, portfolioCacheTTL)
		}
	}
	return xhttp.SuccessResponse(c, summary)
}

func portfolioCacheKey(symbols []string, bucket time.Duration) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	return fmt.Sprintf("portfolio:%s:%s", strings.Join(sorted, ","), bucket)
}

// Health reports storage reachability and stream subscriber count.
func (h *RunsEchoHandler) Health(c echo.Context) error {
	status := map[string]interface{}{"status": "ok"}
	if h.hub != nil {
		status["ws_subscribers"] = h.hub.Subscribers()
	}
	if h.store != nil {
		if err := h.store.Health(c.Request().Context()); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
			return xhttp.DataResponse(c, 503, status)
		}
		status["storage"] = "ok"
	}
	return xhttp.SuccessResponse(c, status)
}
