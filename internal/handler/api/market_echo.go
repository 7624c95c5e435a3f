package api

import (
	"context"
	"errors"
	"net/http"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/service/backend"
	"FluxFeed/internal/service/session"
	"FluxFeed/internal/usecase"
	xhttp "FluxFeed/pkg/http"
	xlogger "FluxFeed/pkg/logger"
	"FluxFeed/pkg/util"

	"github.com/labstack/echo/v4"
)

const maxBatchSymbols = 50

// MarketEchoHandler serves quotes, charts and reference data.
type MarketEchoHandler struct {
	logger   *xlogger.Logger
	resolver *usecase.PriceResolver
	snap     *usecase.SnapshotStore
	chart    *usecase.ChartUseCase
	info     *usecase.MarketInfoUseCase
}

func NewMarketEchoHandler(
	logger *xlogger.Logger,
	resolver *usecase.PriceResolver,
	snap *usecase.SnapshotStore,
	chart *usecase.ChartUseCase,
	info *usecase.MarketInfoUseCase,
) *MarketEchoHandler {
	return &MarketEchoHandler{logger: logger, resolver: resolver, snap: snap, chart: chart, info: info}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/quotes/:symbol", h.Quote)
	g.GET("/quotes", h.Quotes)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/chart/:symbol/:resolution", h.Chart)
	g.GET("/company/:symbol", h.Company)
	g.GET("/news/:symbol", h.News)
	g.GET("/fx", h.FX)
}

func (h *MarketEchoHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := h.resolver.Resolve(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "quote", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, q)
}

func (h *MarketEchoHandler) Quotes(c echo.Context) error {
	req := &models.BatchQuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := util.SplitSymbols(req.Symbols)
	if len(symbols) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("symbols is required"))
	}
	if len(symbols) > maxBatchSymbols {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("at most %d symbols per request", maxBatchSymbols))
	}
	res, err := h.resolver.ResolveMany(c.Request().Context(), symbols)
	if err != nil {
		return h.fail(c, "batch quote", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Snapshot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.snap.All())
}

func (h *MarketEchoHandler) Chart(c echo.Context) error {
	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := parseBound(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid from"))
	}
	to, ok := parseBound(req.To)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid to"))
	}
	series, err := h.chart.GetChart(c.Request().Context(), usecase.GetChartParams{
		Symbol:     req.Symbol,
		Resolution: req.Resolution,
		From:       from,
		To:         to,
		SMA:        req.SMA,
		RSI:        req.RSI,
	})
	if err != nil {
		return h.fail(c, "chart", err)
	}
	if !series.Synthetic {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	}
	return xhttp.SuccessResponse(c, series)
}

// parseBound returns unix seconds for a chart bound, 0 when it is absent.
func parseBound(s string) (int64, bool) {
	if s == "" {
		return 0, true
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return 0, false
	}
	return t.Unix(), true
}

func (h *MarketEchoHandler) Company(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.info.Profile(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "company", err)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *MarketEchoHandler) News(c echo.Context) error {
	req := &models.NewsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	items, err := h.info.News(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		return h.fail(c, "news", err)
	}
	return xhttp.SuccessResponse(c, items)
}

func (h *MarketEchoHandler) FX(c echo.Context) error {
	req := &models.FXRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rates, err := h.info.FX(c.Request().Context(), req.Base)
	if err != nil {
		return h.fail(c, "fx", err)
	}
	return xhttp.SuccessResponse(c, rates)
}

func (h *MarketEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps use case errors onto HTTP statuses. Backend auth messages
// are passed through unchanged.
func toAppError(err error) *xhttp.AppError {
	var authErr *backend.AuthError
	switch {
	case errors.As(err, &authErr):
		return xhttp.NewAppError("ERR_UNAUTHORIZED", "", authErr.Message, authErr.Status).WithError(err)
	case errors.Is(err, usecase.ErrInvalidSymbol):
		return xhttp.BadRequestError("invalid symbol").WithError(err)
	case errors.Is(err, usecase.ErrNoPrice):
		return xhttp.NotFoundError(usecase.ErrNoPrice.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNoData):
		return xhttp.NotFoundError(usecase.ErrNoData.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("upstream timeout").WithError(err)
	default:
		return xhttp.BadGatewayError("upstream error").WithError(err)
	}
}

// SessionEchoHandler replaces or clears the backend bearer token at runtime.
// The routes carry no authentication of their own: PUT and DELETE swap the
// token for the whole process, so they must only be reachable from a trusted
// network or behind admin middleware.
type SessionEchoHandler struct {
	logger  *xlogger.Logger
	session *session.Session
	feed    *usecase.PriceFeed
}

func NewSessionEchoHandler(logger *xlogger.Logger, s *session.Session, feed *usecase.PriceFeed) *SessionEchoHandler {
	return &SessionEchoHandler{logger: logger, session: s, feed: feed}
}

func (h *SessionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/session")
	g.GET("", h.Status)
	g.PUT("", h.Set)
	g.DELETE("", h.Clear)
}

type sessionStatus struct {
	Authenticated   bool `json:"authenticated"`
	StreamConnected bool `json:"stream_connected"`
}

func (h *SessionEchoHandler) status() sessionStatus {
	st := sessionStatus{Authenticated: h.session.Authenticated()}
	if h.feed != nil {
		st.StreamConnected = h.feed.StreamConnected()
	}
	return st
}

func (h *SessionEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status())
}

func (h *SessionEchoHandler) Set(c echo.Context) error {
	req := &models.SessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.session.Set(req.Token)
	h.logger.Info("session token replaced")
	return xhttp.SuccessResponse(c, h.status())
}

func (h *SessionEchoHandler) Clear(c echo.Context) error {
	h.session.Clear()
	h.logger.Info("session token cleared")
	return xhttp.NoContentResponse(c)
}
