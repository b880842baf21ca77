package api

import (
	"context"
	"errors"
	"strings"

	models "CryptoAssist/internal/domain/models"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/internal/usecase"
	xhttp "CryptoAssist/pkg/http"
	"CryptoAssist/pkg/http/middleware"
	xlogger "CryptoAssist/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Session is the orchestrator surface exposed over HTTP.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Running() bool
	Status() models.SessionStatus
	Symbols() []string
	RunOnce(ctx context.Context, query string) (string, error)
	AnalyzeSymbol(ctx context.Context, symbol, timeframe string) (models.AnalyzeResponse, error)
	ActiveSignals() []models.TradingSignal
	PortfolioSummary(ctx context.Context) (models.PortfolioSummary, error)
}

type Options struct {
	JWTSecret   string
	JWTIssuer   string
	RateLimiter *middleware.IPRateLimiter
	// Components reports which optional collaborators are wired, for /health.
	Components map[string]bool
}

// AssistantHandler serves the session, analysis and notification endpoints.
type AssistantHandler struct {
	logger  *xlogger.Logger
	session Session
	sender  dservice.MessageSender
	opts    Options
}

func NewAssistantHandler(logger *xlogger.Logger, session Session, sender dservice.MessageSender, opts Options) *AssistantHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AssistantHandler{logger: logger, session: session, sender: sender, opts: opts}
}

func (h *AssistantHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	var mws []echo.MiddlewareFunc
	if h.opts.RateLimiter != nil {
		mws = append(mws, middleware.RateLimit(h.opts.RateLimiter))
	}
	mws = append(mws, middleware.JWTAuth(h.opts.JWTSecret, h.opts.JWTIssuer))

	g := e.Group("/api/v1", mws...)
	g.GET("/session", h.SessionStatus)
	g.POST("/session/start", h.StartSession)
	g.POST("/session/stop", h.StopSession)
	g.POST("/chat", h.Chat)
	g.POST("/analyze", h.Analyze)
	g.GET("/signals/active", h.ActiveSignals)
	g.GET("/portfolio", h.Portfolio)
	g.POST("/notifications/send", h.SendNotification)
}

func (h *AssistantHandler) Health(c echo.Context) error {
	st := h.session.Status()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":     "ok",
		"running":    st.Running,
		"state":      st.State,
		"breaker":    st.Breaker,
		"symbols":    h.session.Symbols(),
		"components": h.opts.Components,
	})
}

func (h *AssistantHandler) SessionStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.session.Status())
}

func (h *AssistantHandler) StartSession(c echo.Context) error {
	if err := h.session.Start(c.Request().Context()); err != nil {
		h.logger.Warn("start session failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.logger.Info("session started via api", xlogger.String("subject", middleware.Subject(c)))
	return xhttp.SuccessResponse(c, h.session.Status())
}

func (h *AssistantHandler) StopSession(c echo.Context) error {
	h.session.Stop(c.Request().Context())
	h.logger.Info("session stopped via api", xlogger.String("subject", middleware.Subject(c)))
	return xhttp.SuccessResponse(c, h.session.Status())
}

func (h *AssistantHandler) Chat(c echo.Context) error {
	req := &models.ChatRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	answer, err := h.session.RunOnce(c.Request().Context(), usecase.ChatQuery(req.Message, req.Context))
	if err != nil {
		h.logger.Error("chat usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, models.ChatResponse{Response: answer, Context: req.Context})
}

func (h *AssistantHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.session.AnalyzeSymbol(c.Request().Context(), req.Symbol, req.Timeframe)
	if err != nil {
		h.logger.Error("analyze usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// ActiveSignals lists the newest retained signals, optionally for one symbol.
func (h *AssistantHandler) ActiveSignals(c echo.Context) error {
	req := &models.ActiveSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	all := h.session.ActiveSignals()
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	rows := make([]models.TradingSignal, 0, len(all))
	for _, s := range all {
		if symbol == "" || s.Symbol == symbol {
			rows = append(rows, s)
		}
	}
	total := len(rows)
	if len(rows) > req.Limit {
		rows = rows[len(rows)-req.Limit:]
	}
	return xhttp.ListResponse(c, rows, int64(total))
}

func (h *AssistantHandler) Portfolio(c echo.Context) error {
	sum, err := h.session.PortfolioSummary(c.Request().Context())
	if err != nil {
		h.logger.Warn("portfolio summary unavailable", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("portfolio unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, sum)
}

func (h *AssistantHandler) SendNotification(c echo.Context) error {
	req := &models.NotificationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.sender == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("no notification channel configured"))
	}

	msg := models.Message{Title: req.Title, Body: req.Message, Urgent: req.Urgent}
	if err := h.sender.SendMessage(c.Request().Context(), msg); err != nil {
		h.logger.Error("send notification failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("notification delivery failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]bool{"sent": true})
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrAlreadyRunning):
		return xhttp.ConflictError("session already running")
	case errors.Is(err, usecase.ErrStartupConfig):
		return xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNoBackend):
		return xhttp.ServiceUnavailableError("reasoning backend not configured")
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("upstream call timed out").WithError(err)
	case errors.Is(err, context.Canceled):
		return xhttp.RequestTimeoutError("request canceled").WithError(err)
	default:
		return xhttp.InternalError("request failed").WithError(err)
	}
}
