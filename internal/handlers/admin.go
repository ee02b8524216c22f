package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/leadrelay/leadrelay/internal/auth"
	"github.com/leadrelay/leadrelay/internal/bots"
	"github.com/leadrelay/leadrelay/internal/leads"
	"github.com/leadrelay/leadrelay/internal/pipeline"
)

// LeadLister is the read-only staging surface for operator inspection.
type LeadLister interface {
	ListRecent(ctx context.Context, limit int) ([]leads.StagedLead, error)
}

// Retrier re-runs delivery for a staged lead.
type Retrier interface {
	Retry(ctx context.Context, stagedID string) (pipeline.RetryResult, error)
}

// BotManager is the out-of-band bot configuration surface. The pipeline
// only ever reads bots; operators change them here.
type BotManager interface {
	Get(ctx context.Context, botID string) (bots.Bot, error)
	Update(ctx context.Context, botID string, req bots.UpdateBotRequest) (bots.Bot, error)
}

// AdminHandler exposes the operator surface: staged-lead inspection,
// delivery retry, and bot configuration.
type AdminHandler struct {
	logger  *slog.Logger
	store   LeadLister
	retrier Retrier
	bots    BotManager
}

// NewAdminHandler creates the operator handler.
func NewAdminHandler(log *slog.Logger, store LeadLister, retrier Retrier, botManager BotManager) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{
		logger:  log.With(slog.String("handler", "admin")),
		store:   store,
		retrier: retrier,
		bots:    botManager,
	}
}

func (h *AdminHandler) Register(e *echo.Echo) {
	e.GET("/admin/leads", h.ListLeads)
	e.POST("/admin/leads/:id/retry", h.RetryLead)
	e.GET("/admin/bots/:id", h.GetBot)
	e.PUT("/admin/bots/:id", h.UpdateBot)
}

// ListLeads returns staged leads newest first.
func (h *AdminHandler) ListLeads(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}
	items, err := h.store.ListRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("list staged leads failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list staged leads failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

type retryResponse struct {
	OK       bool  `json:"ok"`
	Deleted  bool  `json:"deleted"`
	SheetOK  *bool `json:"sheet_ok,omitempty"`
	NotifyOK *bool `json:"notify_ok,omitempty"`
}

// RetryLead re-runs the delivery legs for one staged lead. Full success
// deletes the staged record; anything less reports the per-leg outcomes.
func (h *AdminHandler) RetryLead(c echo.Context) error {
	id := c.Param("id")
	// An id that is not a UUID cannot name a staged lead; rejecting it here
	// also keeps the cast error out of the store.
	if _, err := uuid.Parse(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "staged lead not found")
	}
	operator, _ := auth.OperatorFromContext(c)
	result, err := h.retrier.Retry(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "staged lead not found")
		}
		h.logger.Error("retry failed",
			slog.String("staged_id", id),
			slog.String("operator", operator),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "retry failed")
	}
	if result.Deleted {
		h.logger.Info("retry delivered",
			slog.String("staged_id", id),
			slog.String("operator", operator),
		)
		return c.JSON(http.StatusOK, retryResponse{OK: true, Deleted: true})
	}
	h.logger.Warn("retry incomplete",
		slog.String("staged_id", id),
		slog.String("operator", operator),
		slog.Bool("sheet_ok", result.SheetOK),
		slog.Bool("notify_ok", result.NotifyOK),
	)
	return c.JSON(http.StatusOK, retryResponse{
		OK:       false,
		SheetOK:  &result.SheetOK,
		NotifyOK: &result.NotifyOK,
	})
}

// GetBot returns one bot's configuration.
func (h *AdminHandler) GetBot(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "bot not found")
	}
	bot, err := h.bots.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, bots.ErrBotNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "bot not found")
		}
		h.logger.Error("get bot failed", slog.String("bot_id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "get bot failed")
	}
	return c.JSON(http.StatusOK, bot)
}

// UpdateBot applies out-of-band configuration changes: the model and the
// business context fed to reply generation and extraction.
func (h *AdminHandler) UpdateBot(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "bot not found")
	}
	var req bots.UpdateBotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bot payload")
	}
	operator, _ := auth.OperatorFromContext(c)
	bot, err := h.bots.Update(c.Request().Context(), id, req)
	if err != nil {
		if errors.Is(err, bots.ErrBotNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "bot not found")
		}
		h.logger.Error("update bot failed", slog.String("bot_id", id), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "update bot failed")
	}
	h.logger.Info("bot updated",
		slog.String("bot_id", id),
		slog.String("operator", operator),
	)
	return c.JSON(http.StatusOK, bot)
}
