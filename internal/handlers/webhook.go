package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leadrelay/leadrelay/internal/pipeline"
	"github.com/leadrelay/leadrelay/internal/wa"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// PipelineRunner runs the delivery pipeline for one inbound message.
type PipelineRunner interface {
	Handle(ctx context.Context, msg wa.InboundMessage) (pipeline.Outcome, error)
}

// WebhookHandler receives inbound messaging-platform callbacks. It
// acknowledges immediately and runs each message's pipeline in the
// background: the transport never blocks on (or cancels) delivery work.
type WebhookHandler struct {
	logger   *slog.Logger
	pipeline PipelineRunner
}

// NewWebhookHandler creates the inbound webhook handler.
func NewWebhookHandler(log *slog.Logger, runner PipelineRunner) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:   log.With(slog.String("handler", "webhook")),
		pipeline: runner,
	}
}

// Register registers webhook callback routes. The path-param form pins the
// instance for transports that put it in the callback URL instead of the
// payload.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Handle)
	e.POST("/webhook/:instance", h.Handle)
}

// Handle acknowledges the callback and dispatches pipeline runs.
func (h *WebhookHandler) Handle(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	msgs, err := wa.ParseEvent(payload, c.Param("instance"))
	if err != nil {
		// Malformed callbacks are acknowledged so the transport does not
		// retry a payload that will never parse.
		h.logger.Warn("webhook payload ignored", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]any{"status": "ignored"})
	}

	for _, msg := range msgs {
		go h.run(context.WithoutCancel(c.Request().Context()), msg)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "accepted",
		"messages": len(msgs),
	})
}

func (h *WebhookHandler) run(ctx context.Context, msg wa.InboundMessage) {
	out, err := h.pipeline.Handle(ctx, msg)
	if err != nil {
		h.logger.Error("pipeline run failed", slog.String("instance", msg.Instance), slog.Any("error", err))
		return
	}
	h.logger.Info("pipeline run finished",
		slog.String("instance", msg.Instance),
		slog.String("bot_id", out.BotID),
		slog.Bool("staged", out.Staged),
		slog.Bool("sheet_ok", out.SheetOK),
		slog.Bool("notify_ok", out.NotifyOK),
		slog.Bool("cleaned", out.Cleaned),
		slog.Bool("reply_sent", out.ReplySent),
	)
}
