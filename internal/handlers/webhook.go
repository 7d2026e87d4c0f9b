package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/memohai/hashdrop/internal/boot"
)

// maxUpdateBytes bounds the webhook request body. Updates carry file ids,
// never file contents.
const maxUpdateBytes = 1 << 20

// UpdateDispatcher accepts one decoded update for asynchronous handling.
// It reports false when the update was not accepted.
type UpdateDispatcher interface {
	Dispatch(update tgbotapi.Update) bool
}

// WebhookHandler receives Telegram push deliveries.
type WebhookHandler struct {
	dispatcher UpdateDispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(log *slog.Logger, dispatcher UpdateDispatcher) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "webhook")),
	}
}

// Register mounts POST /webhook.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST(boot.WebhookPath, h.Receive)
}

// Receive godoc
// @Summary Telegram webhook
// @Accept json
// @Param payload body object true "Telegram Update"
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /webhook [post]
func (h *WebhookHandler) Receive(c echo.Context) error {
	var update tgbotapi.Update
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxUpdateBytes)
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		h.logger.Warn("decode update failed", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid update payload"})
	}
	// A non-2xx answer makes Telegram redeliver the update later.
	if h.dispatcher == nil || !h.dispatcher.Dispatch(update) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "shutting down"})
	}
	return c.NoContent(http.StatusOK)
}
