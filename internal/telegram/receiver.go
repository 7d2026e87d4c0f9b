package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Update delivery modes.
const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// UpdateSource is the long-polling side of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// ReceiverConfig wires a Receiver.
type ReceiverConfig struct {
	Bot        BotClient
	Updates    UpdateSource
	Dispatcher *Dispatcher
	Mode       string
	WebhookURL string
}

// Receiver owns update delivery. In webhook mode it registers the webhook
// on Start and removes it on Stop; updates then arrive through the HTTP
// handler. In polling mode it runs a getUpdates loop.
type Receiver struct {
	bot        BotClient
	updates    UpdateSource
	dispatcher *Dispatcher
	mode       string
	webhookURL string
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReceiver creates a stopped receiver.
func NewReceiver(log *slog.Logger, cfg ReceiverConfig) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{
		bot:        cfg.Bot,
		updates:    cfg.Updates,
		dispatcher: cfg.Dispatcher,
		mode:       cfg.Mode,
		webhookURL: cfg.WebhookURL,
		logger:     log.With(slog.String("component", "receiver"), slog.String("mode", cfg.Mode)),
	}
}

// Start begins update delivery.
func (r *Receiver) Start(ctx context.Context) error {
	if r.dispatcher == nil {
		return errors.New("receiver has no dispatcher")
	}
	switch r.mode {
	case ModeWebhook:
		return r.startWebhook()
	case ModePolling:
		return r.startPolling(ctx)
	default:
		return fmt.Errorf("unknown update mode %q", r.mode)
	}
}

// Stop ends update delivery and drains in-flight flows.
func (r *Receiver) Stop(ctx context.Context) error {
	var errs []error
	switch r.mode {
	case ModeWebhook:
		if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			errs = append(errs, fmt.Errorf("delete webhook: %w", err))
		}
	case ModePolling:
		r.mu.Lock()
		cancel, done := r.cancel, r.done
		r.cancel, r.done = nil, nil
		r.mu.Unlock()
		if cancel != nil {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
			}
		}
	}
	if err := r.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain flows: %w", err))
	}
	r.logger.Info("stopped")
	return errors.Join(errs...)
}

func (r *Receiver) startWebhook() error {
	wh, err := tgbotapi.NewWebhook(r.webhookURL)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	wh.AllowedUpdates = []string{"message"}
	if _, err := r.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	r.logger.Info("webhook registered", slog.String("url", r.webhookURL))
	return nil
}

func (r *Receiver) startPolling(ctx context.Context) error {
	if r.updates == nil {
		return errors.New("polling mode needs an update source")
	}
	// getUpdates is refused while a webhook is set.
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updateConfig.AllowedUpdates = []string{"message"}
	updates := r.updates.GetUpdatesChan(updateConfig)

	go func(done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-loopCtx.Done():
				r.updates.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					r.logger.Info("updates channel closed")
					return
				}
				r.dispatcher.Dispatch(update)
			}
		}
	}(r.done)
	r.logger.Info("polling started")
	return nil
}
