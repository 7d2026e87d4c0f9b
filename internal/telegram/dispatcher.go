package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/memohai/hashdrop/internal/event"
	"github.com/memohai/hashdrop/internal/logger"
	"github.com/memohai/hashdrop/internal/media"
)

// DefaultProgressInterval is the minimum gap between status message edits.
const DefaultProgressInterval = 3 * time.Second

// Ingester runs one ingestion flow.
type Ingester interface {
	Ingest(ctx context.Context, input media.IngestInput) (media.StoredFile, error)
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Bot              BotClient
	Ingester         Ingester
	Publisher        event.Publisher
	BaseURL          string
	ProgressInterval time.Duration
}

// Dispatcher handles every inbound update on its own goroutine. It is the
// flow boundary: each failure becomes one reply and nothing escapes.
type Dispatcher struct {
	bot       BotClient
	ingester  Ingester
	publisher event.Publisher
	baseURL   string
	interval  time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose flows live until Shutdown.
func NewDispatcher(log *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	interval := cfg.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		bot:       cfg.Bot,
		ingester:  cfg.Ingester,
		publisher: cfg.Publisher,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		interval:  interval,
		logger:    log.With(slog.String("component", "dispatcher")),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Dispatch handles update asynchronously and returns immediately. It
// reports false when the dispatcher is shutting down and the update was
// not accepted.
func (d *Dispatcher) Dispatch(update tgbotapi.Update) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("update rejected during shutdown", slog.Int("update_id", update.UpdateID))
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.Handle(d.ctx, update)
	}()
	return true
}

// Shutdown stops accepting updates, cancels in-flight flows and waits for
// them or for ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle processes one update synchronously.
func (d *Dispatcher) Handle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("update handler panicked",
				slog.Int("update_id", update.UpdateID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			d.reply(msg, helpText)
		default:
			d.reply(msg, hintText)
		}
		return
	}
	item, ok := incomingMedia(msg)
	if !ok {
		d.reply(msg, hintText)
		return
	}
	d.ingest(ctx, msg, item)
}

func (d *Dispatcher) ingest(ctx context.Context, msg *tgbotapi.Message, item media.IncomingMedia) {
	log := d.logger.With(
		slog.Int64("chat_id", msg.Chat.ID),
		slog.Int("message_id", msg.MessageID),
		slog.String("kind", string(item.Kind)),
	)
	log.Info("media received", slog.String("name", item.DisplayName), slog.Int64("declared_size", item.DeclaredSize))
	ctx = logger.WithContext(ctx, log)

	status := d.openStatus(msg, receivingText(item.DisplayName))
	throttle := rate.Sometimes{Interval: d.interval}
	// Edits run off the copy loop; at most one is in flight and ticks that
	// land while it is pending are dropped.
	var (
		editing atomic.Bool
		edits   sync.WaitGroup
	)
	progress := func(written int64) {
		if status == 0 {
			return
		}
		throttle.Do(func() {
			if !editing.CompareAndSwap(false, true) {
				return
			}
			text := progressText(item.DisplayName, written, item.DeclaredSize)
			edits.Add(1)
			go func() {
				defer edits.Done()
				defer editing.Store(false)
				d.edit(msg.Chat.ID, status, text, nil)
			}()
		})
	}

	stored, err := d.ingester.Ingest(ctx, media.IngestInput{Media: item, Progress: progress})
	// A late progress edit must not overwrite the final text.
	edits.Wait()
	if err != nil {
		log.Warn("ingest failed", slog.Any("error", err))
		d.finish(msg, status, failureText(err), nil)
		return
	}

	link := media.DownloadURL(d.baseURL, stored.Hash)
	keyboard := downloadKeyboard(link)
	d.finish(msg, status, storedText(stored, link), &keyboard)

	if d.publisher != nil {
		d.publisher.Publish(event.Event{Type: event.TypeFileStored, File: stored})
	}
}

// openStatus sends the status message and returns its id, or 0 when sending failed.
func (d *Dispatcher) openStatus(msg *tgbotapi.Message, text string) int {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	sent, err := d.bot.Send(reply)
	if err != nil {
		d.logger.Warn("send status failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
		return 0
	}
	return sent.MessageID
}

// finish replaces the status message with the final text, or sends a new
// message when there is no status message to edit.
func (d *Dispatcher) finish(msg *tgbotapi.Message, status int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if status != 0 && d.edit(msg.Chat.ID, status, text, keyboard) {
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if keyboard != nil {
		reply.ReplyMarkup = *keyboard
	}
	if _, err := d.bot.Send(reply); err != nil {
		d.logger.Error("send reply failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
	}
}

func (d *Dispatcher) edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) bool {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ReplyMarkup = keyboard
	if _, err := d.bot.Request(edit); err != nil {
		d.logger.Debug("edit status failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return false
	}
	return true
}

func (d *Dispatcher) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := d.bot.Send(reply); err != nil {
		d.logger.Warn("send reply failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
	}
}

// incomingMedia extracts a document or video from msg. Documents win when
// both are present.
func incomingMedia(msg *tgbotapi.Message) (media.IncomingMedia, bool) {
	switch {
	case msg.Document != nil && strings.TrimSpace(msg.Document.FileID) != "":
		return media.IncomingMedia{
			FileID:       msg.Document.FileID,
			DisplayName:  strings.TrimSpace(msg.Document.FileName),
			Kind:         media.KindDocument,
			MimeType:     strings.TrimSpace(msg.Document.MimeType),
			DeclaredSize: int64(msg.Document.FileSize),
		}, true
	case msg.Video != nil && strings.TrimSpace(msg.Video.FileID) != "":
		name := strings.TrimSpace(msg.Video.FileName)
		if name == "" {
			name = fmt.Sprintf("video_%d.mp4", msg.MessageID)
		}
		return media.IncomingMedia{
			FileID:       msg.Video.FileID,
			DisplayName:  name,
			Kind:         media.KindVideo,
			MimeType:     strings.TrimSpace(msg.Video.MimeType),
			DeclaredSize: int64(msg.Video.FileSize),
		}, true
	default:
		return media.IncomingMedia{}, false
	}
}
