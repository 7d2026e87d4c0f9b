package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/hashdrop/internal/event"
	"github.com/memohai/hashdrop/internal/media"
)

// FileLookup reports whether a finalized file is still present.
type FileLookup interface {
	Stat(ctx context.Context, hash string) (media.StoredFile, error)
}

// PosterConfig wires a Poster.
type PosterConfig struct {
	Bot        BotClient
	Files      FileLookup
	Subscriber event.Subscriber
	ChannelID  string
	BaseURL    string
	ImageURL   string
}

// Poster announces finalized files in the broadcast channel. It runs
// detached from ingestion: failures are logged and never reported back.
type Poster struct {
	bot        BotClient
	files      FileLookup
	subscriber event.Subscriber
	channelID  string
	baseURL    string
	imageURL   string
	logger     *slog.Logger

	mu     sync.Mutex
	cancel func()
	done   chan struct{}
}

// NewPoster creates a stopped poster.
func NewPoster(log *slog.Logger, cfg PosterConfig) *Poster {
	if log == nil {
		log = slog.Default()
	}
	return &Poster{
		bot:        cfg.Bot,
		files:      cfg.Files,
		subscriber: cfg.Subscriber,
		channelID:  strings.TrimSpace(cfg.ChannelID),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		imageURL:   strings.TrimSpace(cfg.ImageURL),
		logger:     log.With(slog.String("component", "poster")),
	}
}

// Start subscribes to stored-file events and posts each one.
func (p *Poster) Start() error {
	if p.subscriber == nil {
		return errors.New("poster has no event subscriber")
	}
	if _, err := parseTarget(p.channelID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	ctx, cancelCtx := context.WithCancel(context.Background())
	_, events, unsubscribe := p.subscriber.Subscribe(event.TypeFileStored, 0)
	p.done = make(chan struct{})
	p.cancel = func() {
		cancelCtx()
		unsubscribe()
	}

	go func(done chan struct{}) {
		defer close(done)
		for ev := range events {
			if err := p.Post(ctx, ev.File); err != nil {
				p.logger.Warn("channel post failed",
					slog.String("event_id", ev.ID),
					slog.String("hash", ev.File.Hash),
					slog.Any("error", err),
				)
			}
		}
	}(p.done)
	return nil
}

// Stop unsubscribes and waits for the post in progress.
func (p *Poster) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post sends the announcement for file if it still exists on disk.
func (p *Poster) Post(ctx context.Context, file media.StoredFile) error {
	target, err := parseTarget(p.channelID)
	if err != nil {
		return err
	}
	if p.files != nil {
		current, err := p.files.Stat(ctx, file.Hash)
		if err != nil {
			return fmt.Errorf("check stored file: %w", err)
		}
		file.Size = current.Size
	}

	link := media.DownloadURL(p.baseURL, file.Hash)
	caption := media.Caption(file.DisplayName, file.Size)
	keyboard := downloadKeyboard(link)

	var msg tgbotapi.Chattable
	if p.imageURL != "" {
		photo := target.photo(tgbotapi.FileURL(p.imageURL))
		photo.Caption = caption
		photo.ReplyMarkup = keyboard
		msg = photo
	} else {
		text := target.message(caption)
		text.ReplyMarkup = keyboard
		msg = text
	}
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("send to channel: %w", err)
	}
	p.logger.Info("posted to channel", slog.String("hash", file.Hash))
	return nil
}
