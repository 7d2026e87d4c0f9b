package modules

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"

	"github.com/memohai/hashdrop/internal/boot"
	"github.com/memohai/hashdrop/internal/event"
	"github.com/memohai/hashdrop/internal/media"
	"github.com/memohai/hashdrop/internal/telegram"
)

// botAPITimeout covers the 30s long-poll plus slack.
const botAPITimeout = 60 * time.Second

var TelegramModule = fx.Module(
	"telegram",
	fx.Provide(
		provideBot,
		func(bot *tgbotapi.BotAPI) telegram.BotClient { return bot },
		fx.Annotate(provideDownloader, fx.As(new(media.Fetcher))),
		provideDispatcher,
		provideReceiver,
		providePoster,
	),
	fx.Invoke(startPoster, startReceiver),
)

func provideBot(log *slog.Logger, rc *boot.RuntimeConfig) (*tgbotapi.BotAPI, error) {
	return telegram.NewBot(log, rc.BotToken, &http.Client{Timeout: botAPITimeout})
}

func provideDownloader(bot telegram.BotClient, rc *boot.RuntimeConfig) *telegram.Downloader {
	// No client timeout: large files are bounded by the per-flow download timeout instead.
	return telegram.NewDownloader(bot, rc.BotToken, &http.Client{})
}

func provideDispatcher(log *slog.Logger, bot telegram.BotClient, mediaService *media.Service, publisher event.Publisher, rc *boot.RuntimeConfig) *telegram.Dispatcher {
	return telegram.NewDispatcher(log, telegram.DispatcherConfig{
		Bot:       bot,
		Ingester:  mediaService,
		Publisher: publisher,
		BaseURL:   rc.BaseURL,
	})
}

func provideReceiver(log *slog.Logger, bot *tgbotapi.BotAPI, dispatcher *telegram.Dispatcher, rc *boot.RuntimeConfig) *telegram.Receiver {
	return telegram.NewReceiver(log, telegram.ReceiverConfig{
		Bot:        bot,
		Updates:    bot,
		Dispatcher: dispatcher,
		Mode:       rc.UpdateMode,
		WebhookURL: rc.WebhookURL,
	})
}

func providePoster(log *slog.Logger, bot telegram.BotClient, mediaService *media.Service, subscriber event.Subscriber, rc *boot.RuntimeConfig) *telegram.Poster {
	return telegram.NewPoster(log, telegram.PosterConfig{
		Bot:        bot,
		Files:      mediaService,
		Subscriber: subscriber,
		ChannelID:  rc.ChannelID,
		BaseURL:    rc.BaseURL,
		ImageURL:   rc.PostImageURL,
	})
}

func startPoster(lc fx.Lifecycle, poster *telegram.Poster) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return poster.Start()
		},
		OnStop: func(ctx context.Context) error {
			return poster.Stop(ctx)
		},
	})
}

func startReceiver(lc fx.Lifecycle, receiver *telegram.Receiver) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return receiver.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return receiver.Stop(ctx)
		},
	})
}
