// Package telegram connects the media pipeline to the Telegram Bot API:
// update delivery, file retrieval, user replies and channel posts.
package telegram

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotClient is the subset of *tgbotapi.BotAPI used by this package.
type BotClient interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ BotClient = (*tgbotapi.BotAPI)(nil)

// NewBot authenticates against the Bot API and routes library logs to slog.
func NewBot(log *slog.Logger, token string, client *http.Client) (*tgbotapi.BotAPI, error) {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = &http.Client{}
	}
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log.With(slog.String("component", "tgbotapi"))})
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	log.Info("bot authorized", slog.String("username", bot.Self.UserName))
	return bot, nil
}

// chatTarget is a parsed destination: either a numeric chat id or a
// public "@channel" username.
type chatTarget struct {
	chatID   int64
	username string
}

func parseTarget(raw string) (chatTarget, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return chatTarget{}, fmt.Errorf("telegram target is required")
	}
	if strings.HasPrefix(target, "@") {
		if len(target) == 1 {
			return chatTarget{}, fmt.Errorf("telegram target must be @username or chat_id")
		}
		return chatTarget{username: target}, nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return chatTarget{}, fmt.Errorf("telegram target must be @username or chat_id")
	}
	return chatTarget{chatID: chatID}, nil
}

func (t chatTarget) message(text string) tgbotapi.MessageConfig {
	if t.username != "" {
		return tgbotapi.NewMessageToChannel(t.username, text)
	}
	return tgbotapi.NewMessage(t.chatID, text)
}

func (t chatTarget) photo(file tgbotapi.RequestFileData) tgbotapi.PhotoConfig {
	if t.username != "" {
		return tgbotapi.NewPhotoToChannel(t.username, file)
	}
	return tgbotapi.NewPhoto(t.chatID, file)
}

func downloadKeyboard(url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(downloadButtonText, url),
		),
	)
}
