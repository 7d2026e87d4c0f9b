package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/hashdrop/internal/media"
	"github.com/memohai/hashdrop/internal/version"
)

// Downloader resolves a file id through getFile and streams the file body.
// It implements media.Fetcher.
type Downloader struct {
	bot          BotClient
	token        string
	client       *http.Client
	fileEndpoint string
}

var _ media.Fetcher = (*Downloader)(nil)

// NewDownloader creates a downloader. client may be nil.
func NewDownloader(bot BotClient, token string, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{
		bot:          bot,
		token:        token,
		client:       client,
		fileEndpoint: tgbotapi.FileEndpoint,
	}
}

// Fetch returns the streaming body of the file. The caller closes it.
func (d *Downloader) Fetch(ctx context.Context, item media.IncomingMedia) (io.ReadCloser, error) {
	if d == nil || d.bot == nil {
		return nil, errors.New("downloader is not configured")
	}
	fileID := strings.TrimSpace(item.FileID)
	if fileID == "" {
		return nil, errors.New("file id is empty")
	}

	file, err := d.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			if transient(apiErr.Code) {
				return nil, fmt.Errorf("%w: getFile %d: %s", media.ErrTransport, apiErr.Code, apiErr.Message)
			}
			return nil, fmt.Errorf("%w: %s", media.ErrRetrievalRejected, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: getFile: %v", media.ErrTransport, redact(err))
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return nil, fmt.Errorf("%w: empty file_path", media.ErrRetrievalRejected)
	}

	// The link embeds the bot token; it must never reach logs or errors.
	link := fmt.Sprintf(d.fileEndpoint, d.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", media.ErrTransport, redact(err))
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrTransport, redact(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: file download status %d", media.ErrTransport, resp.StatusCode)
	}
	return resp.Body, nil
}

// transient reports Bot API codes that say nothing about the file itself:
// rate limiting and server side failures.
func transient(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// redact drops the request URL from net/http errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
