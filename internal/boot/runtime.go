// Package boot validates configuration and derives the immutable runtime settings.
package boot

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/hashdrop/internal/config"
	"github.com/memohai/hashdrop/internal/media"
)

// Update delivery modes.
const (
	UpdateModeWebhook = "webhook"
	UpdateModePolling = "polling"
)

// WebhookPath is the inbound path reserved for Telegram push delivery.
const WebhookPath = "/webhook"

// RuntimeConfig holds validated runtime settings. It is built once at process
// entry and shared by pointer; nothing mutates it afterwards.
type RuntimeConfig struct {
	BotToken        string
	ChannelID       string
	BaseURL         string
	WebhookURL      string
	ServerAddr      string
	UpdateMode      string
	PostImageURL    string
	DownloadTimeout time.Duration

	StorageDir      string
	Extension       string
	DuplicatePolicy media.DuplicatePolicy
	MaxBytes        int64

	RetentionMaxAge   time.Duration
	RetentionSchedule string
	TempMaxAge        time.Duration
}

// ProvideRuntimeConfig validates cfg and derives RuntimeConfig. Every missing
// required value is reported in a single joined error.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	var errs []error

	token := strings.TrimSpace(cfg.Telegram.BotToken)
	if token == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	channelID := strings.TrimSpace(cfg.Telegram.ChannelID)
	if channelID == "" {
		errs = append(errs, errors.New("CHANNEL_ID is required"))
	}
	baseURL, err := normalizeBaseURL(cfg.Server.BaseURL)
	if err != nil {
		errs = append(errs, err)
	}

	port := cfg.Server.Port
	if port == 0 {
		port = config.DefaultPort
	}
	if port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", port))
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.UpdateMode))
	if mode == "" {
		mode = UpdateModeWebhook
	}
	if mode != UpdateModeWebhook && mode != UpdateModePolling {
		errs = append(errs, fmt.Errorf("UPDATE_MODE must be %q or %q, got %q", UpdateModeWebhook, UpdateModePolling, mode))
	}

	ext, err := normalizeExtension(cfg.Storage.Extension)
	if err != nil {
		errs = append(errs, err)
	}
	policy, err := media.ParseDuplicatePolicy(cfg.Storage.DuplicatePolicy)
	if err != nil {
		errs = append(errs, err)
	}

	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", cfg.Telegram.DownloadTimeout)
	if err != nil {
		errs = append(errs, err)
	}
	maxAge, err := parseDuration("RETENTION_MAX_AGE", cfg.Retention.MaxAge)
	if err != nil {
		errs = append(errs, err)
	}
	tempMaxAge, err := parseDuration("TEMP_MAX_AGE", cfg.Retention.TempMaxAge)
	if err != nil {
		errs = append(errs, err)
	}

	storageDir := strings.TrimSpace(cfg.Storage.Dir)
	if storageDir == "" {
		storageDir = config.DefaultStorageDir
	}
	schedule := strings.TrimSpace(cfg.Retention.Schedule)
	if schedule == "" {
		schedule = config.DefaultRetentionSchedule
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &RuntimeConfig{
		BotToken:          token,
		ChannelID:         channelID,
		BaseURL:           baseURL,
		WebhookURL:        baseURL + WebhookPath,
		ServerAddr:        ":" + strconv.Itoa(port),
		UpdateMode:        mode,
		PostImageURL:      strings.TrimSpace(cfg.Telegram.PostImageURL),
		DownloadTimeout:   downloadTimeout,
		StorageDir:        storageDir,
		Extension:         ext,
		DuplicatePolicy:   policy,
		MaxBytes:          media.MaxMediaBytes,
		RetentionMaxAge:   maxAge,
		RetentionSchedule: schedule,
		TempMaxAge:        tempMaxAge,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	value := strings.TrimRight(strings.TrimSpace(raw), "/")
	if value == "" {
		return "", errors.New("BASE_URL is required")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("BASE_URL is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("BASE_URL must be an http(s) URL, got %q", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("BASE_URL has no host: %q", raw)
	}
	return value, nil
}

func normalizeExtension(raw string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	if ext == "" {
		ext = config.DefaultStorageExtension
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("STORAGE_EXTENSION must be alphanumeric, got %q", raw)
		}
	}
	return ext, nil
}

// parseDuration accepts Go durations; empty and "0" mean disabled.
func parseDuration(key, raw string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s is invalid: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
