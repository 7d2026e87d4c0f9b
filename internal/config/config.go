// Package config loads and exposes application configuration (TOML + environment).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Default configuration values used when a field is missing in TOML and env.
const (
	DefaultConfigPath        = "config.toml"
	DefaultEnvFile           = ".env"
	DefaultPort              = 3000
	DefaultStorageDir        = "files"
	DefaultStorageExtension  = "mp4"
	DefaultDuplicatePolicy   = "keep"
	DefaultUpdateMode        = "webhook"
	DefaultDownloadTimeout   = "30m"
	DefaultRetentionSchedule = "@hourly"
	DefaultTempMaxAge        = "24h"
)

// Config is the root application configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Storage   StorageConfig   `toml:"storage"`
	Retention RetentionConfig `toml:"retention"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the listening port and the public base URL used for links and the webhook.
type ServerConfig struct {
	Port    int    `toml:"port"`
	BaseURL string `toml:"base_url"`
}

// TelegramConfig holds bot credentials, the broadcast channel and update delivery settings.
type TelegramConfig struct {
	BotToken        string `toml:"bot_token"`
	ChannelID       string `toml:"channel_id"`
	UpdateMode      string `toml:"update_mode"`
	PostImageURL    string `toml:"post_image_url"`
	DownloadTimeout string `toml:"download_timeout"`
}

// StorageConfig holds the flat media directory, the fixed extension and the duplicate policy.
type StorageConfig struct {
	Dir             string `toml:"dir"`
	Extension       string `toml:"extension"`
	DuplicatePolicy string `toml:"duplicate_policy"`
}

// RetentionConfig controls the periodic sweep. MaxAge "0" or empty keeps files forever.
type RetentionConfig struct {
	MaxAge     string `toml:"max_age"`
	Schedule   string `toml:"schedule"`
	TempMaxAge string `toml:"temp_max_age"`
}

// Defaults returns a Config populated with default values only.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Port: DefaultPort,
		},
		Telegram: TelegramConfig{
			UpdateMode:      DefaultUpdateMode,
			DownloadTimeout: DefaultDownloadTimeout,
		},
		Storage: StorageConfig{
			Dir:             DefaultStorageDir,
			Extension:       DefaultStorageExtension,
			DuplicatePolicy: DefaultDuplicatePolicy,
		},
		Retention: RetentionConfig{
			Schedule:   DefaultRetentionSchedule,
			TempMaxAge: DefaultTempMaxAge,
		},
	}
}

// Load reads the optional TOML file at path, then applies environment overrides.
// A missing file is not an error. Values from a .env file in the working
// directory are loaded into the environment first without overriding it.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return cfg, err
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	setString := func(key string, dst *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	setString("BASE_URL", &cfg.Server.BaseURL)
	if value, ok := lookup("PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return &InvalidValueError{Key: "PORT", Value: value, Err: err}
		}
		cfg.Server.Port = port
	}

	setString("BOT_TOKEN", &cfg.Telegram.BotToken)
	setString("CHANNEL_ID", &cfg.Telegram.ChannelID)
	setString("UPDATE_MODE", &cfg.Telegram.UpdateMode)
	setString("POST_IMAGE_URL", &cfg.Telegram.PostImageURL)
	setString("DOWNLOAD_TIMEOUT", &cfg.Telegram.DownloadTimeout)

	setString("STORAGE_DIR", &cfg.Storage.Dir)
	setString("STORAGE_EXTENSION", &cfg.Storage.Extension)
	setString("DUPLICATE_POLICY", &cfg.Storage.DuplicatePolicy)

	setString("RETENTION_MAX_AGE", &cfg.Retention.MaxAge)
	setString("RETENTION_SCHEDULE", &cfg.Retention.Schedule)
	setString("TEMP_MAX_AGE", &cfg.Retention.TempMaxAge)
	return nil
}

// InvalidValueError reports an environment value that could not be parsed.
type InvalidValueError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidValueError) Error() string {
	return "invalid " + e.Key + " " + strconv.Quote(e.Value) + ": " + e.Err.Error()
}

func (e *InvalidValueError) Unwrap() error { return e.Err }
