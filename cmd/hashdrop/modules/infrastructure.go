package modules

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/memohai/hashdrop/internal/boot"
	"github.com/memohai/hashdrop/internal/config"
	"github.com/memohai/hashdrop/internal/event"
	"github.com/memohai/hashdrop/internal/logger"
)

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		boot.ProvideRuntimeConfig,
		event.NewHub,
		func(h *event.Hub) event.Publisher { return h },
		func(h *event.Hub) event.Subscriber { return h },
	),
)

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}
