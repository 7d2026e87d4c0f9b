package modules

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/hashdrop/internal/boot"
	"github.com/memohai/hashdrop/internal/handlers"
	"github.com/memohai/hashdrop/internal/media"
	"github.com/memohai/hashdrop/internal/server"
	"github.com/memohai/hashdrop/internal/telegram"
	"github.com/memohai/hashdrop/internal/version"
)

var HandlersModule = fx.Module(
	"handlers",
	fx.Provide(
		func(s *media.Service) handlers.FileOpener { return s },
		func(d *telegram.Dispatcher) handlers.UpdateDispatcher { return d },
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(handlers.NewDownloadHandler),
		provideServerHandler(handlers.NewWebhookHandler),
	),
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(provideServer),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	logger.Info("starting", slog.String("app", version.AppName), slog.String("version", version.GetInfo()))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
