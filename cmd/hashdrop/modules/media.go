package modules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/memohai/hashdrop/internal/boot"
	"github.com/memohai/hashdrop/internal/media"
	"github.com/memohai/hashdrop/internal/schedule"
	"github.com/memohai/hashdrop/internal/storage"
	"github.com/memohai/hashdrop/internal/storage/localfs"
)

const (
	retentionJobName = "retention-sweep"
	sweepTimeout     = 10 * time.Minute
)

var MediaModule = fx.Module(
	"media",
	fx.Provide(
		provideStorage,
		provideMediaService,
		provideScheduler,
	),
	fx.Invoke(startRetention),
)

func provideStorage(log *slog.Logger, rc *boot.RuntimeConfig) (storage.Provider, error) {
	provider, err := localfs.New(rc.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage ready", slog.String("root", provider.Root()))
	return provider, nil
}

func provideMediaService(log *slog.Logger, provider storage.Provider, fetcher media.Fetcher, rc *boot.RuntimeConfig) *media.Service {
	return media.NewService(log, provider, fetcher, media.Options{
		Extension:       rc.Extension,
		MaxBytes:        rc.MaxBytes,
		DuplicatePolicy: rc.DuplicatePolicy,
		DownloadTimeout: rc.DownloadTimeout,
		Retention:       media.NewRetentionPolicy(rc.RetentionMaxAge),
		TempMaxAge:      rc.TempMaxAge,
	})
}

func provideScheduler(log *slog.Logger) *schedule.Service {
	return schedule.NewService(log, sweepTimeout)
}

func startRetention(lc fx.Lifecycle, log *slog.Logger, scheduler *schedule.Service, mediaService *media.Service, rc *boot.RuntimeConfig) error {
	sweep := func(ctx context.Context) error {
		_, err := mediaService.Sweep(ctx, time.Now())
		return err
	}
	if err := scheduler.Add(retentionJobName, rc.RetentionSchedule, sweep); err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			for name, next := range scheduler.Jobs() {
				log.Info("job scheduled", slog.String("job", name), slog.Time("next", next))
			}
			// Clear leftovers from a previous crash without delaying startup.
			go func() {
				if err := scheduler.Trigger(retentionJobName, sweep); err != nil {
					log.Warn("startup sweep failed", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
	return nil
}
