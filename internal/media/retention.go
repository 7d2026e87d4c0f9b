package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memohai/hashdrop/internal/storage"
)

// RetentionPolicy decides whether a finalized file should be removed.
type RetentionPolicy interface {
	Expired(info storage.ObjectInfo, now time.Time) bool
}

// KeepForever never expires anything.
type KeepForever struct{}

func (KeepForever) Expired(storage.ObjectInfo, time.Time) bool { return false }

// MaxAge expires files whose modification time is older than the duration.
type MaxAge time.Duration

func (m MaxAge) Expired(info storage.ObjectInfo, now time.Time) bool {
	return now.Sub(info.ModTime) > time.Duration(m)
}

// NewRetentionPolicy returns MaxAge for positive durations and KeepForever otherwise.
func NewRetentionPolicy(maxAge time.Duration) RetentionPolicy {
	if maxAge <= 0 {
		return KeepForever{}
	}
	return MaxAge(maxAge)
}

// SweepResult summarizes one retention pass.
type SweepResult struct {
	TempRemoved    int
	ExpiredRemoved int
	Kept           int
}

// Sweep removes stale temp files and finalized files the retention policy
// marks as expired. Files that match neither form are left alone.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	if s.provider == nil {
		return result, errors.New("media service not configured")
	}
	objects, err := s.provider.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list storage: %w", err)
	}

	var errs []error
	for _, info := range objects {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		switch {
		case IsTempKey(info.Key):
			if s.opts.TempMaxAge <= 0 || now.Sub(info.ModTime) <= s.opts.TempMaxAge {
				continue
			}
			if err := s.provider.Delete(ctx, info.Key); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", info.Key, err))
				continue
			}
			result.TempRemoved++
		default:
			if _, ok := ParseStorageKey(info.Key, s.opts.Extension); !ok {
				continue
			}
			if !s.opts.Retention.Expired(info, now) {
				result.Kept++
				continue
			}
			if err := s.provider.Delete(ctx, info.Key); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", info.Key, err))
				continue
			}
			result.ExpiredRemoved++
		}
	}

	s.logger.Info("retention sweep",
		slog.Int("temp_removed", result.TempRemoved),
		slog.Int("expired_removed", result.ExpiredRemoved),
		slog.Int("kept", result.Kept),
	)
	return result, errors.Join(errs...)
}
