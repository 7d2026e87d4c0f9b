package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/hashdrop/internal/logger"
	"github.com/memohai/hashdrop/internal/storage"
)

// copyChunkSize bounds the write granularity of the streaming download.
const copyChunkSize = 64 << 10

// Fetcher opens a streaming body for one incoming media item. Errors must
// wrap ErrTransport or ErrRetrievalRejected.
type Fetcher interface {
	Fetch(ctx context.Context, item IncomingMedia) (io.ReadCloser, error)
}

// Options configures the ingestion pipeline.
type Options struct {
	Extension       string
	MaxBytes        int64
	DuplicatePolicy DuplicatePolicy
	// DownloadTimeout bounds the receiving stage; zero disables it.
	DownloadTimeout time.Duration
	Retention       RetentionPolicy
	// TempMaxAge is how old a leftover temp file must be before Sweep removes it.
	TempMaxAge time.Duration
}

// Service provides content-addressed media persistence on a flat directory.
// All metadata is derived from the filesystem: no database, no sidecar files.
type Service struct {
	provider storage.Provider
	fetcher  Fetcher
	opts     Options
	logger   *slog.Logger
	newID    func() string
}

// NewService creates a media service with the given storage provider and fetcher.
func NewService(log *slog.Logger, provider storage.Provider, fetcher Fetcher, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = MaxMediaBytes
	}
	opts.Extension = strings.TrimPrefix(strings.TrimSpace(opts.Extension), ".")
	if opts.Extension == "" {
		opts.Extension = "bin"
	}
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = DuplicateKeep
	}
	if opts.Retention == nil {
		opts.Retention = KeepForever{}
	}
	return &Service{
		provider: provider,
		fetcher:  fetcher,
		opts:     opts,
		logger:   log.With(slog.String("service", "media")),
		newID:    uuid.NewString,
	}
}

// Extension returns the fixed extension of finalized files.
func (s *Service) Extension() string {
	return s.opts.Extension
}

// IngestInput carries one item plus an optional progress callback.
type IngestInput struct {
	Media IncomingMedia
	// Progress is called with the running byte count as chunks are written.
	Progress func(written int64)
}

// Ingest streams the item to a temp file, enforces the size ceiling, hashes
// the written bytes and renames the file to {hash}.{ext}. The temp file is
// removed on every failure path.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (StoredFile, error) {
	if s.provider == nil || s.fetcher == nil {
		return StoredFile{}, errors.New("media service not configured")
	}
	item := input.Media
	if strings.TrimSpace(item.FileID) == "" {
		return StoredFile{}, errors.New("file id is required")
	}

	flowID := s.newID()
	tempKey := TempKey(flowID, item.DisplayName)
	log := s.flowLogger(ctx).With(
		slog.String("flow_id", flowID),
		slog.String("kind", string(item.Kind)),
		slog.String("name", item.DisplayName),
	)

	finalized := false
	defer func() {
		if finalized {
			return
		}
		if err := s.provider.Delete(context.WithoutCancel(ctx), tempKey); err != nil {
			log.Warn("remove temp file failed", slog.String("key", tempKey), slog.Any("error", err))
		}
	}()

	log.Debug("stage", slog.String("stage", string(StageReceiving)))
	written, err := s.receive(ctx, item, tempKey, input.Progress)
	if err != nil {
		log.Debug("stage", slog.String("stage", string(StageFailed)), slog.Any("error", err))
		return StoredFile{}, err
	}

	log.Debug("stage", slog.String("stage", string(StageSizing)), slog.Int64("bytes", written))
	if written > s.opts.MaxBytes {
		log.Debug("stage", slog.String("stage", string(StageRejected)))
		return StoredFile{}, fmt.Errorf("%w: more than %d bytes", ErrOversize, s.opts.MaxBytes)
	}

	log.Debug("stage", slog.String("stage", string(StageHashing)))
	hash, err := HashObject(ctx, s.provider, tempKey)
	if err != nil {
		log.Debug("stage", slog.String("stage", string(StageFailed)), slog.Any("error", err))
		return StoredFile{}, err
	}

	stored, err := s.finalize(ctx, tempKey, hash, written)
	if err != nil {
		return StoredFile{}, err
	}
	finalized = true
	stored.DisplayName = item.DisplayName
	stored.Kind = item.Kind
	log.Info("media finalized",
		slog.String("stage", string(StageFinalized)),
		slog.String("hash", hash),
		slog.Int64("bytes", written),
		slog.Bool("duplicate", stored.Duplicate),
	)
	return stored, nil
}

// flowLogger prefers the caller's logger from ctx so flow and chat
// attributes land on the same lines.
func (s *Service) flowLogger(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != logger.L {
		return l.With(slog.String("service", "media"))
	}
	return s.logger
}

// receive copies at most MaxBytes+1 bytes so an oversize stream is detected
// without writing it in full.
func (s *Service) receive(ctx context.Context, item IncomingMedia, tempKey string, progress func(int64)) (int64, error) {
	if s.opts.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.DownloadTimeout)
		defer cancel()
	}

	body, err := s.fetcher.Fetch(ctx, item)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	w, err := s.provider.Create(ctx, tempKey)
	if err != nil {
		return 0, fmt.Errorf("%w: create temp file: %v", ErrStorageWrite, err)
	}

	src := &transportReader{r: &io.LimitedReader{R: body, N: s.opts.MaxBytes + 1}}
	dst := &progressWriter{w: w, fn: progress}
	written, copyErr := io.CopyBuffer(dst, src, make([]byte, copyChunkSize))
	closeErr := w.Close()

	if copyErr != nil {
		if src.err != nil {
			return written, copyErr
		}
		return written, fmt.Errorf("%w: write temp file: %v", ErrStorageWrite, copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("%w: close temp file: %v", ErrStorageWrite, closeErr)
	}
	return written, nil
}

func (s *Service) finalize(ctx context.Context, tempKey, hash string, size int64) (StoredFile, error) {
	key := StorageKey(hash, s.opts.Extension)
	stored := StoredFile{Hash: hash, Key: key, Size: size}

	_, statErr := s.provider.Stat(ctx, key)
	switch {
	case statErr == nil:
		stored.Duplicate = true
	case !errors.Is(statErr, storage.ErrNotFound):
		return StoredFile{}, fmt.Errorf("%w: stat %s: %v", ErrStorageRead, key, statErr)
	}

	if stored.Duplicate && s.opts.DuplicatePolicy == DuplicateKeep {
		if err := s.provider.Delete(ctx, tempKey); err != nil {
			return StoredFile{}, fmt.Errorf("%w: discard temp file: %v", ErrStorageWrite, err)
		}
		return stored, nil
	}

	if err := s.provider.Rename(ctx, tempKey, key); err != nil {
		return StoredFile{}, fmt.Errorf("%w: rename to %s: %v", ErrStorageWrite, key, err)
	}
	return stored, nil
}

// Stat returns the finalized file for hash without opening it.
func (s *Service) Stat(ctx context.Context, hash string) (StoredFile, error) {
	if s.provider == nil {
		return StoredFile{}, errors.New("media service not configured")
	}
	if !ValidHash(hash) {
		return StoredFile{}, ErrNotFound
	}
	key := StorageKey(hash, s.opts.Extension)
	info, err := s.provider.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return StoredFile{Hash: hash, Key: key, Size: info.Size}, nil
}

// Open returns a seekable reader for the finalized file identified by hash.
// Malformed hashes are reported as ErrNotFound.
func (s *Service) Open(ctx context.Context, hash string) (storage.Object, StoredFile, error) {
	if s.provider == nil {
		return nil, StoredFile{}, errors.New("media service not configured")
	}
	if !ValidHash(hash) {
		return nil, StoredFile{}, ErrNotFound
	}
	key := StorageKey(hash, s.opts.Extension)
	obj, err := s.provider.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, StoredFile{}, ErrNotFound
		}
		return nil, StoredFile{}, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return obj, StoredFile{Hash: hash, Key: key, Size: obj.Info().Size}, nil
}

// transportReader tags body read failures as ErrTransport so they can be told
// apart from disk write failures after io.Copy returns.
type transportReader struct {
	r   io.Reader
	err error
}

func (t *transportReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
		return n, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return n, err
}

type progressWriter struct {
	w       io.Writer
	fn      func(int64)
	written int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.fn != nil && n > 0 {
		p.fn(p.written)
	}
	return n, err
}
