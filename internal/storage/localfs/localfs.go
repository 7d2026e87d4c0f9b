// Package localfs implements storage.Provider on a single flat directory.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/memohai/hashdrop/internal/storage"
)

// ErrInvalidKey is returned for keys that are not plain file names.
var ErrInvalidKey = errors.New("localfs: invalid key")

// Provider stores objects as files directly under root. All access goes
// through an afero.BasePathFs so keys cannot escape the directory.
type Provider struct {
	root string
	fs   afero.Fs
}

var _ storage.Provider = (*Provider)(nil)

// New creates the directory if absent and returns a provider backed by the OS filesystem.
func New(root string) (*Provider, error) {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs is New over an arbitrary afero filesystem.
func NewWithFs(base afero.Fs, root string) (*Provider, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := base.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Provider{
		root: root,
		fs:   afero.NewBasePathFs(base, root),
	}, nil
}

// Root returns the directory this provider writes into.
func (p *Provider) Root() string {
	return p.root
}

func (p *Provider) Create(_ context.Context, key string) (io.WriteCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := p.fs.OpenFile(key, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, storage.ErrExists
		}
		return nil, err
	}
	return f, nil
}

func (p *Provider) Open(_ context.Context, key string) (storage.Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := p.fs.Open(key)
	if err != nil {
		return nil, mapNotExist(err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, storage.ErrNotFound
	}
	return &object{
		File: f,
		info: storage.ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()},
	}, nil
}

func (p *Provider) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return storage.ObjectInfo{}, err
	}
	fi, err := p.fs.Stat(key)
	if err != nil {
		return storage.ObjectInfo{}, mapNotExist(err)
	}
	if fi.IsDir() {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	return storage.ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (p *Provider) Rename(_ context.Context, from, to string) error {
	if err := validateKey(from); err != nil {
		return err
	}
	if err := validateKey(to); err != nil {
		return err
	}
	if err := p.fs.Rename(from, to); err != nil {
		return mapNotExist(err)
	}
	return nil
}

func (p *Provider) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := p.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (p *Provider) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	entries, err := afero.ReadDir(p.fs, string(filepath.Separator))
	if err != nil {
		return nil, err
	}
	items := make([]storage.ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		items = append(items, storage.ObjectInfo{
			Key:     entry.Name(),
			Size:    entry.Size(),
			ModTime: entry.ModTime(),
		})
	}
	return items, nil
}

type object struct {
	afero.File
	info storage.ObjectInfo
}

func (o *object) Info() storage.ObjectInfo { return o.info }

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func mapNotExist(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	return err
}
