// Package storage defines the Provider interface for the flat media directory.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ErrExists is returned by Create when the key is already taken.
var ErrExists = errors.New("storage: object already exists")

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Object is an opened stored object. It supports seeking so it can back
// range requests.
type Object interface {
	io.ReadSeekCloser
	Info() ObjectInfo
}

// Provider abstracts the storage directory. Keys are flat file names.
type Provider interface {
	// Create opens a new object for writing. It fails with ErrExists if the key is taken.
	Create(ctx context.Context, key string) (io.WriteCloser, error)
	// Open returns a seekable reader for the given key.
	Open(ctx context.Context, key string) (Object, error)
	// Stat returns object metadata without opening it.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Rename atomically moves from to to, replacing to if it exists.
	Rename(ctx context.Context, from, to string) error
	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every object in the directory.
	List(ctx context.Context) ([]ObjectInfo, error)
}
