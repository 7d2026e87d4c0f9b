package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/memohai/hashdrop/internal/storage"
)

// hashChunkSize bounds how much of a file is held in memory while hashing.
const hashChunkSize = 64 << 10

// HashReader returns the lowercase hex SHA-256 of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashObject hashes a fully written object. Any failure is ErrStorageRead.
func HashObject(ctx context.Context, provider storage.Provider, key string) (string, error) {
	obj, err := provider.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrStorageRead, key, err)
	}
	defer obj.Close()
	sum, err := HashReader(obj)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrStorageRead, key, err)
	}
	return sum, nil
}

// ValidHash reports whether s is a lowercase hex SHA-256 digest.
func ValidHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
