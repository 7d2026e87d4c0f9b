package media

import (
	"path"
	"strings"
)

// TempPrefix marks in-flight files in the storage directory.
const TempPrefix = ".tmp-"

const (
	maxTempNameLen = 64
	fallbackName   = "media"
)

// StorageKey returns the finalized key {hash}.{ext}.
func StorageKey(hash, ext string) string {
	return hash + "." + ext
}

// ParseStorageKey extracts the hash from a finalized key with the given extension.
func ParseStorageKey(key, ext string) (string, bool) {
	hash, found := strings.CutSuffix(key, "."+ext)
	if !found || !ValidHash(hash) {
		return "", false
	}
	return hash, true
}

// TempKey builds the per-flow temporary key. flowID keeps concurrent uploads
// with the same display name apart.
func TempKey(flowID, displayName string) string {
	return TempPrefix + flowID + "-" + sanitizeName(displayName)
}

// IsTempKey reports whether key names an in-flight temporary file.
func IsTempKey(key string) bool {
	return strings.HasPrefix(key, TempPrefix)
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		name = ""
	}
	var b strings.Builder
	for _, r := range name {
		if b.Len() >= maxTempNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return fallbackName
	}
	return out
}
