package media

import (
	"fmt"
	"strings"
)

// DownloadPath is the HTTP route prefix for finalized files.
const DownloadPath = "/download/"

// DownloadURL builds the public link for a hash.
func DownloadURL(baseURL, hash string) string {
	return strings.TrimRight(baseURL, "/") + DownloadPath + hash
}

// FormatSize renders bytes as mebibytes with two decimals, e.g. "12.34 MB".
func FormatSize(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
}

// Caption composes the human readable description of a stored file.
func Caption(displayName string, size int64) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "Untitled"
	}
	return fmt.Sprintf("%s\nSize: %s", name, FormatSize(size))
}
