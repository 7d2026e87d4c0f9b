package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/hashdrop/internal/media"
	"github.com/memohai/hashdrop/internal/storage"
)

const notFoundText = "File not found"

// FileOpener resolves a content hash to a readable finalized file.
type FileOpener interface {
	Open(ctx context.Context, hash string) (storage.Object, media.StoredFile, error)
	Extension() string
}

// DownloadHandler serves finalized files by content hash.
type DownloadHandler struct {
	files  FileOpener
	logger *slog.Logger
}

// NewDownloadHandler creates a download handler.
func NewDownloadHandler(log *slog.Logger, files FileOpener) *DownloadHandler {
	return &DownloadHandler{
		files:  files,
		logger: log.With(slog.String("handler", "download")),
	}
}

// Register mounts GET and HEAD /download/:hash.
func (h *DownloadHandler) Register(e *echo.Echo) {
	e.GET(media.DownloadPath+":hash", h.Download)
	e.HEAD(media.DownloadPath+":hash", h.Download)
}

// Download godoc
// @Summary Download a stored file
// @Description Streams {hash}.{ext} as an attachment. Supports Range and conditional requests.
// @Produce octet-stream
// @Param hash path string true "SHA-256 content hash (64 lowercase hex chars)"
// @Success 200 {file} binary
// @Success 206 {file} binary
// @Failure 404 {string} string "File not found"
// @Router /download/{hash} [get]
func (h *DownloadHandler) Download(c echo.Context) error {
	if h.files == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "media service not configured")
	}
	hash := strings.TrimSpace(c.Param("hash"))
	obj, file, err := h.files.Open(c.Request().Context(), hash)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return c.String(http.StatusNotFound, notFoundText)
		}
		h.logger.Error("open stored file failed", slog.String("hash", hash), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open file")
	}
	defer obj.Close()

	header := c.Response().Header()
	contentType := mime.TypeByExtension("." + h.files.Extension())
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	header.Set(echo.HeaderContentType, contentType)
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Key))
	header.Set("ETag", `"`+file.Hash+`"`)
	header.Set("Cache-Control", "public, max-age=31536000, immutable")

	http.ServeContent(c.Response(), c.Request(), file.Key, obj.Info().ModTime, obj)
	return nil
}
