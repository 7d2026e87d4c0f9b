package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/memohai/hashdrop/internal/media"
)

const (
	downloadButtonText = "Download"

	helpText = "Send me a document or a video (up to 2 GB).\n" +
		"I will store it, reply with a permanent download link and share it in the channel.\n\n" +
		"Identical files always get the same link."
	hintText = "Please send a document or a video file. Use /help for details."

	rejectedText  = "Telegram refused to release this file to the bot. It is probably larger than the bot download limit."
	oversizeText  = "This file is larger than 2 GB and cannot be stored."
	transportText = "Downloading the file failed because of a network error. Please send it again."
	storageText   = "The file could not be saved. Please try again later."
)

func receivingText(name string) string {
	return fmt.Sprintf("Receiving %s...", displayName(name))
}

func progressText(name string, written, total int64) string {
	if total > 0 {
		pct := float64(written) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
		return fmt.Sprintf("Receiving %s... %.0f%% (%s)", displayName(name), pct, media.FormatSize(written))
	}
	return fmt.Sprintf("Receiving %s... %s", displayName(name), media.FormatSize(written))
}

func storedText(file media.StoredFile, link string) string {
	var b strings.Builder
	if file.Duplicate {
		b.WriteString("This file was already stored, here is the existing link.\n\n")
	}
	b.WriteString(media.Caption(file.DisplayName, file.Size))
	b.WriteString("\n\n")
	b.WriteString(link)
	return b.String()
}

// failureText maps an ingestion error to the single reply the user sees.
func failureText(err error) string {
	switch {
	case errors.Is(err, media.ErrRetrievalRejected):
		return rejectedText
	case errors.Is(err, media.ErrOversize):
		return oversizeText
	case errors.Is(err, media.ErrTransport):
		return transportText
	default:
		return storageText
	}
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	return name
}
