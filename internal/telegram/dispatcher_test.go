package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/hashdrop/internal/event"
	"github.com/memohai/hashdrop/internal/logger"
	"github.com/memohai/hashdrop/internal/media"
)

const helloHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func newTestDispatcher(bot *fakeBot, ing Ingester, pub event.Publisher) *Dispatcher {
	return NewDispatcher(slog.New(slog.DiscardHandler), DispatcherConfig{
		Bot:              bot,
		Ingester:         ing,
		Publisher:        pub,
		BaseURL:          "https://files.example.com/",
		ProgressInterval: time.Hour,
	})
}

func commandUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: 42},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		},
	}
}

func documentUpdate(name string, size int) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		Message: &tgbotapi.Message{
			MessageID: 8,
			Chat:      &tgbotapi.Chat{ID: 42},
			Document:  &tgbotapi.Document{FileID: "doc-1", FileName: name, MimeType: "application/pdf", FileSize: size},
		},
	}
}

func TestHandleHelpCommands(t *testing.T) {
	t.Parallel()
	for _, cmd := range []string{"/start", "/help"} {
		bot := &fakeBot{}
		newTestDispatcher(bot, &fakeIngester{}, nil).Handle(context.Background(), commandUpdate(cmd))

		sent := bot.sentMessages()
		require.Len(t, sent, 1, cmd)
		msg := sent[0].(tgbotapi.MessageConfig)
		assert.Equal(t, int64(42), msg.ChatID)
		assert.Equal(t, helpText, msg.Text)
		assert.Equal(t, 7, msg.ReplyToMessageID)
	}
}

func TestHandleNonMediaGetsHint(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	ing := &fakeIngester{}
	d := newTestDispatcher(bot, ing, nil)

	d.Handle(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"}})
	d.Handle(context.Background(), commandUpdate("/unknown"))
	d.Handle(context.Background(), tgbotapi.Update{})

	sent := bot.sentMessages()
	require.Len(t, sent, 2)
	for _, c := range sent {
		assert.Equal(t, hintText, c.(tgbotapi.MessageConfig).Text)
	}
	assert.Empty(t, ing.got.FileID)
}

func TestHandleDocumentSuccess(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	pub := &recordingPublisher{}
	ing := &fakeIngester{
		stored:   media.StoredFile{Hash: helloHash, Key: helloHash + ".mp4", Size: 5},
		progress: []int64{2, 5},
	}
	newTestDispatcher(bot, ing, pub).Handle(context.Background(), documentUpdate("report.pdf", 5))

	assert.Equal(t, media.IncomingMedia{
		FileID: "doc-1", DisplayName: "report.pdf", Kind: media.KindDocument,
		MimeType: "application/pdf", DeclaredSize: 5,
	}, ing.got)

	sent := bot.sentMessages()
	require.Len(t, sent, 1)
	status := sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "Receiving report.pdf...", status.Text)

	// One throttled progress edit, then the final edit.
	edits := bot.requested()
	require.Len(t, edits, 2)
	progress := edits[0].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, 101, progress.MessageID)
	assert.Contains(t, progress.Text, "40%")

	final := edits[1].(tgbotapi.EditMessageTextConfig)
	link := "https://files.example.com/download/" + helloHash
	assert.Equal(t, "report.pdf\nSize: 0.00 MB\n\n"+link, final.Text)
	require.NotNil(t, final.ReplyMarkup)
	button := final.ReplyMarkup.InlineKeyboard[0][0]
	assert.Equal(t, downloadButtonText, button.Text)
	require.NotNil(t, button.URL)
	assert.Equal(t, link, *button.URL)

	require.Len(t, pub.events, 1)
	assert.Equal(t, event.TypeFileStored, pub.events[0].Type)
	assert.Equal(t, helloHash, pub.events[0].File.Hash)
	assert.Equal(t, "report.pdf", pub.events[0].File.DisplayName)

	require.NotNil(t, ing.log)
	assert.NotSame(t, logger.L, ing.log, "ingest should receive the chat scoped logger")
}

type slowCopyIngester struct {
	returned chan struct{}
}

func (s *slowCopyIngester) Ingest(_ context.Context, input media.IngestInput) (media.StoredFile, error) {
	input.Progress(1)
	input.Progress(2)
	close(s.returned)
	return media.StoredFile{Hash: helloHash, Size: 2}, nil
}

func TestProgressEditsDoNotBlockIngest(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	bot := &fakeBot{requestGate: gate}
	ing := &slowCopyIngester{returned: make(chan struct{})}
	d := NewDispatcher(slog.New(slog.DiscardHandler), DispatcherConfig{
		Bot:              bot,
		Ingester:         ing,
		BaseURL:          "https://files.example.com",
		ProgressInterval: time.Nanosecond,
	})

	done := make(chan struct{})
	go func() {
		d.Handle(context.Background(), documentUpdate("a.bin", 2))
		close(done)
	}()

	select {
	case <-ing.returned:
	case <-time.After(2 * time.Second):
		t.Fatal("progress callback blocked on a pending edit")
	}
	select {
	case <-done:
		t.Fatal("final reply must wait for the pending progress edit")
	case <-time.After(20 * time.Millisecond):
	}

	close(gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not finish")
	}

	// The second tick is dropped while the first edit is pending.
	edits := bot.requested()
	require.Len(t, edits, 2)
	assert.Contains(t, edits[0].(tgbotapi.EditMessageTextConfig).Text, "50%")
	assert.Contains(t, edits[1].(tgbotapi.EditMessageTextConfig).Text, helloHash)
}

func TestHandleFailureRepliesOnceAndDoesNotPublish(t *testing.T) {
	t.Parallel()
	cases := map[error]string{
		fmt.Errorf("wrap: %w", media.ErrRetrievalRejected): rejectedText,
		fmt.Errorf("wrap: %w", media.ErrOversize):          oversizeText,
		fmt.Errorf("wrap: %w", media.ErrTransport):         transportText,
		fmt.Errorf("wrap: %w", media.ErrStorageRead):       storageText,
	}
	for ingestErr, want := range cases {
		bot := &fakeBot{}
		pub := &recordingPublisher{}
		newTestDispatcher(bot, &fakeIngester{err: ingestErr}, pub).Handle(context.Background(), documentUpdate("a.bin", 0))

		edits := bot.requested()
		require.Len(t, edits, 1)
		assert.Equal(t, want, edits[0].(tgbotapi.EditMessageTextConfig).Text)
		assert.Empty(t, pub.events)
	}
}

func TestHandleFallsBackToNewMessageWhenEditFails(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{requestErr: fmt.Errorf("message to edit not found")}
	ing := &fakeIngester{err: media.ErrOversize}
	newTestDispatcher(bot, ing, nil).Handle(context.Background(), documentUpdate("big.mkv", 0))

	sent := bot.sentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, oversizeText, sent[1].(tgbotapi.MessageConfig).Text)
}

func TestHandleRecoversFromPanic(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	assert.NotPanics(t, func() {
		newTestDispatcher(bot, &fakeIngester{panics: true}, nil).Handle(context.Background(), documentUpdate("x", 0))
	})
}

func TestDispatchAndShutdown(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	d := newTestDispatcher(bot, &fakeIngester{}, nil)

	assert.True(t, d.Dispatch(commandUpdate("/help")))
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Len(t, bot.sentMessages(), 1)

	assert.False(t, d.Dispatch(commandUpdate("/help")))
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Len(t, bot.sentMessages(), 1, "updates after shutdown are rejected")
}

func TestDispatchRacingShutdown(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	d := newTestDispatcher(bot, &fakeIngester{}, nil)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Dispatch(commandUpdate("/help")) {
				accepted.Add(1)
			}
		}()
	}
	require.NoError(t, d.Shutdown(context.Background()))
	wg.Wait()

	// Every accepted update was handled before Shutdown returned.
	assert.Len(t, bot.sentMessages(), int(accepted.Load()))
}

func TestIncomingMediaVideo(t *testing.T) {
	t.Parallel()
	item, ok := incomingMedia(&tgbotapi.Message{
		MessageID: 9,
		Video:     &tgbotapi.Video{FileID: "vid", MimeType: "video/mp4", FileSize: 2048},
	})
	require.True(t, ok)
	assert.Equal(t, media.KindVideo, item.Kind)
	assert.Equal(t, "video_9.mp4", item.DisplayName)
	assert.Equal(t, int64(2048), item.DeclaredSize)

	_, ok = incomingMedia(&tgbotapi.Message{Document: &tgbotapi.Document{}})
	assert.False(t, ok)
}

func TestReplyTexts(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Receiving file... 1.00 MB", progressText("", 1<<20, 0))
	assert.Equal(t, "Receiving a.mp4... 50% (1.00 MB)", progressText("a.mp4", 1<<20, 2<<20))
	assert.Equal(t, "Receiving a.mp4... 100% (3.00 MB)", progressText("a.mp4", 3<<20, 2<<20))
	assert.Equal(t, storageText, failureText(fmt.Errorf("boom")))

	dup := storedText(media.StoredFile{Hash: helloHash, DisplayName: "x", Size: 0, Duplicate: true}, "L")
	assert.Contains(t, dup, "already stored")
	assert.Contains(t, dup, "\n\nL")
}
