package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/hashdrop/internal/event"
	"github.com/memohai/hashdrop/internal/logger"
	"github.com/memohai/hashdrop/internal/media"
)

type fakeBot struct {
	mu         sync.Mutex
	file       tgbotapi.File
	fileErr    error
	sendErr    error
	requestErr error
	// requestGate, when set, holds every Request until it is closed.
	requestGate chan struct{}
	nextID      int
	sent        []tgbotapi.Chattable
	requests    []tgbotapi.Chattable
}

func (b *fakeBot) GetFile(tgbotapi.FileConfig) (tgbotapi.File, error) {
	return b.file, b.fileErr
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	b.nextID++
	return tgbotapi.Message{MessageID: 100 + b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if b.requestGate != nil {
		<-b.requestGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	if b.requestErr != nil {
		return nil, b.requestErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) sentMessages() []tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), b.sent...)
}

func (b *fakeBot) requested() []tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), b.requests...)
}

type fakeIngester struct {
	stored   media.StoredFile
	err      error
	progress []int64
	panics   bool
	got      media.IncomingMedia
	log      *slog.Logger
}

func (f *fakeIngester) Ingest(ctx context.Context, input media.IngestInput) (media.StoredFile, error) {
	if f.panics {
		panic("ingest exploded")
	}
	f.got = input.Media
	f.log = logger.FromContext(ctx)
	for _, n := range f.progress {
		if input.Progress != nil {
			input.Progress(n)
		}
	}
	if f.err != nil {
		return media.StoredFile{}, f.err
	}
	stored := f.stored
	stored.DisplayName = input.Media.DisplayName
	stored.Kind = input.Media.Kind
	return stored, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(ev event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}
