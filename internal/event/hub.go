// Package event provides an in-process hub that fans finalized media out to
// downstream consumers such as the channel poster.
package event

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/hashdrop/internal/media"
)

const (
	// DefaultBufferSize is the default per-subscriber channel buffer.
	DefaultBufferSize = 64
)

// Type identifies the event category.
type Type string

const (
	// TypeFileStored is emitted after an ingestion flow finalizes a file.
	TypeFileStored Type = "file_stored"
)

// Event is the payload delivered to subscribers.
type Event struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	File       media.StoredFile `json:"file"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(event Event)
}

// Subscriber subscribes to events of one type.
type Subscriber interface {
	Subscribe(eventType Type, buffer int) (string, <-chan Event, func())
}

// Hub is an in-process pub/sub dispatcher keyed by event type.
type Hub struct {
	mu      sync.RWMutex
	streams map[Type]map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		streams: map[Type]map[string]chan Event{},
	}
}

// Publish broadcasts one event to all subscribers of its type. A missing ID
// or timestamp is filled in. Slow subscribers miss the event instead of
// blocking the publisher.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	event.Type = Type(strings.TrimSpace(string(event.Type)))
	if event.Type == "" {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.streams[event.Type] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers one subscriber for eventType.
// It returns a stream ID, read-only event channel, and a cancel function.
func (h *Hub) Subscribe(eventType Type, buffer int) (string, <-chan Event, func()) {
	eventType = Type(strings.TrimSpace(string(eventType)))
	if h == nil || eventType == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[eventType]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[eventType] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			streams := h.streams[eventType]
			if current, ok := streams[streamID]; ok {
				delete(streams, streamID)
				close(current)
			}
			if len(streams) == 0 {
				delete(h.streams, eventType)
			}
		})
	}

	return streamID, ch, cancel
}
