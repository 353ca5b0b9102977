// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The notify package fans events out from language servers and the
// dispatcher to any number of subscribers.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	LaunchFailed      Kind = "launchFailed"
	ServerInitialized Kind = "serverInitialized"
	ServerCrashed     Kind = "serverCrashed"
	Diagnostics       Kind = "publishDiagnostics"
	LogMessage        Kind = "logMessage"
	ShowMessage       Kind = "showMessage"
	Telemetry         Kind = "telemetry"
)

// Event is a single notification.
type Event struct {
	ID       string      `json:"id"`
	Kind     Kind        `json:"kind"`
	ServerID string      `json:"serverId,omitempty"`
	Project  string      `json:"project,omitempty"`
	Message  string      `json:"message,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
	Time     time.Time   `json:"time"`
}

// A Publisher accepts events. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

// Hub is a Publisher that copies every event to its subscribers. Slow
// subscribers lose events rather than stall publishers.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	logger *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{subs: map[int]chan Event{}, logger: logger}
}

func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Debugf("Dropping %s event %s for slow subscriber %d", e.Kind, e.ID, id)
		}
	}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
