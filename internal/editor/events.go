package editor

import (
	"context"
	"sync"
	"time"
)

// EventType enumerates the UI-facing notifications a session emits.
type EventType string

const (
	// EventDocumentCreated announces the id assigned by the first remote save,
	// so sibling consumers converge on it without a reload.
	EventDocumentCreated EventType = "document-created"
	// EventRemoteContentAdopted reports a clean auto-merge of a collaborator's
	// change (passive toast).
	EventRemoteContentAdopted EventType = "remote-content-adopted"
	// EventRemoteChangeConflict reports a collaborator change that cannot be
	// auto-adopted because local edits are unsaved (actionable reload prompt).
	EventRemoteChangeConflict EventType = "remote-change-conflict"
	// EventDocumentUnavailable reports a load aborted by a deleted, missing,
	// or forbidden document.
	EventDocumentUnavailable EventType = "document-unavailable"
)

// Event is a single session notification.
type Event struct {
	Type          EventType
	DocumentID    string
	Message       string
	RemoteVersion int64
	Timestamp     time.Time
}

// EventDispatcher fans session events out to subscribers. Slow subscribers
// miss events rather than blocking the session.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
}

type eventSubscriber struct {
	id     int64
	stream chan Event
}

// NewEventDispatcher constructs an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]*eventSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener. The returned cancel function (and the
// context) both detach it.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	subscriber := &eventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.mu.Lock()
	d.subscribers[subscriber.id] = subscriber
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		delete(d.subscribers, subscriber.id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers an event to every subscriber that has buffer room.
func (d *EventDispatcher) Publish(event Event) {
	if event.Type == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*eventSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *EventDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}
