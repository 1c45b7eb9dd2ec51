// Package events carries browser and transfer notifications to
// presentation layers (CLI progress, shell status lines) without coupling
// them to the engine.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale/twinpane/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog   EventType = "log"
	EventError EventType = "error"

	// Pane events, published by state.Cursor
	EventCursorListed      EventType = "cursor_listed"       // Listing refreshed
	EventCursorListError   EventType = "cursor_list_error"   // Listing failed, state unchanged
	EventCursorPathChanged EventType = "cursor_path_changed" // Descend/Ascend/Chdir moved the cursor

	// Transfer events, published by transfer.Coordinator
	EventTransferStarted  EventType = "transfer_started"  // Worker goroutine began
	EventTransferProgress EventType = "transfer_progress" // Chunk boundary on the current file
	EventTransferItem     EventType = "transfer_item"     // One leaf finished (ok or failed)
	EventTransferFinished EventType = "transfer_finished" // Terminal status reached

	// Remote session events
	EventConnectionChanged EventType = "connection_changed"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level     LogLevel
	Message   string
	Component string
	Error     error
}

// ErrorEvent represents error conditions outside a transfer
type ErrorEvent struct {
	BaseEvent
	Component string
	Error     error
}

// CursorEvent reports pane navigation and listing results.
type CursorEvent struct {
	BaseEvent
	Side    string // "local" or "remote"
	Path    string // Current path after the event
	OldPath string // Previous path (path changes only)
	Count   int    // Entries in the listing, including ".."
	Error   error  // Listing failure (list error only)
}

// TransferEvent reports transfer lifecycle and progress.
// Fields not meaningful for a given EventType are left zero.
type TransferEvent struct {
	BaseEvent
	TransferID string
	Direction  string
	SourcePath string
	DestPath   string

	// Progress and item events
	Path             string
	BytesTransferred int64
	BytesTotal       int64

	// Finished events
	Status    string
	Attempted int
	Succeeded int
	Failed    int
	Bytes     int64
	Duration  time.Duration

	Error error
}

// ConnectionEvent reports remote session changes.
type ConnectionEvent struct {
	BaseEvent
	Host      string
	Connected bool
	Error     error
}

// EventBus manages event subscriptions and publishing.
// A nil *EventBus is valid and discards everything, so components can
// publish unconditionally.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. It never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, component string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: newBase(EventLog),
		Level:     level,
		Message:   message,
		Component: component,
		Error:     err,
	})
}

// PublishCursor publishes a pane event.
func (eb *EventBus) PublishCursor(eventType EventType, side, path, oldPath string, count int, err error) {
	eb.Publish(&CursorEvent{
		BaseEvent: newBase(eventType),
		Side:      side,
		Path:      path,
		OldPath:   oldPath,
		Count:     count,
		Error:     err,
	})
}

// PublishTransfer publishes a transfer event; the caller fills the payload.
func (eb *EventBus) PublishTransfer(eventType EventType, ev TransferEvent) {
	ev.BaseEvent = newBase(eventType)
	eb.Publish(&ev)
}

// PublishConnection publishes a remote session change.
func (eb *EventBus) PublishConnection(host string, connected bool, err error) {
	eb.Publish(&ConnectionEvent{
		BaseEvent: newBase(EventConnectionChanged),
		Host:      host,
		Connected: connected,
		Error:     err,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
