package events

import (
	"sync"
	"time"
)

// EventType represents the kinds of events the engine and scanner emit.
type EventType string

const (
	EventSignalDetected   EventType = "SIGNAL_DETECTED"
	EventSignalAccepted   EventType = "SIGNAL_ACCEPTED"
	EventAnalyzerDegraded EventType = "ANALYZER_DEGRADED"
	EventScanCompleted    EventType = "SCAN_COMPLETED"
	EventError            EventType = "ERROR"
)

// Event is a single bus message.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles events.
type Subscriber func(Event)

// Bus manages event publishing and subscriptions. Subscribers run in their
// own goroutines so a slow consumer never blocks analysis.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event type.
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish delivers an event to all matching subscribers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishSignalDetected publishes a trend-change signal emitted by an
// analyzer source.
func (b *Bus) PublishSignalDetected(symbol, signalType, source string, strength, confidence, priceLevel float64) {
	b.Publish(Event{
		Type: EventSignalDetected,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"signal_type": signalType,
			"source":      source,
			"strength":    strength,
			"confidence":  confidence,
			"price_level": priceLevel,
		},
	})
}

// PublishSignalAccepted publishes a signal that passed the confidence and
// alignment gates.
func (b *Bus) PublishSignalAccepted(symbol, signalType string, confidence float64) {
	b.Publish(Event{
		Type: EventSignalAccepted,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"signal_type": signalType,
			"confidence":  confidence,
		},
	})
}

// PublishAnalyzerDegraded records an analyzer whose contribution was omitted
// from a fusion pass.
func (b *Bus) PublishAnalyzerDegraded(symbol, source, reason string) {
	b.Publish(Event{
		Type: EventAnalyzerDegraded,
		Data: map[string]interface{}{
			"symbol": symbol,
			"source": source,
			"reason": reason,
		},
	})
}

// PublishScanCompleted summarizes one scan cycle.
func (b *Bus) PublishScanCompleted(scanID string, symbols, signals int, took time.Duration) {
	b.Publish(Event{
		Type: EventScanCompleted,
		Data: map[string]interface{}{
			"scan_id":  scanID,
			"symbols":  symbols,
			"signals":  signals,
			"duration": took.String(),
		},
	})
}

// PublishError publishes a non-fatal error.
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: EventError, Data: data})
}
