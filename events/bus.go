package events

import (
	"log/slog"
	"sync"

	"github.com/onnwee/lurk-tender/backend/telemetry"
)

// Bus fans events out to named subscribers. Delivery is in publish order per
// subscriber. Publish never blocks: a subscriber that falls behind its buffer
// loses the event, which is logged and counted rather than stalling the
// extractor (page observation must never back up).
type Bus struct {
	mu     sync.Mutex
	subs   []*subscriber
	closed bool
}

type subscriber struct {
	name string
	ch   chan Event
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a consumer. The returned channel is closed when the bus
// closes. Buffer sizes the subscriber's backlog tolerance.
func (b *Bus) Subscribe(name string, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscriber{name: name, ch: make(chan Event, buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish delivers ev to every subscriber in registration order.
func (b *Bus) Publish(ev Event) {
	telemetry.ObserveEvent(string(ev.Kind))
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			if telemetry.BusDropped != nil {
				telemetry.BusDropped.Inc()
			}
			slog.Warn("event bus: subscriber overflow, dropping event",
				slog.String("subscriber", sub.name), slog.String("kind", string(ev.Kind)))
		}
	}
}

// Close closes all subscriber channels. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
