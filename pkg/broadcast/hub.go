package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/telemetria/pkg/ctdf"
)

const DefaultBufferSize = 64

// Sink receives committed events from a Hub subscription, one at a time and in
// commit order.
type Sink interface {
	Deliver(ctx context.Context, event ctdf.TelemetryEvent) error
}

type SinkFunc func(ctx context.Context, event ctdf.TelemetryEvent) error

func (f SinkFunc) Deliver(ctx context.Context, event ctdf.TelemetryEvent) error {
	return f(ctx, event)
}

type Subscription struct {
	ID   uint64
	Name string

	C <-chan ctdf.TelemetryEvent

	channel chan ctdf.TelemetryEvent
	dropped atomic.Uint64
}

// Dropped is the number of events this observer missed because its buffer was
// full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Hub fans committed events out to every subscribed observer. Publish never
// blocks: each observer has its own buffer and a full buffer loses that event.
type Hub struct {
	mutex         sync.RWMutex
	subscriptions map[uint64]*Subscription
	nextID        uint64
	closed        bool

	bufferSize int
	sinks      conc.WaitGroup

	published atomic.Uint64
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Hub{
		subscriptions: map[uint64]*Subscription{},
		bufferSize:    bufferSize,
	}
}

// Subscribe registers a new observer. Only events published after this call
// are delivered to it.
func (h *Hub) Subscribe(name string) *Subscription {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.nextID++
	channel := make(chan ctdf.TelemetryEvent, h.bufferSize)
	subscription := &Subscription{
		ID:      h.nextID,
		Name:    name,
		C:       channel,
		channel: channel,
	}

	if h.closed {
		close(channel)
		return subscription
	}

	h.subscriptions[subscription.ID] = subscription

	log.Debug().Uint64("id", subscription.ID).Str("observer", name).Msg("Observer subscribed")

	return subscription
}

// Unsubscribe removes the observer and closes its channel. Calling it more than
// once is harmless.
func (h *Hub) Unsubscribe(subscription *Subscription) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.subscriptions[subscription.ID]; !exists {
		return
	}

	delete(h.subscriptions, subscription.ID)
	close(subscription.channel)

	log.Debug().Uint64("id", subscription.ID).Str("observer", subscription.Name).Msg("Observer unsubscribed")
}

func (h *Hub) Publish(event ctdf.TelemetryEvent) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	h.published.Add(1)

	for _, subscription := range h.subscriptions {
		select {
		case subscription.channel <- event:
		default:
			subscription.dropped.Add(1)

			log.Debug().
				Uint64("id", subscription.ID).
				Str("observer", subscription.Name).
				Msg("Observer buffer full, dropping event")
		}
	}
}

// Attach subscribes sink to the hub and delivers to it on its own goroutine
// until ctx is done or the hub is closed. Delivery errors are logged and the
// event is not retried.
func (h *Hub) Attach(ctx context.Context, name string, sink Sink) *Subscription {
	subscription := h.Subscribe(name)

	h.sinks.Go(func() {
		for {
			select {
			case <-ctx.Done():
				h.Unsubscribe(subscription)
				return
			case event, ok := <-subscription.C:
				if !ok {
					return
				}

				if err := sink.Deliver(ctx, event); err != nil {
					log.Error().Err(err).Str("sink", name).Msg("Failed to deliver telemetry event")
				}
			}
		}
	})

	return subscription
}

func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.subscriptions)
}

func (h *Hub) Published() uint64 {
	return h.published.Load()
}

// Close unsubscribes every observer and waits for attached sinks to finish the
// events already buffered for them.
func (h *Hub) Close() {
	h.mutex.Lock()
	h.closed = true
	for id, subscription := range h.subscriptions {
		delete(h.subscriptions, id)
		close(subscription.channel)
	}
	h.mutex.Unlock()

	h.sinks.Wait()
}
