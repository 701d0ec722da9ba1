// Package eventbus is an in-process, multi-subscriber pub/sub for
// incident.created, incident.updated, and source.health events (spec §4.8).
// Delivery is best-effort: a slow subscriber never blocks publish or another
// subscriber, and a full queue drops its oldest event to make room for the
// newest rather than apply backpressure to the clusterer/scheduler.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/observability"
)

// QueueCapacity bounds each subscriber's buffered channel (spec §4.8).
const QueueCapacity = 200

// Bus fans published events out to every live subscription.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New builds an empty Bus.
func New(logger *slog.Logger, metrics *observability.Metrics) *Bus {
	return &Bus{subs: make(map[*Subscription]struct{}), logger: logger, metrics: metrics}
}

// Subscription is one subscriber's bounded event queue.
type Subscription struct {
	name string
	ch   chan model.Event
	bus  *Bus

	mu     sync.Mutex
	closed bool
}

// Subscribe registers a new subscription. name is used only for logging and
// the bus_queue_depth metric label, so subscribers sharing a name are fine
// but will share metric series.
func (b *Bus) Subscribe(name string) *Subscription {
	sub := &Subscription{name: name, ch: make(chan model.Event, QueueCapacity), bus: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Publish calls
// already in flight for this subscription may have enqueued one more event
// before the close; callers should stop reading after Unsubscribe returns.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Publish fans evt out to every current subscriber. A subscriber whose queue
// is full has its oldest buffered event dropped (counted in BusDropped) so
// the newest event always gets through; publish itself never blocks.
func (b *Bus) Publish(evt model.Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(evt, b)
	}
}

func (s *Subscription) deliver(evt model.Event, b *Bus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- evt:
			if b.metrics != nil {
				b.metrics.BusQueueDepth.WithLabelValues(s.name).Set(float64(len(s.ch)))
			}
			return
		default:
			select {
			case dropped := <-s.ch:
				_ = dropped
				if b.metrics != nil {
					b.metrics.BusDropped.Inc()
				}
				if b.logger != nil {
					b.logger.Warn("eventbus: dropping oldest event, subscriber queue full", "subscriber", s.name)
				}
			default:
				// Raced with a concurrent drain; loop back and retry the send.
			}
		}
	}
}

// Events returns the channel to range over for delivered events. It is
// closed when Unsubscribe is called.
func (s *Subscription) Events() <-chan model.Event {
	return s.ch
}
