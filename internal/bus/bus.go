// Package bus fans status messages out to in-process subscribers.
//
// Emit never blocks: a subscriber whose buffer is full misses the message and
// the drop is counted. Publishers do not learn about delivery.
package bus

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"netstatus/internal/models"
)

// ErrClosed is returned when subscribing to a closed bus.
var ErrClosed = errors.New("bus closed")

const defaultBuffer = 16

// Observer receives bus counters. Implemented by metrics.Collector.
type Observer interface {
	Published()
	Dropped()
}

// Bus is a fire-and-forget publish/subscribe hub for status messages.
type Bus struct {
	logger   *zap.Logger
	observer Observer

	mu     sync.RWMutex
	sinks  []*Subscription
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
}

// New creates an empty bus. observer may be nil.
func New(logger *zap.Logger, observer Observer) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger.Named("bus"), observer: observer}
}

// Subscribe registers a subscriber with the given buffer size.
func (b *Bus) Subscribe(buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &Subscription{bus: b, out: make(chan models.StatusMessage, buffer)}
	b.sinks = append(b.sinks, sub)
	return sub, nil
}

// Emit delivers msg to every subscriber that has room for it.
func (b *Bus) Emit(msg models.StatusMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	b.published.Add(1)
	if b.observer != nil {
		b.observer.Published()
	}
	for _, sub := range b.sinks {
		select {
		case sub.out <- msg:
		default:
			n := b.dropped.Add(1)
			if b.observer != nil {
				b.observer.Dropped()
			}
			b.logger.Warn("subscriber buffer full, dropping message",
				zap.String("key", msg.Key),
				zap.Int64("dropped_total", n))
		}
	}
}

// Published returns how many messages were emitted.
func (b *Bus) Published() int64 {
	return b.published.Load()
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks)
}

// Close closes every subscription. Later Emit calls are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.sinks {
		close(sub.out)
	}
	b.sinks = nil
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.sinks {
		if s == sub {
			b.sinks = append(b.sinks[:i], b.sinks[i+1:]...)
			close(sub.out)
			return
		}
	}
}
