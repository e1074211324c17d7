package notify

import (
	"time"

	"netstatus/internal/models"
)

// Manual emits events on request, e.g. from the HTTP refresh endpoint.
type Manual struct {
	events chan models.ConnectivityEvent
	now    func() time.Time
}

// NewManual creates a manual trigger with the given buffer.
func NewManual(buffer int) *Manual {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Manual{
		events: make(chan models.ConnectivityEvent, buffer),
		now:    time.Now,
	}
}

// Trigger queues an event tagged with source. It reports false when the
// queue is full.
func (m *Manual) Trigger(source string) bool {
	if source == "" {
		source = SourceManual
	}
	return send(m.events, models.ConnectivityEvent{Source: source, ReceivedAt: m.now().UTC()})
}

// Events returns the trigger channel.
func (m *Manual) Events() <-chan models.ConnectivityEvent {
	return m.events
}
