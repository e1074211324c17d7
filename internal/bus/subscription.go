package bus

import (
	"sync"

	"netstatus/internal/models"
)

// Subscription is a buffered stream of status messages.
type Subscription struct {
	bus  *Bus
	out  chan models.StatusMessage
	once sync.Once
}

// Out returns the delivery channel. It is closed by Close or Bus.Close.
func (s *Subscription) Out() <-chan models.StatusMessage {
	return s.out
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}
