package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"v.io/x/lib/netconfig"
	"v.io/x/lib/netconfig/osnetconfig"
	"v.io/x/lib/netstate"

	"netstatus/internal/models"
)

// NetconfigSource turns OS network configuration notifications into events.
// The OS notifier batches bursts of changes for the settle delay.
type NetconfigSource struct {
	delay  time.Duration
	logger *zap.Logger
	events chan models.ConnectivityEvent

	// overridable in tests
	install      func(delay time.Duration)
	notifyChange func() (<-chan struct{}, error)
	shutdown     func()
	invalidate   func()
	now          func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewNetconfigSource creates a source backed by v.io/x/lib/netconfig.
func NewNetconfigSource(delay time.Duration, buffer int, logger *zap.Logger) *NetconfigSource {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetconfigSource{
		delay:  delay,
		logger: logger.Named("netconfig"),
		events: make(chan models.ConnectivityEvent, buffer),
		install: func(delay time.Duration) {
			netconfig.SetOSNotifier(osnetconfig.NewNotifier(delay))
		},
		notifyChange: netconfig.NotifyChange,
		shutdown:     netconfig.Shutdown,
		invalidate:   netstate.InvalidateCache,
		now:          time.Now,
	}
}

// Start installs the OS notifier and begins watching.
func (s *NetconfigSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.install(s.delay)
	// Arm before returning so the first change after Start is not missed.
	ch, err := s.notifyChange()
	if err != nil {
		return err
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.wg.Add(1)
	go s.loop(ctx, ch)

	s.logger.Info("watching network configuration", zap.Duration("settle_delay", s.delay))
	return nil
}

// Stop shuts the notifier down and waits for the watch loop to exit.
func (s *NetconfigSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.shutdown()
	s.wg.Wait()
	return nil
}

// Events implements Source.
func (s *NetconfigSource) Events() <-chan models.ConnectivityEvent {
	return s.events
}

func (s *NetconfigSource) loop(ctx context.Context, ch <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
		}
		if ctx.Err() != nil {
			return
		}

		// Re-arm before emitting so a change during handling is not lost.
		next, err := s.notifyChange()
		if err != nil {
			s.logger.Error("re-arm network notifier", zap.Error(err))
			return
		}
		ch = next

		s.invalidate()
		ev := models.ConnectivityEvent{Source: SourceNetconfig, ReceivedAt: s.now().UTC()}
		if !send(s.events, ev) {
			s.logger.Warn("event buffer full, dropping notification")
		}
	}
}
