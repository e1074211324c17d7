// Package notify delivers connectivity-change signals to the status monitor.
//
// Sources only say that something may have changed; they never describe the
// new state. Before emitting, a source invalidates the netstate cache so the
// monitor's next read sees fresh interface data.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"netstatus/internal/config"
	"netstatus/internal/models"
)

// Source names.
const (
	SourceNetconfig = "netconfig"
	SourcePoll      = "poll"
	SourceManual    = "manual"
	SourceStartup   = "startup"
)

const defaultBuffer = 16

// Source produces connectivity events until stopped.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan models.ConnectivityEvent
}

// New returns the source selected by cfg.Notifier.
func New(cfg config.Config, logger *zap.Logger) (Source, error) {
	switch cfg.Notifier {
	case config.NotifierNetconfig:
		return NewNetconfigSource(time.Duration(cfg.SettleDelaySeconds)*time.Second, cfg.EventBuffer, logger), nil
	case config.NotifierPoll:
		return NewPollingSource(time.Duration(cfg.PollIntervalSeconds)*time.Second, cfg.EventBuffer, logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}

// send delivers ev without blocking. It reports false when the buffer is full.
func send(ch chan<- models.ConnectivityEvent, ev models.ConnectivityEvent) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}
