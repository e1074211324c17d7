// Package monitor turns connectivity-change notifications into IP_ADDRESS
// status messages.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"netstatus/internal/metrics"
	"netstatus/internal/models"
	"netstatus/internal/platform"
)

// Publisher accepts status messages. Delivery is fire-and-forget.
type Publisher interface {
	Emit(models.StatusMessage)
}

// Recorder counts monitor activity. *metrics.Collector satisfies it.
type Recorder interface {
	Notification(source string)
	Observation(outcome string)
}

// Monitor re-reads network state on every notification and publishes the
// Wi-Fi address while a network is active. It keeps no state between calls.
type Monitor struct {
	conn     platform.ConnectivityQuery
	wifi     platform.WifiAddressQuery
	sink     Publisher
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	// key is the status key published for the address.
	key string
}

// New creates a monitor. recorder may be nil.
func New(conn platform.ConnectivityQuery, wifi platform.WifiAddressQuery, sink Publisher, recorder Recorder, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		conn:     conn,
		wifi:     wifi,
		sink:     sink,
		recorder: recorder,
		logger:   logger.Named("monitor"),
		now:      time.Now,
		key:      models.StatusKeyIPAddress,
	}
}

// Snapshot reads the current network state. On a connectivity query failure
// the returned snapshot reports no active network.
func (m *Monitor) Snapshot() (models.NetworkSnapshot, error) {
	snap := models.NetworkSnapshot{ObservedAt: m.now().UTC()}

	active, err := m.conn.ActiveNetwork()
	if err != nil {
		return snap, fmt.Errorf("query active network: %w", err)
	}
	if !active {
		return snap, nil
	}

	raw, err := m.wifi.RawAddress()
	if err != nil {
		return snap, fmt.Errorf("read wifi address: %w", err)
	}
	addr, err := m.wifi.FormatAddress(raw)
	if err != nil {
		return snap, fmt.Errorf("format wifi address %#08x: %w", raw, err)
	}

	snap.Connected = true
	snap.InterfaceAddress = addr
	return snap, nil
}

// OnConnectivityChanged publishes the current Wi-Fi address if a network is
// active. Failures are logged and nothing is published.
func (m *Monitor) OnConnectivityChanged() {
	snap, err := m.Snapshot()
	if err != nil {
		m.record(metrics.OutcomeQueryError)
		m.logger.Warn("network snapshot failed", zap.Error(err))
		return
	}
	if !snap.Connected {
		m.record(metrics.OutcomeDisconnected)
		m.logger.Debug("no active network")
		return
	}

	msg, err := models.NewStatusMessage(m.key, snap.InterfaceAddress)
	if err != nil {
		m.record(metrics.OutcomeEncodeError)
		m.logger.Error("build status message", zap.Error(err))
		return
	}

	m.sink.Emit(msg)
	m.record(metrics.OutcomePublished)
	m.logger.Debug("status published", zap.String("address", snap.InterfaceAddress))
}

// Run calls OnConnectivityChanged once per event until ctx is done or events
// is closed. Calls never overlap.
func (m *Monitor) Run(ctx context.Context, events <-chan models.ConnectivityEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if m.recorder != nil {
				m.recorder.Notification(ev.Source)
			}
			m.logger.Debug("connectivity changed", zap.String("source", ev.Source))
			m.OnConnectivityChanged()
		}
	}
}

func (m *Monitor) record(outcome string) {
	if m.recorder != nil {
		m.recorder.Observation(outcome)
	}
}
