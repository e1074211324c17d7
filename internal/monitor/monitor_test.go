package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"netstatus/internal/metrics"
	"netstatus/internal/models"
	"netstatus/internal/platform"
)

type fakeConn struct {
	active bool
	err    error
}

func (f *fakeConn) ActiveNetwork() (bool, error) { return f.active, f.err }

type fakeWifi struct {
	raw       uint32
	rawErr    error
	formatErr error
	reads     int
}

func (f *fakeWifi) RawAddress() (uint32, error) {
	f.reads++
	return f.raw, f.rawErr
}

func (f *fakeWifi) FormatAddress(raw uint32) (string, error) {
	if f.formatErr != nil {
		return "", f.formatErr
	}
	return platform.FormatIPv4(raw), nil
}

type fakeSink struct {
	mu   sync.Mutex
	msgs []models.StatusMessage
}

func (s *fakeSink) Emit(msg models.StatusMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *fakeSink) messages() []models.StatusMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StatusMessage(nil), s.msgs...)
}

type fakeRecorder struct {
	mu            sync.Mutex
	notifications []string
	outcomes      []string
}

func (r *fakeRecorder) Notification(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, source)
}

func (r *fakeRecorder) Observation(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func newTestMonitor(t *testing.T, conn *fakeConn, wifi *fakeWifi) (*Monitor, *fakeSink, *fakeRecorder) {
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	return New(conn, wifi, sink, rec, zaptest.NewLogger(t)), sink, rec
}

func TestNoActiveNetworkEmitsNothing(t *testing.T) {
	wifi := &fakeWifi{raw: 0x0A00000A}
	m, sink, rec := newTestMonitor(t, &fakeConn{active: false}, wifi)

	m.OnConnectivityChanged()

	assert.Empty(t, sink.messages())
	assert.Zero(t, wifi.reads, "wifi is not queried without an active network")
	assert.Equal(t, []string{metrics.OutcomeDisconnected}, rec.outcomes)
}

func TestActiveNetworkPublishesAddress(t *testing.T) {
	m, sink, rec := newTestMonitor(t, &fakeConn{active: true}, &fakeWifi{raw: 0x0A00000A})

	m.OnConnectivityChanged()

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	data, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":{"IP_ADDRESS":"10.0.0.10"}}`, string(data))
	assert.Equal(t, []string{metrics.OutcomePublished}, rec.outcomes)
}

func TestFormatsFourByteAddress(t *testing.T) {
	raw, err := platform.ParseIPv4("192.168.1.10")
	require.NoError(t, err)
	m, sink, _ := newTestMonitor(t, &fakeConn{active: true}, &fakeWifi{raw: raw})

	m.OnConnectivityChanged()

	require.Len(t, sink.messages(), 1)
	assert.Equal(t, "192.168.1.10", sink.messages()[0].Value)
}

func TestRepeatedCallsAreNotDeduplicated(t *testing.T) {
	m, sink, _ := newTestMonitor(t, &fakeConn{active: true}, &fakeWifi{raw: 0x0A00000A})

	m.OnConnectivityChanged()
	m.OnConnectivityChanged()

	msgs := sink.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, msgs[0], msgs[1])
}

func TestUnresolvedAddressPublishesEmptyString(t *testing.T) {
	m, sink, _ := newTestMonitor(t, &fakeConn{active: true}, &fakeWifi{raw: 0})

	m.OnConnectivityChanged()

	require.Len(t, sink.messages(), 1)
	assert.Equal(t, models.StatusMessage{Key: models.StatusKeyIPAddress, Value: ""}, sink.messages()[0])
}

func TestFormatErrorEmitsNothing(t *testing.T) {
	wifi := &fakeWifi{raw: 0x0A00000A, formatErr: errors.New("format failed")}
	m, sink, rec := newTestMonitor(t, &fakeConn{active: true}, wifi)

	assert.NotPanics(t, m.OnConnectivityChanged)
	assert.Empty(t, sink.messages())
	assert.Equal(t, []string{metrics.OutcomeQueryError}, rec.outcomes)
}

func TestMessageBuildErrorEmitsNothing(t *testing.T) {
	m, sink, rec := newTestMonitor(t, &fakeConn{active: true}, &fakeWifi{raw: 0x0A00000A})
	m.key = ""

	assert.NotPanics(t, m.OnConnectivityChanged)
	assert.Empty(t, sink.messages())
	assert.Equal(t, []string{metrics.OutcomeEncodeError}, rec.outcomes)

	m.key = models.StatusKeyIPAddress
	m.OnConnectivityChanged()
	assert.Len(t, sink.messages(), 1)
}

func TestPlatformFailuresEmitNothing(t *testing.T) {
	tests := []struct {
		name string
		conn *fakeConn
		wifi *fakeWifi
	}{
		{"connectivity query", &fakeConn{err: errors.New("service unavailable")}, &fakeWifi{raw: 1}},
		{"wifi query", &fakeConn{active: true}, &fakeWifi{rawErr: errors.New("no wifi manager")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sink, _ := newTestMonitor(t, tt.conn, tt.wifi)

			m.OnConnectivityChanged()
			assert.Empty(t, sink.messages())

			// Still usable once the platform recovers.
			tt.conn.err, tt.conn.active = nil, true
			tt.wifi.rawErr, tt.wifi.raw = nil, 0x0A00000A
			m.OnConnectivityChanged()
			assert.Len(t, sink.messages(), 1)
		})
	}
}

func TestSnapshot(t *testing.T) {
	m, _, _ := newTestMonitor(t, &fakeConn{active: true}, &fakeWifi{raw: 0x0A00000A})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, models.NetworkSnapshot{Connected: true, InterfaceAddress: "10.0.0.10", ObservedAt: fixed}, snap)

	m.conn = &fakeConn{err: errors.New("boom")}
	snap, err = m.Snapshot()
	assert.Error(t, err)
	assert.False(t, snap.Connected)
}

func TestRunHandlesEachEvent(t *testing.T) {
	m, sink, rec := newTestMonitor(t, &fakeConn{active: true}, &fakeWifi{raw: 0x0A00000A})

	events := make(chan models.ConnectivityEvent, 3)
	events <- models.ConnectivityEvent{Source: "poll"}
	events <- models.ConnectivityEvent{Source: "manual"}
	close(events)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the channel closed")
	}
	assert.Len(t, sink.messages(), 2)
	assert.Equal(t, []string{"poll", "manual"}, rec.notifications)
}

func TestRunStopsOnCancel(t *testing.T) {
	m, _, _ := newTestMonitor(t, &fakeConn{}, &fakeWifi{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx, make(chan models.ConnectivityEvent))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNilRecorder(t *testing.T) {
	sink := &fakeSink{}
	m := New(&fakeConn{active: true}, &fakeWifi{raw: 0x0A00000A}, sink, nil, nil)

	m.OnConnectivityChanged()
	assert.Len(t, sink.messages(), 1)
}
