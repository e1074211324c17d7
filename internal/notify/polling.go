package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"v.io/x/lib/netstate"

	"netstatus/internal/models"
)

const defaultPollInterval = 5 * time.Second

// InterfaceState is the part of an interface that the poller compares.
type InterfaceState struct {
	Name  string
	Flags net.Flags
	Addrs []string
}

// PollingSource compares interface state on a fixed interval and emits an
// event whenever it differs from the previous poll.
type PollingSource struct {
	interval time.Duration
	logger   *zap.Logger
	events   chan models.ConnectivityEvent

	clock clock.Clock
	list  func() ([]InterfaceState, error)

	mu          sync.Mutex
	running     bool
	fingerprint string
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewPollingSource creates a poller. Intervals below one second fall back to
// the default.
func NewPollingSource(interval time.Duration, buffer int, logger *zap.Logger) *PollingSource {
	if interval < time.Second {
		interval = defaultPollInterval
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollingSource{
		interval: interval,
		logger:   logger.Named("poll"),
		events:   make(chan models.ConnectivityEvent, buffer),
		clock:    clock.New(),
		list:     listInterfaces,
	}
}

// Start records the current fingerprint and launches the polling loop.
func (p *PollingSource) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	fp, err := p.currentFingerprint()
	if err != nil {
		return err
	}
	p.fingerprint = fp
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.running = true

	// Created here so a mock clock sees the ticker as soon as Start returns.
	ticker := p.clock.Ticker(p.interval)
	go p.run(ticker)

	p.logger.Info("polling network interfaces", zap.Duration("interval", p.interval))
	return nil
}

// Stop requests loop termination and waits until it is done.
func (p *PollingSource) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done
	return nil
}

// Events implements Source.
func (p *PollingSource) Events() <-chan models.ConnectivityEvent {
	return p.events
}

func (p *PollingSource) run(ticker *clock.Ticker) {
	defer close(p.doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-p.stopCh:
			return
		}
	}
}

func (p *PollingSource) poll() {
	fp, err := p.currentFingerprint()
	if err != nil {
		p.logger.Warn("list interfaces", zap.Error(err))
		return
	}

	p.mu.Lock()
	changed := fp != p.fingerprint
	p.fingerprint = fp
	p.mu.Unlock()
	if !changed {
		return
	}

	ev := models.ConnectivityEvent{Source: SourcePoll, ReceivedAt: p.clock.Now().UTC()}
	if !send(p.events, ev) {
		p.logger.Warn("event buffer full, dropping notification")
		return
	}
	p.logger.Debug("interface state changed", zap.String("fingerprint", shortFingerprint(fp)))
}

func (p *PollingSource) currentFingerprint() (string, error) {
	states, err := p.list()
	if err != nil {
		return "", err
	}
	return Fingerprint(states), nil
}

// Fingerprint hashes interface state independent of listing order.
func Fingerprint(states []InterfaceState) string {
	lines := make([]string, 0, len(states))
	for _, st := range states {
		addrs := append([]string(nil), st.Addrs...)
		sort.Strings(addrs)
		lines = append(lines, fmt.Sprintf("%s|%s|%s", st.Name, st.Flags, strings.Join(addrs, ",")))
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

func shortFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}

// listInterfaces refreshes the netstate cache and reads it back, so that the
// platform queries served from the same cache stay current.
func listInterfaces() ([]InterfaceState, error) {
	netstate.InvalidateCache()
	ifcs, err := netstate.GetAllInterfaces()
	if err != nil {
		return nil, err
	}
	states := make([]InterfaceState, 0, len(ifcs))
	for _, ifc := range ifcs {
		st := InterfaceState{Name: ifc.Name(), Flags: ifc.Flags()}
		for _, a := range ifc.Addrs() {
			st.Addrs = append(st.Addrs, a.String())
		}
		states = append(states, st)
	}
	return states, nil
}
