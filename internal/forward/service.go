// Package forward relays published status messages to remote peers over
// HTTP. Delivery is best effort: failures are logged and counted, never
// retried, and never reported back to the publisher.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"netstatus/internal/config"
	"netstatus/internal/models"
)

// NodeHeader carries the sending node's id on forwarded messages.
const NodeHeader = "X-Node-ID"

const (
	statusPath       = "/api/status"
	defaultTimeout   = 5 * time.Second
	maxParallelPeers = 8
)

// Recorder counts deliveries. *metrics.Collector satisfies it.
type Recorder interface {
	Forward(peer string, ok bool)
}

// Service forwards status messages to every enabled peer.
type Service struct {
	nodeID   string
	peers    []config.Peer
	timeout  time.Duration
	client   *http.Client
	recorder Recorder
	logger   *zap.Logger

	mu    sync.RWMutex
	state map[string]PeerState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService initialises the forwarder for the enabled peers in cfg.
func NewService(cfg config.Config, recorder Recorder, logger *zap.Logger) *Service {
	timeout := time.Duration(cfg.PeerTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	s := &Service{
		nodeID:   cfg.NodeID,
		timeout:  timeout,
		client:   &http.Client{Transport: transport, Timeout: timeout},
		recorder: recorder,
		logger:   logger.Named("forward"),
		state:    make(map[string]PeerState),
	}
	for _, peer := range cfg.Peers {
		if !peer.Enabled {
			continue
		}
		s.peers = append(s.peers, peer)
		s.state[peer.ID] = PeerState{ID: peer.ID, Name: resolveName(peer.Name, peer.ID), BaseURL: peer.BaseURL}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Enabled reports whether any peer is configured.
func (s *Service) Enabled() bool {
	return len(s.peers) > 0
}

// Start forwards every message from in until it closes or Stop is called.
func (s *Service) Start(in <-chan models.StatusMessage) {
	s.wg.Add(1)
	go s.run(in)
}

// Stop terminates forwarding and waits for in-flight deliveries.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) run(in <-chan models.StatusMessage) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			if err := s.Forward(s.ctx, msg); err != nil {
				s.logger.Warn("forward status", zap.Error(err))
			}
		}
	}
}

// Forward posts msg to all peers concurrently. The returned error combines
// every failed delivery.
func (s *Service) Forward(ctx context.Context, msg models.StatusMessage) error {
	if len(s.peers) == 0 {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	var (
		errMu sync.Mutex
		errs  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPeers)
	for _, peer := range s.peers {
		peer := peer
		g.Go(func() error {
			perr := s.post(gctx, peer, body)
			s.update(peer, msg, perr)
			if perr != nil {
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("peer %s: %w", peer.ID, perr))
				errMu.Unlock()
			}
			// Peers are independent; one failure must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (s *Service) post(ctx context.Context, peer config.Peer, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := strings.TrimSuffix(peer.BaseURL, "/") + statusPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.nodeID != "" {
		req.Header.Set(NodeHeader, s.nodeID)
	}
	if peer.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+peer.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) update(peer config.Peer, msg models.StatusMessage, err error) {
	if s.recorder != nil {
		s.recorder.Forward(peer.ID, err == nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state[peer.ID]
	st.LastAttempt = time.Now().UTC()
	if err != nil {
		st.Failed++
		st.LastError = err.Error()
	} else {
		st.Delivered++
		st.LastValue = msg.Value
		st.LastError = ""
	}
	s.state[peer.ID] = st
}

// Snapshot returns the per-peer delivery state ordered by peer id.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	peers := make([]PeerState, 0, len(s.state))
	for _, st := range s.state {
		peers = append(peers, st)
	}
	s.mu.RUnlock()

	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return Snapshot{
		GeneratedAt: time.Now().UTC(),
		NodeID:      s.nodeID,
		Peers:       peers,
	}
}

func resolveName(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
