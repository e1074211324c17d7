package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"netstatus/internal/bus"
	"netstatus/internal/forward"
	"netstatus/internal/history"
	"netstatus/internal/metrics"
	"netstatus/internal/models"
	"netstatus/internal/notify"
)

// StatusStore exposes persisted status history.
type StatusStore interface {
	Latest() (models.StatusEntry, bool)
	HistoryN(n int) []models.StatusEntry
}

// Inbox stores status messages relayed by peers.
type Inbox interface {
	RecordFrom(node string, msg models.StatusMessage) (models.StatusEntry, error)
}

// Snapshotter reads live network state.
type Snapshotter interface {
	Snapshot() (models.NetworkSnapshot, error)
}

// Trigger queues a connectivity event.
type Trigger interface {
	Trigger(source string) bool
}

// PeerReporter exposes forwarding state.
type PeerReporter interface {
	Snapshot() forward.Snapshot
}

// Subscriber hands out bus subscriptions for the live stream.
type Subscriber interface {
	Subscribe(buffer int) (*bus.Subscription, error)
}

// Deps collects the collaborators served over HTTP. Peers, Inbox and
// Gatherer may be nil. PeerKeys maps the node ids allowed to POST status to
// their API key; an empty key accepts the node without a token.
type Deps struct {
	Store    StatusStore
	Inbox    Inbox
	PeerKeys map[string]string
	Monitor  Snapshotter
	Trigger  Trigger
	Peers    PeerReporter
	Bus      Subscriber
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server wraps HTTP serving of the status API and live stream.
type Server struct {
	httpServer   *http.Server
	deps         Deps
	logger       *zap.Logger
	historyLimit int
	now          func() time.Time
}

const (
	maxTimelineMinutes = 7 * 24 * 60
	maxTimelinePoints  = 500
	maxIngestBytes     = 16 << 10
)

// New creates a configured HTTP server.
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:         deps,
		logger:       logger.Named("server"),
		historyLimit: 200,
		now:          time.Now,
	}
	s.registerRoutes(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Serve serves HTTP traffic on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/timeline", s.handleTimeline)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/peers", s.handlePeers)
	mux.HandleFunc("/ws", s.handleStream)
	if s.deps.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet:
		s.handleLatest(w)
	case r.Method == http.MethodPost && s.deps.Inbox != nil:
		s.handleIngest(w, r)
	default:
		allowed := http.MethodGet
		if s.deps.Inbox != nil {
			allowed += ", " + http.MethodPost
		}
		w.Header().Set("Allow", allowed)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleLatest(w http.ResponseWriter) {
	entry, ok := s.deps.Store.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp": nil,
			"message":   nil,
		})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleIngest records a status message forwarded by a peer node.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	node := strings.TrimSpace(r.Header.Get(forward.NodeHeader))
	if node == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing " + forward.NodeHeader})
		return
	}
	key, known := s.deps.PeerKeys[node]
	if !known {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "unknown node"})
		return
	}
	if key != "" && !bearerMatches(r, key) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
		return
	}

	var msg models.StatusMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestBytes)).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	entry, err := s.deps.Inbox.RecordFrom(node, msg)
	if err != nil {
		s.logger.Error("record relayed status", zap.String("node", node), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "record failed"})
		return
	}
	s.logger.Debug("relayed status recorded", zap.String("node", node), zap.String("value", msg.Value))
	writeJSON(w, http.StatusCreated, entry)
}

func bearerMatches(r *http.Request, key string) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, s.deps.Store.HistoryN(limit))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	// Summaries cover everything retained, not just one page.
	writeJSON(w, http.StatusOK, metrics.Summarize(s.deps.Store.HistoryN(0)))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	window := time.Duration(boundedInt(r, "minutes", 60, maxTimelineMinutes)) * time.Minute
	points := boundedInt(r, "points", history.DefaultTimelinePoints, maxTimelinePoints)

	end := s.now().UTC()
	start := end.Add(-window)
	writeJSON(w, http.StatusOK, map[string]any{
		"start":    start,
		"end":      end,
		"timeline": history.BuildAddressTimeline(s.deps.Store.HistoryN(0), start, end, points),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap, err := s.deps.Monitor.Snapshot()
	resp := map[string]any{"snapshot": snap}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if !s.deps.Trigger.Trigger(notify.SourceManual) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "refresh queue full"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.deps.Peers == nil {
		writeJSON(w, http.StatusOK, forward.Snapshot{GeneratedAt: time.Now().UTC(), Peers: []forward.PeerState{}})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Peers.Snapshot())
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func boundedInt(r *http.Request, key string, fallback, limit int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || value <= 0 {
		return fallback
	}
	if value > limit {
		return limit
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
