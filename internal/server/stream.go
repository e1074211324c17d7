package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"netstatus/internal/models"
)

const (
	streamBuffer       = 32
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// handleStream pushes every published status message to the client as
// {"status":{...}} text frames, starting with the latest stored one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Bus.Subscribe(streamBuffer)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	defer sub.Close()

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveStream(conn, sub.Out())
}

func (s *Server) serveStream(conn *websocket.Conn, in <-chan models.StatusMessage) {
	defer conn.Close()

	if entry, ok := s.deps.Store.Latest(); ok {
		if err := writeStatus(conn, entry.Message); err != nil {
			return
		}
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-in:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			if err := writeStatus(conn, msg); err != nil {
				s.logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeStatus(conn *websocket.Conn, msg models.StatusMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(msg)
}
