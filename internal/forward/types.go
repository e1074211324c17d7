package forward

import "time"

// PeerState stores the outcome of the last delivery to a peer.
type PeerState struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	BaseURL     string    `json:"base_url"`
	Delivered   int       `json:"delivered"`
	Failed      int       `json:"failed"`
	LastValue   string    `json:"last_value,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastAttempt time.Time `json:"last_attempt"`
}

// Snapshot is returned by /api/peers.
type Snapshot struct {
	GeneratedAt time.Time   `json:"generated_at"`
	NodeID      string      `json:"node_id"`
	Peers       []PeerState `json:"peers"`
}
