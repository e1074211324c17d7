package models

import "time"

// ConnectivityEvent signals that the host's connectivity may have changed.
// Nothing in it describes the new state; consumers always re-query.
type ConnectivityEvent struct {
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}

// NetworkSnapshot captures the network state at observation time.
type NetworkSnapshot struct {
	Connected        bool      `json:"connected"`
	InterfaceAddress string    `json:"interface_address"`
	ObservedAt       time.Time `json:"observed_at"`
}
