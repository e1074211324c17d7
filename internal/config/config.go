package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Notifier kinds.
const (
	NotifierNetconfig = "netconfig"
	NotifierPoll      = "poll"
)

// Config represents configuration data for the status service.
type Config struct {
	Interface           string `yaml:"interface"`
	Notifier            string `yaml:"notifier"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	SettleDelaySeconds  int    `yaml:"settle_delay_seconds"`
	RefreshOnStart      bool   `yaml:"refresh_on_start"`
	DataDirectory       string `yaml:"data_directory"`
	HistoryLimit        int    `yaml:"history_limit"`
	EventBuffer         int    `yaml:"event_buffer"`
	NodeID              string `yaml:"node_id"`
	Peers               []Peer `yaml:"peers"`
	PeerTimeoutSec      int    `yaml:"peer_timeout_seconds"`
	Log                 Log    `yaml:"log"`
}

// Peer defines a remote endpoint that receives forwarded status messages.
type Peer struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Enabled bool   `yaml:"enabled"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "netstatus-local"
	}

	return Config{
		Interface:           "wlan0",
		Notifier:            NotifierNetconfig,
		PollIntervalSeconds: 5,
		SettleDelaySeconds:  3,
		RefreshOnStart:      true,
		DataDirectory:       filepath.Join(".dist", "data"),
		HistoryLimit:        500,
		EventBuffer:         16,
		NodeID:              hostname,
		PeerTimeoutSec:      5,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Interface == "" {
		c.Interface = def.Interface
	}
	if c.Notifier == "" {
		c.Notifier = def.Notifier
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = def.PollIntervalSeconds
	}
	if c.SettleDelaySeconds <= 0 {
		c.SettleDelaySeconds = def.SettleDelaySeconds
	}
	if c.DataDirectory == "" {
		c.DataDirectory = def.DataDirectory
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.NodeID == "" {
		c.NodeID = def.NodeID
	}
	if c.PeerTimeoutSec <= 0 {
		c.PeerTimeoutSec = def.PeerTimeoutSec
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// PeerKeys maps every configured peer id to its API key. Disabled peers are
// included: they receive nothing but may still relay status to this node.
func (c Config) PeerKeys() map[string]string {
	keys := make(map[string]string, len(c.Peers))
	for _, peer := range c.Peers {
		if peer.ID == "" {
			continue
		}
		keys[peer.ID] = peer.APIKey
	}
	return keys
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var err error
	switch c.Notifier {
	case NotifierNetconfig, NotifierPoll:
	default:
		err = multierr.Append(err, fmt.Errorf("notifier must be %q or %q, got %q", NotifierNetconfig, NotifierPoll, c.Notifier))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("log format must be json or console, got %q", c.Log.Format))
	}
	seen := make(map[string]struct{})
	for i, peer := range c.Peers {
		if !peer.Enabled {
			continue
		}
		if peer.ID == "" {
			err = multierr.Append(err, fmt.Errorf("peer %d is missing id", i))
			continue
		}
		if _, dup := seen[peer.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("peer %s is defined twice", peer.ID))
		}
		seen[peer.ID] = struct{}{}
		if peer.BaseURL == "" {
			err = multierr.Append(err, fmt.Errorf("peer %s base_url is required", peer.ID))
		}
	}
	return err
}
