package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "wlan0", cfg.Interface)
	assert.True(t, cfg.RefreshOnStart)
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
interface: wlp2s0
notifier: poll
poll_interval_seconds: 0
refresh_on_start: false
node_id: robot-7
peers:
  - id: controller
    base_url: http://10.0.0.1:8080
    enabled: true
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wlp2s0", cfg.Interface)
	assert.Equal(t, NotifierPoll, cfg.Notifier)
	assert.Equal(t, 5, cfg.PollIntervalSeconds)
	assert.False(t, cfg.RefreshOnStart)
	assert.Equal(t, "robot-7", cfg.NodeID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, "controller", cfg.Peers[0].ID)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "interface: [unterminated"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidateReportsAllProblems(t *testing.T) {
	path := writeConfig(t, `
notifier: dbus
log:
  format: xml
peers:
  - base_url: http://a
    enabled: true
  - id: b
    enabled: true
  - id: b
    base_url: http://b
    enabled: true
  - id: ignored
    enabled: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 5)
	assert.ErrorContains(t, err, `notifier must be`)
	assert.ErrorContains(t, err, `log format`)
	assert.ErrorContains(t, err, `peer 0 is missing id`)
	assert.ErrorContains(t, err, `peer b base_url is required`)
	assert.ErrorContains(t, err, `peer b is defined twice`)
}

func TestPeerKeys(t *testing.T) {
	cfg := Config{Peers: []Peer{
		{ID: "controller", APIKey: "secret", Enabled: true},
		{ID: "relay-only", Enabled: false},
		{Name: "anonymous"},
	}}
	assert.Equal(t, map[string]string{"controller": "secret", "relay-only": ""}, cfg.PeerKeys())
}
