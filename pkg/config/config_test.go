package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/slotsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	rng, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, types.Date("2025-08-29"), rng.Start)
	assert.Equal(t, types.Date("2025-09-19"), rng.End)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schedule:
  start_date: "2025-12-20"
  end_date: "2026-01-02"
  roster: [Ana, Bo]
client:
  request_timeout: 3s
  resync_interval: 1m
log:
  json: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ana", "Bo"}, cfg.Schedule.Roster)
	assert.Equal(t, 3*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.Client.ResyncInterval)
	assert.Equal(t, 2*time.Second, cfg.Client.ReconnectDelay)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)

	rng, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, 14, rng.Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad start", mutate: func(c *Config) { c.Schedule.StartDate = "08/29/2025" }},
		{name: "end before start", mutate: func(c *Config) { c.Schedule.EndDate = "2025-08-01" }},
		{name: "empty roster", mutate: func(c *Config) { c.Schedule.Roster = []string{} }},
		{name: "blank name", mutate: func(c *Config) { c.Schedule.Roster = []string{"Karen", " "} }},
		{name: "duplicate name", mutate: func(c *Config) { c.Schedule.Roster = []string{"Karen", "Karen"} }},
		{name: "negative timeout", mutate: func(c *Config) { c.Client.RequestTimeout = -time.Second }},
		{name: "negative resync", mutate: func(c *Config) { c.Client.ResyncInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  roster: [Karen, Karen]\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slotsync.yaml")
	cfg := DefaultConfig()
	cfg.Client.ResyncInterval = 30 * time.Second

	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
