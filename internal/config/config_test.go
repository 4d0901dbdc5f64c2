package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0.10, cfg.Monitor.StorageLowRatio)
}

func TestLoad_MissingFilesUseDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, Default().Monitor, cfg.Monitor)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workgate.yaml")
	content := `
server:
  addr: ":9090"
log:
  level: debug
monitor:
  network_poll: 1s
  network_metered: true
  storage_low_ratio: 0.2
scheduler:
  tick_interval: 500ms
nats:
  url: nats://localhost:4222
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Monitor.NetworkPoll)
	assert.True(t, cfg.Monitor.NetworkMetered)
	assert.Equal(t, 0.2, cfg.Monitor.StorageLowRatio)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.TickInterval)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	// Untouched fields keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Monitor.BatteryPoll)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))
	_, err := Load(path, "")
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"WORKGATE_ADDR":              ":7000",
		"WORKGATE_NETWORK_POLL":      "250ms",
		"WORKGATE_NETWORK_ROAMING":   "true",
		"WORKGATE_STORAGE_LOW_RATIO": "0.05",
		"WORKGATE_NATS_URL":          "nats://n:4222",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.NetworkPoll)
	assert.True(t, cfg.Monitor.NetworkRoaming)
	assert.Equal(t, 0.05, cfg.Monitor.StorageLowRatio)
	assert.Equal(t, "nats://n:4222", cfg.NATS.URL)
}

func TestApplyEnv_BadDuration(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "WORKGATE_TICK_INTERVAL" {
			return "soon", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKGATE_TICK_INTERVAL")
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WORKGATE_LOG_FORMAT=json\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("WORKGATE_LOG_FORMAT") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero network poll", func(c *Config) { c.Monitor.NetworkPoll = 0 }},
		{"ratio too high", func(c *Config) { c.Monitor.StorageLowRatio = 1 }},
		{"negative ratio", func(c *Config) { c.Monitor.StorageLowRatio = -0.1 }},
		{"zero tick", func(c *Config) { c.Scheduler.TickInterval = 0 }},
		{"negative refresh", func(c *Config) { c.Scheduler.RefreshInterval = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
