package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WORKGATE_"

// Config holds configuration for the workgate daemon.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	NATS      NATSConfig      `yaml:"nats"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address (default ":8080")
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StoreConfig configures the job store.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database path (default ~/.workgate/workgate.db, ":memory:" for testing)
}

// MonitorConfig configures the OS state monitors behind each tracker.
type MonitorConfig struct {
	NetworkPoll time.Duration `yaml:"network_poll"`
	BatteryPoll time.Duration `yaml:"battery_poll"`
	StoragePoll time.Duration `yaml:"storage_poll"`

	// Linux does not expose metered/roaming flags; operators declare them.
	NetworkMetered bool `yaml:"network_metered"`
	NetworkRoaming bool `yaml:"network_roaming"`

	// PowerSupplyRoot is the sysfs directory listing power supplies.
	PowerSupplyRoot string `yaml:"power_supply_root"`

	// StoragePath is the directory whose volume is checked for free space.
	// Empty means the directory holding the store.
	StoragePath string `yaml:"storage_path"`
	// StorageLowRatio is the free/total ratio at or below which storage is low.
	StorageLowRatio float64 `yaml:"storage_low_ratio"`
}

// SchedulerConfig configures the dispatch loop.
type SchedulerConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// NATSConfig configures optional delta publishing. Empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Monitor: MonitorConfig{
			NetworkPoll:     5 * time.Second,
			BatteryPoll:     30 * time.Second,
			StoragePoll:     time.Minute,
			PowerSupplyRoot: "/sys/class/power_supply",
			StorageLowRatio: 0.10,
		},
		Scheduler: SchedulerConfig{
			TickInterval:    2 * time.Second,
			RefreshInterval: 30 * time.Second,
		},
		NATS: NATSConfig{SubjectPrefix: "workgate.constraints"},
	}
}

// Load builds a Config from defaults, an optional .env file, an optional
// YAML file and WORKGATE_* environment variables, in that order.
// Missing files are not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables looked up via lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DB", &c.Store.Path)
	str("STORAGE_PATH", &c.Monitor.StoragePath)
	str("POWER_SUPPLY_ROOT", &c.Monitor.PowerSupplyRoot)
	str("NATS_URL", &c.NATS.URL)
	str("NATS_SUBJECT_PREFIX", &c.NATS.SubjectPrefix)

	for name, dst := range map[string]*time.Duration{
		"NETWORK_POLL":     &c.Monitor.NetworkPoll,
		"BATTERY_POLL":     &c.Monitor.BatteryPoll,
		"STORAGE_POLL":     &c.Monitor.StoragePoll,
		"TICK_INTERVAL":    &c.Scheduler.TickInterval,
		"REFRESH_INTERVAL": &c.Scheduler.RefreshInterval,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}
	if err := boolean("NETWORK_METERED", &c.Monitor.NetworkMetered); err != nil {
		return err
	}
	if err := boolean("NETWORK_ROAMING", &c.Monitor.NetworkRoaming); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "STORAGE_LOW_RATIO"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sSTORAGE_LOW_RATIO: %w", EnvPrefix, err)
		}
		c.Monitor.StorageLowRatio = f
	}
	return nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Monitor.NetworkPoll <= 0 || c.Monitor.BatteryPoll <= 0 || c.Monitor.StoragePoll <= 0 {
		return fmt.Errorf("monitor poll intervals must be positive")
	}
	if c.Monitor.StorageLowRatio < 0 || c.Monitor.StorageLowRatio >= 1 {
		return fmt.Errorf("storage_low_ratio must be in [0, 1), got %v", c.Monitor.StorageLowRatio)
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler tick_interval must be positive")
	}
	if c.Scheduler.RefreshInterval < 0 {
		return fmt.Errorf("scheduler refresh_interval must not be negative")
	}
	return nil
}
