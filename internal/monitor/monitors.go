package monitor

import (
	"log/slog"

	"github.com/me/workgate/internal/config"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// Factories returns the monitor factories for a tracker registry. An empty
// storage path disables the storage monitor.
func Factories(cfg config.MonitorConfig, storagePath string, logger *slog.Logger) tracker.Monitors {
	m := tracker.Monitors{
		Network: func() tracker.Monitor[model.NetworkState] {
			return NewNetwork(NetworkOptions{
				Interval: cfg.NetworkPoll,
				Metered:  cfg.NetworkMetered,
				Roaming:  cfg.NetworkRoaming,
			}, logger)
		},
		Battery: func() tracker.Monitor[model.BatteryState] {
			return NewBattery(BatteryOptions{Interval: cfg.BatteryPoll, Root: cfg.PowerSupplyRoot}, logger)
		},
	}
	if storagePath != "" {
		m.Storage = func() tracker.Monitor[model.StorageState] {
			return NewStorage(StorageOptions{
				Interval: cfg.StoragePoll,
				Path:     storagePath,
				LowRatio: cfg.StorageLowRatio,
			}, logger)
		}
	}
	return m
}
