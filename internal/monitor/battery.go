package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// BatteryOptions configures a BatteryMonitor.
type BatteryOptions struct {
	Interval time.Duration
	// Root is the power_supply class directory, usually /sys/class/power_supply.
	Root string
}

// BatteryMonitor reads battery and mains state from the sysfs power_supply class.
type BatteryMonitor struct {
	opts   BatteryOptions
	logger *slog.Logger
	p      *poller[model.BatteryState]
}

var _ tracker.Monitor[model.BatteryState] = (*BatteryMonitor)(nil)

// NewBattery returns a BatteryMonitor.
func NewBattery(opts BatteryOptions, logger *slog.Logger) *BatteryMonitor {
	m := &BatteryMonitor{opts: opts, logger: logging.Component(logger, "monitor").With("source", model.SourceBattery)}
	m.p = newPoller(string(model.SourceBattery), opts.Interval, m.probe, m.logger)
	return m
}

// Start fails with tracker.ErrMonitorUnavailable when Root does not exist.
func (m *BatteryMonitor) Start(update func(model.BatteryState)) error {
	if _, err := os.Stat(m.opts.Root); err != nil {
		return fmt.Errorf("%w: %s: %v", tracker.ErrMonitorUnavailable, m.opts.Root, err)
	}
	return m.p.start(update)
}

func (m *BatteryMonitor) Stop()                        { m.p.stop() }
func (m *BatteryMonitor) Snapshot() model.BatteryState { return m.p.snapshot() }

func (m *BatteryMonitor) probe() model.BatteryState {
	state, err := ReadPowerSupply(m.opts.Root)
	if err != nil {
		m.logger.Warn("read power supply", "root", m.opts.Root, "error", err)
		return model.BatteryState{}
	}
	return state
}

// ReadPowerSupply summarizes every supply under root. A host without a
// battery reports Present=false, Charging=true, Level=100. Any read error
// is returned and callers treat the state as unknown.
func ReadPowerSupply(root string) (model.BatteryState, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return model.BatteryState{}, err
	}

	var (
		batteries int
		levelSum  int
		charging  bool
		online    bool
	)
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		typ, err := readAttr(dir, "type")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return model.BatteryState{}, err
		}

		switch typ {
		case "Battery":
			if scope, _ := readAttr(dir, "scope"); scope == "Device" {
				// Peripheral batteries (mice, headsets) do not power the host.
				continue
			}
			capacity, err := readAttr(dir, "capacity")
			if err != nil {
				return model.BatteryState{}, err
			}
			level, err := strconv.Atoi(capacity)
			if err != nil {
				return model.BatteryState{}, fmt.Errorf("%s/capacity: %w", dir, err)
			}
			status, err := readAttr(dir, "status")
			if err != nil {
				return model.BatteryState{}, err
			}
			if status == "Charging" || status == "Full" {
				charging = true
			}
			batteries++
			levelSum += clampLevel(level)
		case "Mains", "USB", "USB_C", "Wireless":
			v, err := readAttr(dir, "online")
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return model.BatteryState{}, err
			}
			if v == "1" {
				online = true
			}
		}
	}

	if batteries == 0 {
		return model.BatteryState{Known: true, Present: false, Level: 100, Charging: true}, nil
	}
	return model.BatteryState{
		Known:    true,
		Present:  true,
		Level:    levelSum / batteries,
		Charging: charging || online,
	}, nil
}

func readAttr(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func clampLevel(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
